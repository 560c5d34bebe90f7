package authflow

import (
	"errors"
	"net/url"
	"os/exec"
	"runtime"
)

// Browser presents an authorization URL to the operator.
type Browser interface {
	// Open launches the URL without waiting for the user to act on it.
	Open(rawURL string) error
}

// SystemBrowser opens URLs in the OS default browser.
type SystemBrowser struct{}

// Open shells out to the platform opener.
func (SystemBrowser) Open(rawURL string) error {
	if rawURL == "" {
		return errors.New("url was empty")
	}
	if _, err := url.Parse(rawURL); err != nil {
		return err
	}
	var cmd string
	var args []string
	switch runtime.GOOS {
	case "windows":
		cmd, args = "cmd", []string{"/c", "start"}
	case "darwin":
		cmd = "open"
	default:
		cmd = "xdg-open"
	}
	args = append(args, rawURL)
	return exec.Command(cmd, args...).Start()
}

// SchemeRelay captures custom-scheme redirects for providers that accept app
// schemes. The host shell registers the scheme, presents the authorization
// URL, and invokes deliver exactly once with a redirect URL or an error.
type SchemeRelay interface {
	Begin(authURL string, deliver func(redirectURL string, err error)) error
}
