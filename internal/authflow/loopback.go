package authflow

import (
	"bufio"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/postpilot/internal/errs"
)

// loopback is the short-lived TCP listener that receives the OAuth redirect
// for providers refusing custom URL schemes. It parses raw request lines
// itself: the listener lives for one redirect and needs no HTTP stack.
type loopback struct {
	ln   net.Listener
	path string
	log  *zap.Logger
}

// newLoopback binds the exact host:port of the provider's redirect URI.
func newLoopback(addr, path string, log *zap.Logger) (*loopback, error) {
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return nil, &errs.AuthenticationError{Reason: "bind callback listener: " + err.Error()}
	}
	return &loopback{ln: ln, path: path, log: log}, nil
}

// serve accepts connections until the listener is closed. It runs on its own
// goroutine so the callback and the timeout timer are genuinely concurrent.
func (l *loopback) serve(att *attempt) {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return // listener closed
		}
		l.handle(conn, att)
	}
}

// handle reads the request line of one inbound connection. Requests for
// other paths (browser prefetch, favicon) get an empty 200 and do not affect
// the attempt's outcome.
func (l *loopback) handle(conn net.Conn, att *attempt) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return
	}
	target, ok := parseRequestLine(line)
	if !ok {
		writeHTTPResponse(conn, "")
		return
	}
	u, err := url.Parse(target)
	if err != nil || u.Path != l.path {
		writeHTTPResponse(conn, "")
		return
	}

	q := u.Query()
	switch {
	case q.Get("error") != "":
		reason := q.Get("error_description")
		if reason == "" {
			reason = q.Get("error")
		}
		writeHTTPResponse(conn, "Authorization failed. You can close this window.")
		att.resolve("", &errs.AuthenticationError{Reason: reason})
	case q.Get("code") != "":
		writeHTTPResponse(conn, "Authorization complete. You can close this window.")
		att.resolve(q.Get("code"), nil)
	default:
		writeHTTPResponse(conn, "No authorization code received.")
		att.resolve("", errs.ErrNoAuthorizationCode)
	}
}

// close tears the listener down; safe to call more than once.
func (l *loopback) close() { _ = l.ln.Close() }

// parseRequestLine extracts the request target from "METHOD target HTTP/x.y".
func parseRequestLine(line string) (string, bool) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) != 3 || !strings.HasPrefix(fields[2], "HTTP/") {
		return "", false
	}
	return fields[1], true
}

func writeHTTPResponse(conn net.Conn, body string) {
	fmt.Fprintf(conn,
		"HTTP/1.1 200 OK\r\nContent-Type: text/plain; charset=utf-8\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		len(body), body)
}
