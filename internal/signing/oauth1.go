package signing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/postpilot/internal/errs"
)

// OAuth1Credentials holds the four secrets of an OAuth 1.0a client.
type OAuth1Credentials struct {
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
	Token          string `json:"token"`
	TokenSecret    string `json:"token_secret"`
}

// OAuth1Signer produces HMAC-SHA1 Authorization headers. Nonce and clock are
// injectable so that signing stays a pure function under test.
type OAuth1Signer struct {
	creds OAuth1Credentials
	nonce func() (string, error)
	now   func() time.Time
}

// NewOAuth1Signer constructs a signer with a random nonce source and wall clock.
func NewOAuth1Signer(creds OAuth1Credentials) *OAuth1Signer {
	return &OAuth1Signer{
		creds: creds,
		nonce: randomNonce,
		now:   time.Now,
	}
}

// AuthorizationHeader signs the request with a fresh nonce and the current time.
// Only x-www-form-urlencoded bodies participate in the signature base string;
// JSON and multipart bodies are excluded by the protocol.
func (s *OAuth1Signer) AuthorizationHeader(method, rawURL string, body []byte, contentType string) (string, error) {
	nonce, err := s.nonce()
	if err != nil {
		return "", &errs.SigningError{Reason: "nonce: " + err.Error()}
	}
	return s.AuthorizationHeaderAt(method, rawURL, body, contentType, nonce, s.now().Unix())
}

// AuthorizationHeaderAt is the pure form: for fixed nonce and timestamp two
// invocations yield byte-identical headers.
func (s *OAuth1Signer) AuthorizationHeaderAt(method, rawURL string, body []byte, contentType, nonce string, timestamp int64) (string, error) {
	oauthParams := [][2]string{
		{"oauth_consumer_key", s.creds.ConsumerKey},
		{"oauth_nonce", nonce},
		{"oauth_signature_method", "HMAC-SHA1"},
		{"oauth_timestamp", strconv.FormatInt(timestamp, 10)},
		{"oauth_version", "1.0"},
	}
	if s.creds.Token != "" {
		oauthParams = append(oauthParams, [2]string{"oauth_token", s.creds.Token})
	}

	base, err := signatureBaseString(method, rawURL, body, contentType, oauthParams)
	if err != nil {
		return "", err
	}
	signature := s.sign(base)

	header := append(oauthParams, [2]string{"oauth_signature", signature})
	sort.Slice(header, func(i, j int) bool { return header[i][0] < header[j][0] })

	parts := make([]string, 0, len(header))
	for _, kv := range header {
		parts = append(parts, percentEncode(kv[0])+`="`+percentEncode(kv[1])+`"`)
	}
	return "OAuth " + strings.Join(parts, ", "), nil
}

// sign computes base64(HMAC-SHA1(base)) with key enc(consumerSecret)&enc(tokenSecret).
func (s *OAuth1Signer) sign(base string) string {
	key := percentEncode(s.creds.ConsumerSecret) + "&" + percentEncode(s.creds.TokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// signatureBaseString builds METHOD&enc(baseURL)&enc(parameterString) from the
// union of oauth_* parameters, URL query parameters and, for form-encoded
// requests only, decoded body parameters.
func signatureBaseString(method, rawURL string, body []byte, contentType string, oauthParams [][2]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &errs.SigningError{Reason: "bad url: " + err.Error()}
	}

	pairs := make([][2]string, 0, len(oauthParams)+8)
	pairs = append(pairs, oauthParams...)

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", &errs.SigningError{Reason: "bad query: " + err.Error()}
	}
	for k, vs := range query {
		for _, v := range vs {
			pairs = append(pairs, [2]string{k, v})
		}
	}

	if isFormEncoded(contentType) && len(body) > 0 {
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return "", &errs.SigningError{Reason: "bad form body: " + err.Error()}
		}
		for k, vs := range form {
			for _, v := range vs {
				pairs = append(pairs, [2]string{k, v})
			}
		}
	}

	// Encode first, then order by encoded key then encoded value as byte
	// strings; map iteration above contributes no hidden nondeterminism.
	encoded := make([][2]string, len(pairs))
	for i, kv := range pairs {
		encoded[i] = [2]string{percentEncode(kv[0]), percentEncode(kv[1])}
	}
	sort.Slice(encoded, func(i, j int) bool {
		if encoded[i][0] != encoded[j][0] {
			return encoded[i][0] < encoded[j][0]
		}
		return encoded[i][1] < encoded[j][1]
	})

	joined := make([]string, len(encoded))
	for i, kv := range encoded {
		joined[i] = kv[0] + "=" + kv[1]
	}
	paramString := strings.Join(joined, "&")

	baseURL := u.Scheme + "://" + u.Host + u.EscapedPath()
	return strings.ToUpper(method) + "&" + percentEncode(baseURL) + "&" + percentEncode(paramString), nil
}

func isFormEncoded(contentType string) bool {
	ct := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	return strings.EqualFold(ct, "application/x-www-form-urlencoded")
}

// percentEncode escapes everything outside the RFC 3986 unreserved set.
func percentEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		default:
			b.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}
	return b.String()
}

func randomNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
