package vault

import "github.com/and161185/postpilot/internal/model"

// Credential kinds stored per platform.
const (
	KindToken          = "token"           // OAuthToken JSON
	KindClient         = "client"          // OAuth2 client id/secret JSON
	KindOAuth1         = "oauth1"          // OAuth 1.0a consumer/token secrets JSON
	KindServiceAccount = "service_account" // service-account key JSON
)

// Key builds the canonical vault key for a (platform, kind) pair.
func Key(p model.Platform, kind string) string {
	return string(p) + "/" + kind
}
