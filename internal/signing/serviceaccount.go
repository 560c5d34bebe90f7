package signing

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/postpilot/internal/errs"
)

// AssertionLifetime is the fixed validity window of a service-account assertion.
const AssertionLifetime = time.Hour

// JWTBearerGrantType is the grant_type value used when exchanging an assertion.
const JWTBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// ServiceAccountKey is the subset of a service-account key file the engine needs.
type ServiceAccountKey struct {
	Email      string `json:"client_email"`
	PrivateKey string `json:"private_key"`
	TokenURI   string `json:"token_uri"`
	Scope      string `json:"scope,omitempty"`
}

// ParseRSAPrivateKey decodes a PEM-armored RSA private key in either PKCS#8
// or PKCS#1 wrapping. Both encodings occur in the wild, so the ASN.1
// structure is parsed generically rather than assuming one form.
func ParseRSAPrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, &errs.InvalidKeyMaterialError{Reason: "no PEM block found"}
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, &errs.InvalidKeyMaterialError{Reason: "PKCS#8 key is not RSA"}
		}
		return rsaKey, nil
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, &errs.InvalidKeyMaterialError{Reason: "not a PKCS#8 or PKCS#1 RSA key: " + err.Error()}
	}
	return key, nil
}

// ServiceAccountAssertion builds an RS256-signed JWT bearer assertion:
// header {alg:RS256, typ:JWT}, claims {iss, scope, aud, iat, exp=iat+1h},
// signed with PKCS#1 v1.5 padding over SHA-256.
func ServiceAccountAssertion(key ServiceAccountKey, scope string, now time.Time) (string, error) {
	if key.Email == "" || key.TokenURI == "" {
		return "", &errs.InvalidKeyMaterialError{Reason: "service account email/token_uri missing"}
	}
	priv, err := ParseRSAPrivateKey([]byte(key.PrivateKey))
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"iss":   key.Email,
		"scope": scope,
		"aud":   key.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(AssertionLifetime).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(priv)
	if err != nil {
		return "", &errs.SigningError{Reason: "rs256: " + err.Error()}
	}
	return signed, nil
}
