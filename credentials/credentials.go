// Package credentials loads the issuer service-account key used both to
// authenticate against the wallet API and to sign save-to-wallet links.
package credentials

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2/google"
	oauthjwt "golang.org/x/oauth2/jwt"
)

// IssuerScope is the only OAuth scope the service account requests.
const IssuerScope = "https://www.googleapis.com/auth/wallet_object.issuer"

var (
	ErrMissingEmail = errors.New("credentials: client_email is required")
	ErrMissingKey   = errors.New("credentials: private_key is required")
)

// ServiceCredential is the immutable issuer identity loaded once at startup.
type ServiceCredential struct {
	ClientEmail  string
	PrivateKeyID string
	TokenURI     string

	oauth      *oauthjwt.Config
	signingKey *rsa.PrivateKey
}

// Load reads and validates the service-account key document at path.
func Load(path string) (*ServiceCredential, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("credentials: path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("credentials: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a service_account key document scoped to IssuerScope.
func Parse(data []byte) (*ServiceCredential, error) {
	conf, err := google.JWTConfigFromJSON(data, IssuerScope)
	if err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}
	conf.Email = strings.TrimSpace(conf.Email)
	if conf.Email == "" {
		return nil, ErrMissingEmail
	}
	if len(strings.TrimSpace(string(conf.PrivateKey))) == 0 {
		return nil, ErrMissingKey
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(conf.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("credentials: parse private_key: %w", err)
	}
	return &ServiceCredential{
		ClientEmail:  conf.Email,
		PrivateKeyID: strings.TrimSpace(conf.PrivateKeyID),
		TokenURI:     conf.TokenURL,
		oauth:        conf,
		signingKey:   key,
	}, nil
}

// SigningKey returns the parsed RSA key.
func (c *ServiceCredential) SigningKey() *rsa.PrivateKey {
	if c == nil {
		return nil
	}
	return c.signingKey
}

// JWTConfig returns a copy of the two-legged OAuth configuration for the key.
func (c *ServiceCredential) JWTConfig() *oauthjwt.Config {
	if c == nil || c.oauth == nil {
		return nil
	}
	conf := *c.oauth
	conf.Scopes = append([]string(nil), c.oauth.Scopes...)
	return &conf
}
