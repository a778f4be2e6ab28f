package wallet

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"loyaltywallet/credentials"
)

const (
	// SaveURLPrefix is prepended to every signed save token.
	SaveURLPrefix   = "https://pay.google.com/gp/v/save/"
	defaultAudience = "google"
	saveTokenType   = "savetowallet"
)

// LinkOptions tunes the claims embedded in save-to-wallet tokens.
type LinkOptions struct {
	IssuerID  string
	Audience  string
	Origins   []string
	URLPrefix string
	Now       func() time.Time
}

// LinkSigner mints signed save-to-wallet links for loyalty objects.
type LinkSigner struct {
	cred      *credentials.ServiceCredential
	issuerID  string
	audience  string
	origins   []string
	urlPrefix string
	now       func() time.Time
}

// SavePayload lists the objects a save-to-wallet token offers to the user.
type SavePayload struct {
	LoyaltyObjects []ObjectReference `json:"loyaltyObjects"`
}

type ObjectReference struct {
	ID string `json:"id"`
}

func NewLinkSigner(cred *credentials.ServiceCredential, opts LinkOptions) (*LinkSigner, error) {
	if cred == nil {
		return nil, errors.New("link signer: credential required")
	}
	if strings.TrimSpace(opts.IssuerID) == "" {
		return nil, errors.New("link signer: issuer id required")
	}
	audience := strings.TrimSpace(opts.Audience)
	if audience == "" {
		audience = defaultAudience
	}
	prefix := strings.TrimSpace(opts.URLPrefix)
	if prefix == "" {
		prefix = SaveURLPrefix
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &LinkSigner{
		cred:      cred,
		issuerID:  strings.TrimSpace(opts.IssuerID),
		audience:  audience,
		origins:   append([]string(nil), opts.Origins...),
		urlPrefix: prefix,
		now:       now,
	}, nil
}

// SaveURL returns the save-to-wallet link for the user's loyalty object.
func (s *LinkSigner) SaveURL(userID string) (string, error) {
	token, err := s.Token(userID)
	if err != nil {
		return "", err
	}
	return s.urlPrefix + token, nil
}

// Token signs the save claims for userID with RS256.
func (s *LinkSigner) Token(userID string) (string, error) {
	key := s.cred.SigningKey()
	if key == nil {
		return "", errors.New("link signer: signing key not loaded")
	}
	// aud stays a bare string; the wallet platform rejects the array form.
	claims := jwt.MapClaims{
		"iss": s.cred.ClientEmail,
		"aud": s.audience,
		"typ": saveTokenType,
		"iat": s.now().UTC().Unix(),
		"payload": SavePayload{
			LoyaltyObjects: []ObjectReference{{ID: ObjectID(s.issuerID, userID)}},
		},
	}
	if len(s.origins) > 0 {
		claims["origins"] = s.origins
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if s.cred.PrivateKeyID != "" {
		token.Header["kid"] = s.cred.PrivateKeyID
	}
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("link signer: sign token: %w", err)
	}
	return signed, nil
}
