package policy

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/listarchive/listarchive/pkg/config"
)

// ErrNoSecret indicates tokens cannot be issued or verified without a configured secret.
var ErrNoSecret = errors.New("token secret is not configured")

// Resolver resolves a session token to the capabilities of its holder.
type Resolver interface {
	Resolve(token string) (Capabilities, error)
}

// Claims is the payload of a session token.
type Claims struct {
	Admin bool     `json:"admin,omitempty"`
	Lists []string `json:"lists,omitempty"`
	jwt.RegisteredClaims
}

// TokenResolver validates HS256 signed session tokens.
type TokenResolver struct {
	secret  []byte
	archive config.Archive
}

var _ Resolver = &TokenResolver{}

// NewTokenResolver creates a TokenResolver using the auth secret and admin list from config.
func NewTokenResolver(root *config.Root) *TokenResolver {
	return &TokenResolver{secret: []byte(root.Auth.TokenSecret), archive: root.Archive}
}

// Resolve returns anonymous capabilities for an empty token.  An invalid or expired token also
// yields anonymous capabilities, along with the error explaining the rejection.
func (r *TokenResolver) Resolve(token string) (Capabilities, error) {
	if token == "" {
		return Anonymous(), nil
	}
	if len(r.secret) == 0 {
		return Anonymous(), ErrNoSecret
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Anonymous(), fmt.Errorf("invalid session token: %w", err)
	}
	if claims.Subject == "" {
		return Anonymous(), fmt.Errorf("invalid session token: %w", jwt.ErrTokenRequiredClaimMissing)
	}
	return Capabilities{
		User:          claims.Subject,
		Authenticated: true,
		Admin:         claims.Admin || r.archive.IsAdmin(claims.Subject),
		Lists:         claims.Lists,
	}, nil
}

// IssueToken mints a session token for user valid for ttl.
func IssueToken(secret, user string, admin bool, lists []string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	now := time.Now()
	claims := Claims{
		Admin: admin,
		Lists: lists,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// TokenFromRequest extracts the session token from the Authorization bearer header, falling
// back to the named cookie.
func TokenFromRequest(req *http.Request, cookieName string) string {
	if auth := req.Header.Get("Authorization"); auth != "" {
		parts := strings.Fields(auth)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	if cookieName == "" {
		return ""
	}
	if c, err := req.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}
