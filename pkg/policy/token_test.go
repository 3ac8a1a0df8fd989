package policy_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/listarchive/listarchive/pkg/config"
	"github.com/listarchive/listarchive/pkg/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "s3cret"

func resolver() *policy.TokenResolver {
	return policy.NewTokenResolver(&config.Root{
		Auth:    config.Auth{TokenSecret: secret},
		Archive: config.Archive{Admins: []string{"root"}},
	})
}

func TestResolveEmptyToken(t *testing.T) {
	caps, err := resolver().Resolve("")
	require.NoError(t, err)
	assert.Equal(t, policy.Anonymous(), caps)
}

func TestResolveIssuedToken(t *testing.T) {
	token, err := policy.IssueToken(secret, "bob", false, []string{"dev.example.org"}, time.Hour)
	require.NoError(t, err)

	caps, err := resolver().Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "bob", caps.User)
	assert.True(t, caps.Authenticated)
	assert.False(t, caps.Admin)
	assert.Equal(t, []string{"dev.example.org"}, caps.Lists)
}

func TestResolveAdminClaim(t *testing.T) {
	token, err := policy.IssueToken(secret, "alice", true, nil, time.Hour)
	require.NoError(t, err)
	caps, err := resolver().Resolve(token)
	require.NoError(t, err)
	assert.True(t, caps.Admin)
}

func TestResolveConfiguredAdmin(t *testing.T) {
	token, err := policy.IssueToken(secret, "root", false, nil, time.Hour)
	require.NoError(t, err)
	caps, err := resolver().Resolve(token)
	require.NoError(t, err)
	assert.True(t, caps.Admin)
}

func TestResolveRejectsBadTokens(t *testing.T) {
	expired, err := policy.IssueToken(secret, "root", true, nil, -time.Hour)
	require.NoError(t, err)
	forged, err := policy.IssueToken("other secret", "root", true, nil, time.Hour)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "root"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	noSubject, err := policy.IssueToken(secret, "", true, nil, time.Hour)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":    expired,
		"forged":     forged,
		"alg none":   none,
		"no subject": noSubject,
		"garbage":    "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			caps, err := resolver().Resolve(token)
			assert.Error(t, err)
			assert.Equal(t, policy.Anonymous(), caps)
		})
	}
}

func TestResolveWithoutSecret(t *testing.T) {
	token, err := policy.IssueToken(secret, "root", true, nil, time.Hour)
	require.NoError(t, err)
	r := policy.NewTokenResolver(&config.Root{})
	caps, err := r.Resolve(token)
	assert.ErrorIs(t, err, policy.ErrNoSecret)
	assert.Equal(t, policy.Anonymous(), caps)

	_, err = policy.IssueToken("", "root", true, nil, time.Hour)
	assert.ErrorIs(t, err, policy.ErrNoSecret)
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/email", nil)
	assert.Equal(t, "", policy.TokenFromRequest(req, "session"))

	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", policy.TokenFromRequest(req, "session"))

	req.Header.Set("Authorization", "Basic xyz")
	assert.Equal(t, "", policy.TokenFromRequest(req, "session"))

	req = httptest.NewRequest("GET", "/api/email", nil)
	req.Header.Set("Cookie", "session=def")
	assert.Equal(t, "def", policy.TokenFromRequest(req, "session"))
	assert.Equal(t, "", policy.TokenFromRequest(req, ""))
}
