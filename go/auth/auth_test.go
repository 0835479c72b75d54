package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/sovakpeter/lakegate/go/protocol"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestDetectPrefersOBO(t *testing.T) {
	headers := map[string]string{HeaderAccessToken: "obo-token"}
	require.Equal(t, protocol.AuthOBO, Detect(headers, "", "sp-token", false))
	require.Equal(t, protocol.AuthOBO, Detect(nil, "explicit", "sp-token", false))
}

func TestDetectFallsBackToSPThenLocal(t *testing.T) {
	require.Equal(t, protocol.AuthSP, Detect(nil, "", "sp-token", false))
	require.Equal(t, protocol.AuthLocal, Detect(nil, "", "", true))
	require.Equal(t, protocol.AuthSP, Detect(nil, "", "", false))
}

func TestUserEmailFromHeaders(t *testing.T) {
	headers := map[string]string{HeaderEmail: "alice@example.com"}
	require.Equal(t, "alice@example.com", UserEmail(headers, ""))
}

func TestUserEmailHeaderPrecedence(t *testing.T) {
	headers := map[string]string{
		HeaderUser:              "alice",
		HeaderPreferredUsername: "alice.p",
		HeaderEmail:             "alice@example.com",
	}
	require.Equal(t, "alice@example.com", UserEmail(headers, ""))

	delete(headers, HeaderEmail)
	require.Equal(t, "alice", UserEmail(headers, ""))
}

func TestUserEmailStripsExternalSuffix(t *testing.T) {
	headers := map[string]string{HeaderEmail: "bob@partner.com (External)"}
	require.Equal(t, "bob@partner.com", UserEmail(headers, ""))
}

func TestUserEmailCaseInsensitiveHeaders(t *testing.T) {
	headers := map[string]string{"X-Forwarded-Email": "carol@example.com"}
	require.Equal(t, "carol@example.com", UserEmail(headers, ""))
}

func TestUserEmailFromTokenClaim(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{
		"email": "dave@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	require.Equal(t, "dave@example.com", UserEmail(nil, token))
}

func TestUserEmailPreferredUsernameClaim(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"preferred_username": "erin@example.com"})
	require.Equal(t, "erin@example.com", UserEmail(nil, token))
}

func TestUserEmailGarbageTokenFallsThrough(t *testing.T) {
	// Not a JWT at all; resolution falls through to the OS user.
	got := UserEmail(nil, "not-a-jwt")
	require.NotEmpty(t, got)
	require.NotEqual(t, "not-a-jwt", got)
}

func TestOBOTokenExtraction(t *testing.T) {
	require.Equal(t, "tok", OBOToken(map[string]string{HeaderAccessToken: " tok "}))
	require.Equal(t, "", OBOToken(nil))
}
