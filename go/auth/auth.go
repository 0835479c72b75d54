// Package auth resolves how a request authenticates to the warehouse and
// who the requesting user is. Verification happens upstream at the proxy;
// the gateway only classifies and extracts identity for connection reuse
// and logging.
package auth

import (
	"os/user"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sovakpeter/lakegate/go/protocol"
)

// Forwarded headers set by the authenticating proxy in front of the UI.
const (
	HeaderAccessToken       = "x-forwarded-access-token"
	HeaderEmail             = "x-forwarded-email"
	HeaderUser              = "x-forwarded-user"
	HeaderPreferredUsername = "x-forwarded-preferred-username"
)

// externalSuffix decorates display names of guest accounts upstream.
const externalSuffix = "(External)"

// OBOToken extracts the on-behalf-of token from forwarded headers.
func OBOToken(headers map[string]string) string {
	return lookup(headers, HeaderAccessToken)
}

// Detect classifies the auth method for a request: a forwarded user token
// means OBO, a configured service principal token means SP, and an
// embedded database means LOCAL.
func Detect(headers map[string]string, oboToken, spToken string, local bool) protocol.AuthMethod {
	if oboToken == "" {
		oboToken = OBOToken(headers)
	}
	switch {
	case oboToken != "":
		return protocol.AuthOBO
	case spToken != "":
		return protocol.AuthSP
	case local:
		return protocol.AuthLocal
	default:
		return protocol.AuthSP
	}
}

// UserEmail resolves the requesting user's identity for logging and
// connection keying. Resolution order: forwarded identity headers, the
// email claim of the OBO token, the OS user, then "anonymous".
func UserEmail(headers map[string]string, oboToken string) string {
	for _, h := range []string{HeaderEmail, HeaderUser, HeaderPreferredUsername} {
		if v := lookup(headers, h); v != "" {
			return sanitize(v)
		}
	}
	if email := emailClaim(oboToken); email != "" {
		return sanitize(email)
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "anonymous"
}

// emailClaim peeks at the token's email claim without verifying the
// signature. The proxy already verified the token; this is display and
// cache-keying identity only.
func emailClaim(token string) string {
	if token == "" {
		return ""
	}
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return ""
	}
	for _, key := range []string{"email", "preferred_username", "upn"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func sanitize(identity string) string {
	identity = strings.TrimSpace(identity)
	identity = strings.TrimSuffix(identity, externalSuffix)
	return strings.TrimSpace(identity)
}

func lookup(headers map[string]string, name string) string {
	if headers == nil {
		return ""
	}
	if v, ok := headers[name]; ok {
		return strings.TrimSpace(v)
	}
	// Header maps from some transports preserve original casing.
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
