package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedactTopLevelKeys(t *testing.T) {
	in := map[string]any{
		"username":      "alice",
		"password":      "hunter2",
		"api_key":       "abc",
		"access_token":  "xyz",
		"refresh_token": "uvw",
		"count":         3,
	}
	out := Redact(in)

	require.Equal(t, "alice", out["username"])
	require.Equal(t, redactedValue, out["password"])
	require.Equal(t, redactedValue, out["api_key"])
	require.Equal(t, redactedValue, out["access_token"])
	require.Equal(t, redactedValue, out["refresh_token"])
	require.Equal(t, 3, out["count"])

	// Input untouched.
	require.Equal(t, "hunter2", in["password"])
}

func TestRedactNested(t *testing.T) {
	in := map[string]any{
		"profile": map[string]any{
			"email":  "a@b.c",
			"secret": "s3cr3t",
		},
	}
	out := Redact(in)
	nested := out["profile"].(map[string]any)
	require.Equal(t, "a@b.c", nested["email"])
	require.Equal(t, redactedValue, nested["secret"])
}

func TestRedactCaseInsensitiveSubstrings(t *testing.T) {
	require.True(t, IsSensitiveKey("API_KEY"))
	require.True(t, IsSensitiveKey("myAuthHeader"))
	require.True(t, IsSensitiveKey("db_credential"))
	require.False(t, IsSensitiveKey("username"))
	require.False(t, IsSensitiveKey("table"))
}

func TestRedactNil(t *testing.T) {
	require.Nil(t, Redact(nil))
}

func TestScopeRoundTrip(t *testing.T) {
	ctx := WithScope(context.Background(), Scope{
		CorrelationID: "abc",
		Scenario:      "READ.SINGLE",
	})
	ctx = WithPhase(ctx, "EXECUTE")

	s := ScopeFrom(ctx)
	require.Equal(t, "abc", s.CorrelationID)
	require.Equal(t, "READ.SINGLE", s.Scenario)
	require.Equal(t, "EXECUTE", s.Phase)
}

func TestBoundaryDetection(t *testing.T) {
	require.True(t, IsRequestBoundary("REQUEST: abc | alice | READ.SINGLE | START ═"))
	require.False(t, IsRequestBoundary("plain message"))
	require.True(t, IsPhaseHeader("──────────────────── PHASE: EXECUTE ────────────────────"))
	require.False(t, IsPhaseHeader("PHASE: EXECUTE"))
}
