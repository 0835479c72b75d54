package uilog

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/sovakpeter/lakegate/go/logging"
)

func TestBufferEvictsOldest(t *testing.T) {
	b := NewBuffer(3)
	for i := 0; i < 5; i++ {
		b.Append(Message{Message: fmt.Sprintf("m%d", i), Timestamp: float64(i)})
	}
	got := b.Snapshot()
	require.Len(t, got, 3)
	require.Equal(t, "m2", got[0].Message)
	require.Equal(t, "m4", got[2].Message)
}

func TestBufferTailSince(t *testing.T) {
	b := NewBuffer(10)
	for i := 1; i <= 4; i++ {
		b.Append(Message{Message: fmt.Sprintf("m%d", i), Timestamp: float64(i)})
	}
	got := b.Tail(2)
	require.Len(t, got, 2)
	require.Equal(t, "m3", got[0].Message)

	require.Len(t, b.Tail(0), 4)
}

func TestBufferClear(t *testing.T) {
	b := NewBuffer(4)
	b.Append(Message{Message: "x"})
	b.Clear()
	require.Zero(t, b.Len())
}

func TestRegistrySessionIsolation(t *testing.T) {
	r := NewRegistry(10, true)
	r.getOrCreate("s1").buffer.Append(Message{Message: "one"})
	r.getOrCreate("s2").buffer.Append(Message{Message: "two"})

	require.Len(t, r.Snapshot("s1"), 1)
	require.Equal(t, "two", r.Snapshot("s2")[0].Message)
	require.Nil(t, r.Snapshot("unknown"))
}

func newTestLogger(hook *Hook) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.DebugLevel)
	l.AddHook(hook)
	return l
}

func TestHookCapturesScopedEntries(t *testing.T) {
	r := NewRegistry(10, true)
	l := newTestLogger(NewHook(r, logrus.InfoLevel))

	ctx := logging.WithScope(context.Background(), logging.Scope{
		CorrelationID: "corr-1",
		UserEmail:     "alice@example.com",
		Scenario:      "READ.SINGLE",
		UISessionID:   "sess-1",
	})
	l.WithContext(ctx).WithFields(logrus.Fields{
		"correlation_id": "corr-1",
		"user":           "alice@example.com",
		"scenario":       "READ.SINGLE",
	}).Info("hello")

	msgs := r.Snapshot("sess-1")
	require.Len(t, msgs, 1)
	require.Equal(t, "hello", msgs[0].Message)
	require.Equal(t, "corr-1", msgs[0].CorrelationID)
	require.Equal(t, "alice@example.com", msgs[0].UserEmail)
	require.Equal(t, "READ.SINGLE", msgs[0].Scenario)
}

func TestHookIgnoresUnscopedEntries(t *testing.T) {
	r := NewRegistry(10, true)
	l := newTestLogger(NewHook(r, logrus.InfoLevel))

	l.Info("no session attached")
	require.Empty(t, r.sessions)
}

func TestHookRespectsDisabledSession(t *testing.T) {
	r := NewRegistry(10, false)
	l := newTestLogger(NewHook(r, logrus.InfoLevel))

	ctx := logging.WithScope(context.Background(), logging.Scope{UISessionID: "sess-2"})
	l.WithContext(ctx).Info("dropped")
	require.Empty(t, r.Snapshot("sess-2"))

	r.SetEnabled("sess-2", true)
	l.WithContext(ctx).Info("captured")
	require.Len(t, r.Snapshot("sess-2"), 1)
}

func TestHookLevelFilter(t *testing.T) {
	r := NewRegistry(10, true)
	l := newTestLogger(NewHook(r, logrus.InfoLevel))

	ctx := logging.WithScope(context.Background(), logging.Scope{UISessionID: "sess-3"})
	l.WithContext(ctx).Debug("too fine")
	l.WithContext(ctx).Warn("kept")

	msgs := r.Snapshot("sess-3")
	require.Len(t, msgs, 1)
	require.Equal(t, "kept", msgs[0].Message)
}

func TestHookMarksBoundaries(t *testing.T) {
	r := NewRegistry(10, true)
	l := newTestLogger(NewHook(r, logrus.InfoLevel))

	ctx := logging.WithScope(context.Background(), logging.Scope{UISessionID: "sess-4"})
	l.WithContext(ctx).Info("──────────────────── PHASE: EXECUTE ────────────────────")

	msgs := r.Snapshot("sess-4")
	require.Len(t, msgs, 1)
	require.True(t, msgs[0].IsPhaseHeader)
	require.False(t, msgs[0].IsRequestBoundary)
}
