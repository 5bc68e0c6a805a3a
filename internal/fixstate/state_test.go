package fixstate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestSignature_CollapsesPositionsAndLiterals(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{
			name: "line and column in path",
			a:    "Unexpected token '<' at src/App.tsx:12:5",
			b:    "Unexpected token '>' at src/App.tsx:40:2",
		},
		{
			name: "parenthesized position",
			a:    "Search is not defined (12:5)",
			b:    "Search is not defined (40:1)",
		},
		{
			name: "line word",
			a:    "Unterminated string constant at line 3",
			b:    "Unterminated string constant at line 97",
		},
		{
			name: "urls",
			a:    "Failed to fetch http://localhost:5173/src/App.tsx?t=123",
			b:    "Failed to fetch http://localhost:3000/src/Other.tsx?t=999",
		},
		{
			name: "quoted path",
			a:    `"src/utils/math" was a bare specifier`,
			b:    `"src/lib/format.ts" was a bare specifier`,
		},
		{
			name: "counts",
			a:    "Expected 3 arguments, but got 2.",
			b:    "Expected 1 arguments, but got 0.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, Signature(tt.a), Signature(tt.b))
		})
	}
}

func TestSignature_KeepsIdentity(t *testing.T) {
	assert.NotEqual(t, Signature("Search is not defined"), Signature("Header is not defined"))
	assert.Equal(t, "Search is not defined", Signature("Search is not defined"))
	assert.Equal(t, "a b c", Signature("  a   b\n\tc "))
	assert.Equal(t, "Unexpected token <str> at <path>", Signature("Unexpected token '<' at src/App.tsx:12:5"))
}

func TestSignature_Truncates(t *testing.T) {
	assert.Equal(t, MaxSignatureLength, utf8.RuneCountInString(Signature(strings.Repeat("a", 500))))
	got := Signature(strings.Repeat("é", 300))
	assert.Equal(t, MaxSignatureLength, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestState(cfg Config) (*State, *clock) {
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := New(cfg)
	s.now = c.now
	return s, c
}

func TestNew_Defaults(t *testing.T) {
	s := New(Config{})
	assert.Equal(t, DefaultConfig(), s.cfg)
}

func TestShouldSkip_MaxAttempts(t *testing.T) {
	s, _ := newTestState(DefaultConfig())
	msg := "Search is not defined (12:5)"

	for i := 0; i < 2; i++ {
		s.RecordAttempt(msg, AttemptRecord{Success: false})
		assert.False(t, s.ShouldSkip(msg).Skip, "attempt %d", i+1)
	}
	s.RecordAttempt("Search is not defined (40:1)", AttemptRecord{Success: false})

	d := s.ShouldSkip(msg)
	assert.True(t, d.Skip)
	assert.Contains(t, d.Reason, "max attempts reached (3/3)")
	assert.Equal(t, 3, s.Attempts(msg))

	assert.False(t, s.ShouldSkip("Header is not defined").Skip)
}

func TestShouldSkip_Cooldown(t *testing.T) {
	s, c := newTestState(DefaultConfig())
	msg := "Cannot read properties of undefined (reading 'name')"

	assert.False(t, s.ShouldSkip(msg).Skip)
	s.RecordAttempt(msg, AttemptRecord{Success: true})

	c.advance(10 * time.Second)
	d := s.ShouldSkip(msg)
	assert.True(t, d.Skip)
	assert.Contains(t, d.Reason, "recently fixed")

	c.advance(21 * time.Second)
	assert.False(t, s.ShouldSkip(msg).Skip)
}

func TestRecordAttempt_FailureDoesNotStartCooldown(t *testing.T) {
	s, _ := newTestState(DefaultConfig())
	s.RecordAttempt("boom", AttemptRecord{Success: false})
	assert.False(t, s.ShouldSkip("boom").Skip)
}

func TestRecordAttempt_FillsRecord(t *testing.T) {
	s, c := newTestState(DefaultConfig())
	rec := s.RecordAttempt("Search is not defined (1:1)", AttemptRecord{Strategy: "local-simple"})

	_, err := uuid.Parse(rec.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Search is not defined", rec.Signature)
	assert.Equal(t, c.t, rec.Timestamp)
}

func TestHistory_RingEvictsOldest(t *testing.T) {
	s, _ := newTestState(Config{HistorySize: 3})
	for i := 0; i < 5; i++ {
		s.RecordAttempt("boom", AttemptRecord{Error: string(rune('a' + i))})
	}

	h := s.History()
	require.Len(t, h, 3)
	assert.Equal(t, "c", h[0].Error)
	assert.Equal(t, "e", h[2].Error)

	h[0].Error = "mutated"
	assert.Equal(t, "c", s.History()[0].Error)
}

func TestCleanup(t *testing.T) {
	s, c := newTestState(DefaultConfig())
	s.RecordAttempt("old", AttemptRecord{Success: true})
	c.advance(4 * time.Minute)
	s.RecordAttempt("new", AttemptRecord{Success: true})
	c.advance(2 * time.Minute)

	assert.Equal(t, 1, s.Cleanup())
	assert.Equal(t, 0, s.Cleanup())
	assert.Equal(t, 1, s.Attempts("old"), "cleanup keeps attempt counts")
}

func TestReset(t *testing.T) {
	s, _ := newTestState(DefaultConfig())
	for i := 0; i < 3; i++ {
		s.RecordAttempt("boom", AttemptRecord{})
	}
	require.True(t, s.ShouldSkip("boom").Skip)
	s.Reset("boom")
	assert.False(t, s.ShouldSkip("boom").Skip)
}

func TestStartCleanup(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, c := newTestState(DefaultConfig())
	s.RecordAttempt("old", AttemptRecord{Success: true})
	c.advance(10 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := s.StartCleanup(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.recentFixes) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestStartCleanup_NonPositiveInterval(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _ := newTestState(DefaultConfig())
	for _, interval := range []time.Duration{0, -time.Second} {
		ctx, cancel := context.WithCancel(context.Background())
		var done <-chan struct{}
		require.NotPanics(t, func() { done = s.StartCleanup(ctx, interval) })
		cancel()
		<-done
	}
}

func TestOpenSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".mender", "fix-state.json")

	s, err := Open(path, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, s.History())

	s.RecordAttempt("Search is not defined", AttemptRecord{Strategy: "local-simple"})
	s.RecordAttempt("Search is not defined", AttemptRecord{Strategy: "ai-quick", Success: true})
	require.NoError(t, s.Save())

	reopened, err := Open(path, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Attempts("Search is not defined"))
	require.Len(t, reopened.History(), 2)
	assert.Equal(t, s.History()[1].ID, reopened.History()[1].ID)
	assert.True(t, reopened.ShouldSkip("Search is not defined").Skip)
}

func TestOpen_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fix-state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Open(path, DefaultConfig())
	assert.Error(t, err)
}

func TestSave_InMemoryIsNoop(t *testing.T) {
	assert.NoError(t, New(DefaultConfig()).Save())
}
