// ABOUTME: Tests for the live session registry
// ABOUTME: Covers supersede/reject policies, stale disconnects, and concurrent teardown

package registry

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndDeregister(t *testing.T) {
	r := New(PolicySupersede, slog.Default())

	superseded, err := r.Register("sess-1", "A001", "Alice")
	require.NoError(t, err)
	assert.Empty(t, superseded)
	assert.Equal(t, 1, r.Len())

	sessionID, ok := r.LookupByAgent("A001")
	require.True(t, ok)
	assert.Equal(t, "sess-1", sessionID)

	code, ok := r.Deregister("sess-1")
	require.True(t, ok)
	assert.Equal(t, "A001", code)
	assert.Equal(t, 0, r.Len())

	_, ok = r.LookupByAgent("A001")
	assert.False(t, ok)
}

func TestDeregister_UnknownSessionIsNoOp(t *testing.T) {
	r := New(PolicySupersede, slog.Default())

	code, ok := r.Deregister("never-registered")
	assert.False(t, ok)
	assert.Empty(t, code)
}

func TestRegister_SupersedeReplacesPreviousSession(t *testing.T) {
	r := New(PolicySupersede, slog.Default())

	_, err := r.Register("sess-1", "A001", "Alice")
	require.NoError(t, err)

	superseded, err := r.Register("sess-2", "A001", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", superseded)
	assert.Equal(t, 1, r.Len())

	sessionID, ok := r.LookupByAgent("A001")
	require.True(t, ok)
	assert.Equal(t, "sess-2", sessionID)
}

func TestRegister_RejectPolicy(t *testing.T) {
	r := New(PolicyReject, slog.Default())

	_, err := r.Register("sess-1", "A001", "Alice")
	require.NoError(t, err)

	_, err = r.Register("sess-2", "A001", "Alice")
	assert.ErrorIs(t, err, ErrDuplicateSession)

	// Original session is untouched
	sessionID, ok := r.LookupByAgent("A001")
	require.True(t, ok)
	assert.Equal(t, "sess-1", sessionID)
}

func TestDeregister_StaleDisconnectDoesNotRemoveSuccessor(t *testing.T) {
	r := New(PolicySupersede, slog.Default())

	_, err := r.Register("sess-1", "A001", "Alice")
	require.NoError(t, err)
	superseded, err := r.Register("sess-2", "A001", "Alice")
	require.NoError(t, err)
	require.Equal(t, "sess-1", superseded)

	// The stale disconnect for sess-1 arrives after the supersede.
	code, ok := r.Deregister("sess-1")
	assert.False(t, ok)
	assert.Empty(t, code)

	// sess-2 still resolves for A001.
	sessionID, ok := r.LookupByAgent("A001")
	require.True(t, ok)
	assert.Equal(t, "sess-2", sessionID)
}

func TestDeregister_ConcurrentRemovesExactlyOnce(t *testing.T) {
	r := New(PolicySupersede, slog.Default())

	_, err := r.Register("sess-1", "A001", "Alice")
	require.NoError(t, err)

	const attempts = 16
	var wg sync.WaitGroup
	removed := make(chan string, attempts)

	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if code, ok := r.Deregister("sess-1"); ok {
				removed <- code
			}
		}()
	}
	wg.Wait()
	close(removed)

	var codes []string
	for code := range removed {
		codes = append(codes, code)
	}
	require.Len(t, codes, 1, "exactly one deregister may win")
	assert.Equal(t, "A001", codes[0])
}

func TestEntries_SortedByAgentCode(t *testing.T) {
	r := New(PolicySupersede, slog.Default())

	_, err := r.Register("sess-b", "B002", "Bob")
	require.NoError(t, err)
	_, err = r.Register("sess-a", "A001", "Alice")
	require.NoError(t, err)

	entries := r.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "A001", entries[0].AgentCode)
	assert.Equal(t, "B002", entries[1].AgentCode)
	assert.Equal(t, "Alice", entries[0].DisplayName)
	assert.False(t, entries[0].LoginTime.IsZero())
}
