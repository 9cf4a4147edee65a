// ABOUTME: Tests for the status enum and transition table.
// ABOUTME: Covers self-loop rejection, fail-closed lookups, and the exact table contents.

package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedNextStates_NoSelfLoops(t *testing.T) {
	for _, s := range All() {
		for _, target := range AllowedNextStates(s) {
			assert.NotEqual(t, s, target, "status %s allows a self-loop", s)
		}
	}
}

func TestAllowedNextStates_OfflineOnlyReachesAvailable(t *testing.T) {
	assert.Equal(t, []Status{Available}, AllowedNextStates(Offline))
}

func TestAllowedNextStates_UnknownStatusFailsClosed(t *testing.T) {
	assert.Empty(t, AllowedNextStates(Status("Lunch")))
	assert.Empty(t, AllowedNextStates(Status("")))
}

func TestAllowedNextStates_TableContents(t *testing.T) {
	expected := map[Status][]Status{
		Available: {Busy, Break, NotReady, Offline},
		Busy:      {Available, Wrap, NotReady},
		Wrap:      {Available, NotReady},
		Break:     {Available, NotReady},
		NotReady:  {Available, Offline},
		Offline:   {Available},
	}
	for from, targets := range expected {
		assert.ElementsMatch(t, targets, AllowedNextStates(from), "targets for %s", from)
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(Available, Busy))
	assert.True(t, CanTransition(Busy, Wrap))
	assert.False(t, CanTransition(Busy, Break), "Busy cannot go directly to Break")
	assert.False(t, CanTransition(Busy, Offline), "Busy cannot reach Offline via the table")
	assert.False(t, CanTransition(Available, Available), "self-loops are rejected")
	assert.False(t, CanTransition(Status("Lunch"), Available), "unknown source fails closed")
}

func TestValid(t *testing.T) {
	for _, s := range All() {
		assert.True(t, Valid(s))
	}
	assert.False(t, Valid(Status("Lunch")))
	assert.False(t, Valid(Status("available")), "statuses are case sensitive")
}
