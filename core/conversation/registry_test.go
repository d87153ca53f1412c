package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistrySweepUsesLastActivity(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	r := NewRegistry(time.Minute, clock.Now)

	r.put("old", pending{run: &Run{SessionKey: "old"}})
	clock.Advance(45 * time.Second)
	r.put("new", pending{run: &Run{SessionKey: "new"}})
	// Entries without a recorded activity are never evicted.
	r.entries["unset"] = pending{run: &Run{SessionKey: "unset"}}

	require.Empty(t, r.sweep(clock.Now().Add(10*time.Second)))

	swept := r.sweep(clock.Now().Add(20 * time.Second))
	require.Len(t, swept, 1)
	require.Equal(t, "old", swept[0].run.SessionKey)
	require.Equal(t, []string{"new", "unset"}, r.Sessions())
}

func TestRegistryWithoutTTLKeepsEntries(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	r := NewRegistry(0, clock.Now)
	r.put("s", pending{run: &Run{SessionKey: "s"}})
	clock.Advance(24 * time.Hour)

	require.Empty(t, r.sweep(time.Time{}))
	_, state := r.take("s")
	require.Equal(t, takeFound, state)
}
