package fleetstate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printfleet/printfleet/internal/domain/fleetstate"
)

func TestGet_MissingPrinterReportsNotFound(t *testing.T) {
	store := fleetstate.New()

	_, ok := store.Get(99)

	assert.False(t, ok)
}

func TestSet_StampsPrinterIDAndIsReadableByGet(t *testing.T) {
	store := fleetstate.New()

	store.Set(1, fleetstate.Snapshot{IsOnline: true, IsPrinting: true})

	snap, ok := store.Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(1), snap.PrinterID)
	assert.True(t, snap.IsOnline)
}

func TestGet_ReturnsAnIndependentCopy(t *testing.T) {
	store := fleetstate.New()
	store.Set(1, fleetstate.Snapshot{IsOnline: true})

	snap, _ := store.Get(1)
	snap.IsOnline = false // mutating the returned value must not affect the store

	again, _ := store.Get(1)
	assert.True(t, again.IsOnline)
}

func TestMarkOffline_ClearsPrintingStateButKeepsPrinterID(t *testing.T) {
	store := fleetstate.New()
	store.Set(5, fleetstate.Snapshot{IsOnline: true, IsPrinting: true, CurrentPrint: &fleetstate.CurrentPrint{JobID: 10}})

	now := time.Now()
	store.MarkOffline(5, now)

	snap, ok := store.Get(5)
	require.True(t, ok)
	assert.False(t, snap.IsOnline)
	assert.False(t, snap.IsPrinting)
	assert.Nil(t, snap.CurrentPrint)
	assert.Equal(t, int64(5), snap.PrinterID)
}

func TestAll_ReturnsEverySnapshotKeyedByPrinterID(t *testing.T) {
	store := fleetstate.New()
	store.Set(1, fleetstate.Snapshot{IsOnline: true})
	store.Set(2, fleetstate.Snapshot{IsOnline: false})

	all := store.All()

	assert.Len(t, all, 2)
	assert.True(t, all[1].IsOnline)
	assert.False(t, all[2].IsOnline)
}

func TestDelete_RemovesSnapshotEntirely(t *testing.T) {
	store := fleetstate.New()
	store.Set(1, fleetstate.Snapshot{IsOnline: true})

	store.Delete(1)

	_, ok := store.Get(1)
	assert.False(t, ok)
}

func TestOnlineAt_DerivesLivenessFromFrameAge(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	snap := fleetstate.Snapshot{IsOnline: true, UpdatedAt: now}

	assert.True(t, snap.OnlineAt(now.Add(89*time.Second), 0))
	assert.False(t, snap.OnlineAt(now.Add(90*time.Second), 0))
	assert.False(t, snap.OnlineAt(now.Add(91*time.Second), 0))

	// A custom window overrides the default.
	assert.True(t, snap.OnlineAt(now.Add(5*time.Minute), 10*time.Minute))
}

func TestOnlineAt_OfflineFlagWinsRegardlessOfAge(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	snap := fleetstate.Snapshot{IsOnline: false, UpdatedAt: now}

	assert.False(t, snap.OnlineAt(now, 0))
}
