package spool_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printfleet/printfleet/internal/domain/shared"
	"github.com/printfleet/printfleet/internal/domain/spool"
)

func newTestSpool(t *testing.T, grams float64) (*spool.Spool, *shared.MockClock) {
	t.Helper()
	clock := shared.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s, err := spool.New(1, grams, clock)
	require.NoError(t, err)
	return s, clock
}

func TestNew_RejectsNegativeGrams(t *testing.T) {
	clock := shared.NewMockClock(time.Time{})

	_, err := spool.New(1, -1, clock)

	assert.Error(t, err)
}

func TestDeduct_FloorsAtZeroAndMarksEmpty(t *testing.T) {
	s, clock := newTestSpool(t, 50)

	result := s.Deduct(80, clock)

	assert.Equal(t, 0.0, s.RemainingGrams)
	assert.Equal(t, spool.StatusEmpty, s.Status)
	assert.True(t, result.ReachedEmpty)
	assert.Equal(t, 50.0, result.Deducted)
}

func TestDeduct_ReportsLowThresholdCrossingOnlyOnce(t *testing.T) {
	s, clock := newTestSpool(t, 150)

	first := s.Deduct(60, clock) // 150 -> 90, crosses 100g threshold
	assert.True(t, first.CrossedLowThreshold)

	second := s.Deduct(10, clock) // 90 -> 80, already below threshold
	assert.False(t, second.CrossedLowThreshold)
}

func TestDeduct_ReachingEmptyIsIdempotent(t *testing.T) {
	s, clock := newTestSpool(t, 10)

	first := s.Deduct(10, clock)
	second := s.Deduct(5, clock)

	assert.True(t, first.ReachedEmpty)
	assert.False(t, second.ReachedEmpty)
	assert.Equal(t, spool.StatusEmpty, s.Status)
}

func TestBindToSlot_ClearsStorageLocation(t *testing.T) {
	s, clock := newTestSpool(t, 100)
	location := "shelf-3"
	s.MoveToStorage(location, clock)
	require.NotNil(t, s.StorageLocation)

	s.BindToSlot(7, 2, clock)

	require.NotNil(t, s.PrinterID)
	assert.Equal(t, int64(7), *s.PrinterID)
	require.NotNil(t, s.SlotNumber)
	assert.Equal(t, 2, *s.SlotNumber)
	assert.Nil(t, s.StorageLocation)
}

func TestMoveToStorage_ClearsPrinterBinding(t *testing.T) {
	s, clock := newTestSpool(t, 100)
	s.BindToSlot(7, 2, clock)

	s.MoveToStorage("bin-1", clock)

	assert.Nil(t, s.PrinterID)
	assert.Nil(t, s.SlotNumber)
	require.NotNil(t, s.StorageLocation)
	assert.Equal(t, "bin-1", *s.StorageLocation)
}

func TestUnassign_ClearsBothLocationKinds(t *testing.T) {
	s, clock := newTestSpool(t, 100)
	s.BindToSlot(7, 2, clock)

	s.Unassign(clock)

	assert.Nil(t, s.PrinterID)
	assert.Nil(t, s.SlotNumber)
	assert.Nil(t, s.StorageLocation)
}

func TestUpdateRemainingFromPercent_ScalesAgainstInitial(t *testing.T) {
	s, clock := newTestSpool(t, 1000)

	s.UpdateRemainingFromPercent(42, clock)

	assert.InDelta(t, 420.0, s.RemainingGrams, 0.001)
}
