package colormatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printfleet/printfleet/internal/domain/colormatch"
)

func TestParseHex_RoundTripsThroughHex(t *testing.T) {
	for _, hex := range []string{"#FF8800", "00ff00", "#000000", "#ffffff"} {
		c, err := colormatch.ParseHex(hex)
		require.NoError(t, err)

		reparsed, err := colormatch.ParseHex(c.Hex())
		require.NoError(t, err)
		assert.Equal(t, c, reparsed)
	}
}

func TestParseHex_RejectsMalformedInput(t *testing.T) {
	for _, hex := range []string{"", "#fff", "not-a-color", "#gggggg"} {
		_, err := colormatch.ParseHex(hex)
		assert.Error(t, err)
	}
}

func TestHasDrifted_BelowThresholdIsNotDrift(t *testing.T) {
	reported, _ := colormatch.ParseHex("#FF0000")
	library, _ := colormatch.ParseHex("#FA0A0A")

	assert.False(t, colormatch.HasDrifted(reported, library))
}

func TestHasDrifted_AboveThresholdIsDrift(t *testing.T) {
	reported, _ := colormatch.ParseHex("#FF0000")
	library, _ := colormatch.ParseHex("#0000FF")

	assert.True(t, colormatch.HasDrifted(reported, library))
}

func TestDistance_IsZeroForIdenticalColors(t *testing.T) {
	c, _ := colormatch.ParseHex("#123456")

	assert.Equal(t, 0.0, colormatch.Distance(c, c))
}

func TestClassifyName_MatchesCloseKnownPaletteEntry(t *testing.T) {
	c, _ := colormatch.ParseHex("#FE0101") // very close to palette Red

	assert.Equal(t, "Red", colormatch.ClassifyName(c))
}

func TestClassifyName_NamesGrayShades(t *testing.T) {
	dark, _ := colormatch.ParseHex("#202020")
	mid, _ := colormatch.ParseHex("#808080")
	light, _ := colormatch.ParseHex("#e8e8e8")

	assert.Equal(t, "Black", colormatch.ClassifyName(dark))
	assert.Equal(t, "Gray", colormatch.ClassifyName(mid))
	assert.Equal(t, "White", colormatch.ClassifyName(light))
}

func TestNoopCatalogProvider_AlwaysMisses(t *testing.T) {
	p := colormatch.NoopCatalogProvider{}

	match, err := p.Lookup(nil, "PLA", "#ff0000")

	assert.NoError(t, err)
	assert.Nil(t, match)
}
