package hmscodes_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/printfleet/printfleet/internal/domain/alert"
	"github.com/printfleet/printfleet/internal/domain/hmscodes"
)

func TestLookup_KnownHMSCode(t *testing.T) {
	c := hmscodes.Lookup("0C010300_00010001")

	assert.Equal(t, "0C010300_00010001", c.RawCode)
	assert.Contains(t, c.Message, "clog")
	assert.Equal(t, alert.SeverityCritical, c.Severity)
}

func TestLookup_KnownPrintActionCode(t *testing.T) {
	c := hmscodes.Lookup("0300_8004")

	assert.Contains(t, c.Message, "Filament ran out")
}

func TestLookup_NormalizesCaseAndWhitespace(t *testing.T) {
	c := hmscodes.Lookup("  0c010300_00010001 ")

	assert.Contains(t, c.Message, "clog")
}

func TestLookup_StructuralDecodeOfUnknownCode(t *testing.T) {
	// Device 0x05 (AMS), module 2, unknown class/sub-code: not in the
	// curated table, so the identifier layout is decoded instead.
	c := hmscodes.Lookup("05020100_00010003")

	assert.Contains(t, c.Message, "AMS2")
	assert.NotContains(t, c.Message, "Unknown HMS error")
}

func TestLookup_UnknownShortCodeReportsUnknown(t *testing.T) {
	c := hmscodes.Lookup("9999_0001")

	assert.Contains(t, c.Message, "Unknown HMS error")
	assert.Equal(t, alert.SeverityWarning, c.Severity)
}

func TestLookup_GarbageInputDoesNotPanic(t *testing.T) {
	for _, raw := range []string{"", "not-a-code", "XXXXXXXX_YYYYYYYY", "_"} {
		c := hmscodes.Lookup(raw)
		assert.NotEmpty(t, c.Message, "raw=%q", raw)
	}
}

func TestCount_TablesAreNonEmpty(t *testing.T) {
	assert.Greater(t, hmscodes.Count(), 30)
}
