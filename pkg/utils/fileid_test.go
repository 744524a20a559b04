package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/printfleet/printfleet/pkg/utils"
)

func TestSanitizeFilename_KeepsSafeCharacters(t *testing.T) {
	assert.Equal(t, "benchy_v2.3mf", utils.SanitizeFilename("benchy_v2.3mf"))
	assert.Equal(t, "Part-01.gcode", utils.SanitizeFilename("Part-01.gcode"))
}

func TestSanitizeFilename_ReplacesUnsafeCharacters(t *testing.T) {
	assert.Equal(t, "my_part__1_.3mf", utils.SanitizeFilename("my part (1).3mf"))
	assert.Equal(t, "caf_.gcode", utils.SanitizeFilename("café.gcode"))
}

func TestSanitizeFilename_StripsDirectoryComponents(t *testing.T) {
	assert.Equal(t, "passwd", utils.SanitizeFilename("/etc/passwd"))
	assert.Equal(t, "shadow", utils.SanitizeFilename("../../etc/shadow"))
	assert.Equal(t, "part.gcode", utils.SanitizeFilename("uploads/part.gcode"))
}

func TestSanitizeFilename_DefusesDotDot(t *testing.T) {
	got := utils.SanitizeFilename("..")
	assert.NotContains(t, got, "..")
	assert.NotEmpty(t, got)

	got = utils.SanitizeFilename("evil..name.3mf")
	assert.NotContains(t, got, "..")
}

func TestSanitizeFilename_EmptyInputFallsBack(t *testing.T) {
	assert.Equal(t, "upload", utils.SanitizeFilename(""))
}

func TestGenerateFileID_ShortAndUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := utils.GenerateFileID()
		assert.Len(t, id, 8)
		assert.False(t, seen[id], "duplicate file id %s", id)
		seen[id] = true
	}
}
