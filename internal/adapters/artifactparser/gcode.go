package artifactparser

import (
	"path/filepath"
	"strings"

	"github.com/printfleet/printfleet/internal/domain/artifact"
	"github.com/printfleet/printfleet/internal/domain/shared"
	"github.com/printfleet/printfleet/pkg/utils"
)

// GCodeParser implements artifact.Parser for .gcode/.bgcode uploads: opaque
// bytes, size-limited only; no metadata extraction is attempted, unlike
// the 3mf container format.
type GCodeParser struct {
	format artifact.Format
}

// NewGCodeParser constructs a GCodeParser for the given format, which must
// be artifact.FormatGCode or artifact.FormatBGCode.
func NewGCodeParser(format artifact.Format) *GCodeParser {
	return &GCodeParser{format: format}
}

// Parse implements artifact.Parser.
func (p *GCodeParser) Parse(raw []byte, originalName string) (*artifact.PrintArtifact, error) {
	if len(raw) == 0 {
		return nil, shared.NewArtifactError("parse_failure", "empty upload")
	}
	if len(raw) > MaxUploadBytes {
		return nil, shared.NewArtifactError("oversized", "upload exceeds the 100 MB limit")
	}
	return &artifact.PrintArtifact{
		Format:          p.format,
		FileID:          utils.GenerateFileID(),
		OriginalName:    originalName,
		ContentHash:     contentHash(raw),
		PerSlotFilament: map[int]artifact.FilamentUse{},
	}, nil
}

// ByExtension dispatches to the 3mf or gcode/bgcode parser based on
// originalName's extension; any extension other than 3mf gets the gcode
// parser.
func ByExtension(originalName string) artifact.Parser {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(originalName), ".")) {
	case "3mf":
		return NewThreeMFParser()
	case "bgcode":
		return NewGCodeParser(artifact.FormatBGCode)
	default:
		return NewGCodeParser(artifact.FormatGCode)
	}
}
