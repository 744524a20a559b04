// Package artifact holds PrintArtifact: the parsed metadata of an uploaded
// sliced file (3mf/gcode), used by the Dispatcher for compatibility checks
// and by Filament Accounting for consumption precedence.
package artifact

import (
	"time"
)

// Format identifies the uploaded file's container type.
type Format string

const (
	Format3MF   Format = "3mf"
	FormatGCode Format = "gcode"
	FormatBGCode Format = "bgcode"
)

// FilamentUse is one slot's parsed filament requirement from the sliced
// file, keyed by slot index in PrintArtifact.PerSlotFilament.
type FilamentUse struct {
	Material  string
	ColorHex  string
	Meters    float64
	UsedGrams float64
}

// PrintArtifact is an uploaded sliced file plus its parsed metadata.
type PrintArtifact struct {
	ID                  int64
	Format              Format
	FileID              string // used to build <data>/print_files/<file_id>_<sanitized_name>
	OriginalName        string
	StoragePath         string
	ContentHash         string // for duplicate detection
	EstimatedPrintSec   int64
	TotalGrams          float64
	PerSlotFilament     map[int]FilamentUse
	ThumbnailPath       *string
	CompatiblePrinterModels []string
	BedWidthMM          float64
	BedDepthMM          float64
	SupportsUsed        bool
	ModelID             *int64
	CreatedAt           time.Time
}

// CompatibleWith reports whether this artifact's declared printer-model
// compatibility set intersects printerModelFamily, per Dispatcher step 3.
func (a *PrintArtifact) CompatibleWith(printerModelFamily string) bool {
	if len(a.CompatiblePrinterModels) == 0 {
		return true // no declared restriction
	}
	for _, m := range a.CompatiblePrinterModels {
		if m == printerModelFamily {
			return true
		}
	}
	return false
}

// FitsBed reports whether this artifact's declared bed footprint fits
// within the given printer bed dimensions.
func (a *PrintArtifact) FitsBed(printerBedWidthMM, printerBedDepthMM float64) bool {
	if a.BedWidthMM == 0 && a.BedDepthMM == 0 {
		return true // no declared footprint
	}
	return a.BedWidthMM <= printerBedWidthMM && a.BedDepthMM <= printerBedDepthMM
}
