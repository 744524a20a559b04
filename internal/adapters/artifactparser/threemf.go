// Package artifactparser implements component P: parsers turning raw
// uploaded bytes into an artifact.PrintArtifact, enforcing the size and
// zip-bomb guards applied to every upload.
package artifactparser

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/printfleet/printfleet/internal/domain/artifact"
	"github.com/printfleet/printfleet/internal/domain/shared"
	"github.com/printfleet/printfleet/pkg/utils"
)

// MaxUploadBytes is the maximum accepted size of a raw uploaded file,
// enforced before the archive is even opened.
const MaxUploadBytes = 100 * 1024 * 1024

// MaxUncompressedBytes bounds the sum of a 3mf archive's uncompressed entry
// sizes, the zip-bomb guard: archives whose total uncompressed size
// exceeds 500 MB are rejected.
const MaxUncompressedBytes = 500 * 1024 * 1024

// sliceInfo is the project metadata document a 3mf carries alongside its
// mesh and thumbnail. Real slicers (PrusaSlicer, Bambu Studio) each use
// their own config file and schema under Metadata/; ThreeMFParser reads
// whichever of a short list of well-known paths is present and tolerates
// none being present (an artifact with an unrecognized or absent metadata
// document still parses, just with zeroed estimates).
type sliceInfo struct {
	ProjectName         string             `json:"project_name"`
	EstimatedPrintSec   int64              `json:"estimated_print_sec"`
	TotalGrams          float64            `json:"total_grams"`
	BedType             string             `json:"bed_type"`
	BedWidthMM          float64            `json:"bed_width_mm"`
	BedDepthMM          float64            `json:"bed_depth_mm"`
	SupportsUsed        bool               `json:"supports_used"`
	CompatiblePrinters  []string           `json:"compatible_printer_models"`
	Filaments           []sliceInfoFilament `json:"filaments"`
}

type sliceInfoFilament struct {
	Slot      int     `json:"slot"`
	Material  string  `json:"material"`
	ColorHex  string  `json:"color_hex"`
	Meters    float64 `json:"meters"`
	UsedGrams float64 `json:"used_grams"`
}

// metadataCandidates is the ordered list of archive paths ThreeMFParser
// checks for a sliceInfo document.
var metadataCandidates = []string{
	"Metadata/printfleet_slice_info.json",
	"Metadata/slice_info.json",
}

// thumbnailCandidates is the ordered list of archive paths checked for an
// embedded PNG preview.
var thumbnailCandidates = []string{
	"Metadata/plate_1.png",
	"Metadata/thumbnail.png",
	"Metadata/thumbnail/thumbnail.png",
}

// ThreeMFParser implements artifact.Parser for .3mf (zip-container) files.
type ThreeMFParser struct{}

// NewThreeMFParser constructs a ThreeMFParser.
func NewThreeMFParser() *ThreeMFParser { return &ThreeMFParser{} }

// Parse implements artifact.Parser.
func (p *ThreeMFParser) Parse(raw []byte, originalName string) (*artifact.PrintArtifact, error) {
	if len(raw) == 0 {
		return nil, shared.NewArtifactError("parse_failure", "empty upload")
	}
	if len(raw) > MaxUploadBytes {
		return nil, shared.NewArtifactError("oversized", fmt.Sprintf("upload of %d bytes exceeds the %d byte limit", len(raw), MaxUploadBytes))
	}

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, shared.NewArtifactError("parse_failure", fmt.Sprintf("not a valid 3mf archive: %v", err))
	}

	var totalUncompressed uint64
	for _, f := range zr.File {
		totalUncompressed += f.UncompressedSize64
		if totalUncompressed > MaxUncompressedBytes {
			return nil, shared.NewArtifactError("zip_bomb", fmt.Sprintf("archive's uncompressed contents exceed the %d byte guard", MaxUncompressedBytes))
		}
	}

	info, _ := readSliceInfo(zr)
	thumbPath := findThumbnail(zr, originalName)

	a := &artifact.PrintArtifact{
		Format:                  artifact.Format3MF,
		FileID:                  utils.GenerateFileID(),
		OriginalName:            originalName,
		ContentHash:             contentHash(raw),
		PerSlotFilament:         map[int]artifact.FilamentUse{},
		CompatiblePrinterModels: nil,
	}
	if info != nil {
		a.EstimatedPrintSec = info.EstimatedPrintSec
		a.TotalGrams = info.TotalGrams
		a.BedWidthMM = info.BedWidthMM
		a.BedDepthMM = info.BedDepthMM
		a.SupportsUsed = info.SupportsUsed
		a.CompatiblePrinterModels = info.CompatiblePrinters
		for _, f := range info.Filaments {
			a.PerSlotFilament[f.Slot] = artifact.FilamentUse{
				Material:  f.Material,
				ColorHex:  f.ColorHex,
				Meters:    f.Meters,
				UsedGrams: f.UsedGrams,
			}
		}
	}
	if thumbPath != "" {
		a.ThumbnailPath = &thumbPath
	}
	return a, nil
}

func readSliceInfo(zr *zip.Reader) (*sliceInfo, error) {
	for _, candidate := range metadataCandidates {
		f, err := zr.Open(candidate)
		if err != nil {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(f, MaxUncompressedBytes))
		f.Close()
		if err != nil {
			continue
		}
		var info sliceInfo
		if err := json.Unmarshal(data, &info); err != nil {
			continue
		}
		return &info, nil
	}
	return nil, nil
}

// findThumbnail returns the in-archive path of the first recognized
// embedded preview image, or "" when none is present. The returned value is
// the archive-internal path, not a filesystem path — extraction to disk is
// the ingesting caller's responsibility.
func findThumbnail(zr *zip.Reader, originalName string) string {
	for _, candidate := range thumbnailCandidates {
		for _, f := range zr.File {
			if f.Name == candidate {
				return candidate
			}
		}
	}
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "Metadata/") && strings.HasSuffix(strings.ToLower(f.Name), ".png") {
			return f.Name
		}
	}
	return ""
}

func contentHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
