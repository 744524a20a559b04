package dispatcher

// bedDimensions is a static lookup of known printer-model-family bed
// footprints, used by compatibility checks when an artifact declares a bed
// size. Modeled on the colormatch package's predefined palette table: a
// small closed set rather than a live vendor catalog (no such catalog is
// implemented, per the Non-goal on external systems).
var bedDimensions = map[string][2]float64{
	"X1C":       {256, 256},
	"X1":        {256, 256},
	"P1P":       {256, 256},
	"P1S":       {256, 256},
	"A1":        {256, 256},
	"A1_MINI":   {180, 180},
	"ENDER3":    {220, 220},
	"ENDER3_V2": {220, 220},
	"PRUSA_MK4": {250, 210},
}

// bedDimensionsFor returns the declared bed width/depth for a model family,
// or (0, 0) when unknown, which FitsBed treats as "no declared footprint".
func bedDimensionsFor(modelFamily string) (width, depth float64) {
	dims, ok := bedDimensions[modelFamily]
	if !ok {
		return 0, 0
	}
	return dims[0], dims[1]
}
