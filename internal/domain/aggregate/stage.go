package aggregate

// Stage is one growth-stage bucket over the season-fraction axis.
type Stage struct {
	Name string
	Lo   float64
	Hi   float64
}

// DefaultStages partitions [0,1] into early/mid/late. Each stage is inclusive
// at its lower bound and exclusive at its upper bound except the last, which
// closes at 1.0 so the partition is exhaustive without overlap.
var DefaultStages = []Stage{
	{Name: "early", Lo: 0.0, Hi: 0.33},
	{Name: "mid", Lo: 0.33, Hi: 0.66},
	{Name: "late", Lo: 0.66, Hi: 1.0},
}

// StageOther labels fractions that fall outside every stage.
const StageOther = "other"

// StageFor maps a season fraction to its stage name.
func StageFor(frac float64, stages []Stage) string {
	for i, s := range stages {
		last := i == len(stages)-1
		if frac >= s.Lo && (frac < s.Hi || (last && frac <= s.Hi)) {
			return s.Name
		}
	}
	return StageOther
}

// StagesForCrop resolves the stage set for a crop label: a per-crop override
// wins, otherwise the defaults apply. Crop-specific phenology only changes
// bucketing, never fraction computation.
func StagesForCrop(crop string, overrides map[string][]Stage) []Stage {
	if s, ok := overrides[crop]; ok && len(s) > 0 {
		return s
	}
	return DefaultStages
}
