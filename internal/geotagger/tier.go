package geotagger

// Tier is the qualitative feedback bucket for a guess distance.
type Tier string

const (
	TierVeryClose Tier = "very close"
	TierClose     Tier = "close"
	TierFar       Tier = "far"
)

// Upper bounds in meters; each bound belongs to the closer tier.
const (
	VeryCloseMeters = 50
	CloseMeters     = 200
)

// ClassifyDistance buckets a distance in meters.
func ClassifyDistance(d float64) Tier {
	switch {
	case d <= VeryCloseMeters:
		return TierVeryClose
	case d <= CloseMeters:
		return TierClose
	default:
		return TierFar
	}
}
