package tracker

import "fmt"

// AssociationMode selects how candidates are paired with existing tracks
type AssociationMode string

const (
	// Candidates are visited in detector order, and each one joins the same-class track with the
	// highest IoU. A track may absorb more than one candidate in a frame.
	AssociationGreedy AssociationMode = "greedy"

	// Optimal one-to-one assignment that maximizes total IoU over the tracks that existed at the
	// start of the frame.
	AssociationHungarian AssociationMode = "hungarian"
)

// Config holds the tunables of a Tracker.
// Load it from JSON on top of DefaultConfig(), so that missing fields keep their defaults.
type Config struct {
	MatchIoU       float32         `json:"matchIoU"`       // Minimum IoU between a candidate and a track for them to be the same object
	MaxAge         int             `json:"maxAge"`         // A track is removed once it has gone more than this many updates without a match
	VerifiedWindow int             `json:"verifiedWindow"` // Number of updates that a verified candidate keeps its track verified
	MinHits        int             `json:"minHits"`        // A track with at least this many hits is confirmed
	MinAvgScore    float32         `json:"minAvgScore"`    // A track with a smoothed score at least this high is confirmed
	MinBoxArea     float32         `json:"minBoxArea"`     // Tracks with a smaller normalized area are never confirmed
	Association    AssociationMode `json:"association"`    // AssociationGreedy or AssociationHungarian
	HistorySize    int             `json:"historySize"`    // Number of recent boxes remembered per track (rounded up to a power of 2)
}

func DefaultConfig() Config {
	return Config{
		MatchIoU:       0.4,
		MaxAge:         6,
		VerifiedWindow: 6,
		MinHits:        5,
		MinAvgScore:    0.15,
		MinBoxArea:     0.02,
		Association:    AssociationGreedy,
		HistorySize:    16,
	}
}

func (c *Config) Validate() error {
	if !(c.MatchIoU > 0 && c.MatchIoU <= 1) {
		return fmt.Errorf("matchIoU must be in (0, 1], but is %v", c.MatchIoU)
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("maxAge may not be negative (%v)", c.MaxAge)
	}
	if c.VerifiedWindow < 0 {
		return fmt.Errorf("verifiedWindow may not be negative (%v)", c.VerifiedWindow)
	}
	if c.MinHits < 1 {
		return fmt.Errorf("minHits must be at least 1, but is %v", c.MinHits)
	}
	if !(c.MinAvgScore >= 0 && c.MinAvgScore <= 1) {
		return fmt.Errorf("minAvgScore must be in [0, 1], but is %v", c.MinAvgScore)
	}
	if !(c.MinBoxArea >= 0 && c.MinBoxArea <= 1) {
		return fmt.Errorf("minBoxArea must be in [0, 1], but is %v", c.MinBoxArea)
	}
	switch c.Association {
	case AssociationGreedy, AssociationHungarian:
	default:
		return fmt.Errorf("Unknown association mode '%v'", c.Association)
	}
	if c.HistorySize < 1 {
		return fmt.Errorf("historySize must be at least 1, but is %v", c.HistorySize)
	}
	return nil
}
