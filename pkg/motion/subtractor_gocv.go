//go:build gocv

package motion

// NewSubtractor creates the background subtractor for this build
func NewSubtractor(cfg Config) Subtractor {
	return NewMOG2(cfg.History, float64(cfg.VarThreshold))
}
