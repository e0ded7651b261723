//go:build !gocv

package motion

// NewSubtractor creates the background subtractor for this build
func NewSubtractor(cfg Config) Subtractor {
	return NewRunningGaussian(cfg.History, cfg.VarThreshold)
}
