package motion

// Background model settings
type Config struct {
	History      int     `json:"history"`      // Number of frames that make up the background
	VarThreshold float32 `json:"varThreshold"` // Squared Mahalanobis distance for a pixel to be foreground
}

func DefaultConfig() Config {
	return Config{
		History:      200,
		VarThreshold: 25,
	}
}
