package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/motion"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/nn"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/tracker"
)

const DefaultFilename = "visiond.json"

// Duration is a time.Duration that is written in JSON as a string such as "2s" or "500ms"
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string such as \"2s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) D() time.Duration {
	return time.Duration(d)
}

type Camera struct {
	ID   int64  `json:"id"`
	Name string `json:"name"` // Friendly name
	URL  string `json:"url"`  // MJPEG stream, such as http://192.168.1.33:81/stream
}

type Model struct {
	Dir         string  `json:"dir"`         // Directory holding <name>.json and <name>.onnx
	Name        string  `json:"name"`        // eg "yolov5n"
	DownloadURL string  `json:"downloadURL"` // If not empty, missing model files are fetched from here
	OnnxLibrary string  `json:"onnxLibrary"` // Path to onnxruntime shared library. Empty uses the runtime's default.
	Threads     int     `json:"threads"`     // Intra-op threads
	Threshold   float32 `json:"threshold"`   // Minimum detection confidence
	NmsIoU      float32 `json:"nmsIoU"`
	NmsMax      int     `json:"nmsMax"`
}

type Reporter struct {
	URL          string   `json:"url"`          // Destination for detection batches. Empty disables reporting.
	SendInterval Duration `json:"sendInterval"` // Batches are sent at most this often
	Timeout      Duration `json:"timeout"`
	QueueSize    int      `json:"queueSize"` // Oldest detections are dropped beyond this
}

type Server struct {
	Listen         string   `json:"listen"`         // eg ":8080"
	DBPath         string   `json:"dbPath"`         // SQLite file holding received detections
	MaxBatches     int      `json:"maxBatches"`     // Received batches are purged beyond this
	WebhookURL     string   `json:"webhookURL"`     // Received batches are summarized and forwarded here. Empty disables.
	WebhookTimeout Duration `json:"webhookTimeout"`
	RateLimit      int      `json:"rateLimit"`  // Maximum POST /api/detections per IP per RateWindow
	RateWindow     Duration `json:"rateWindow"`
}

type Config struct {
	Cameras  []Camera            `json:"cameras"`
	Model    Model               `json:"model"`
	Tracker  tracker.Config      `json:"tracker"`
	Motion   motion.Config       `json:"motion"`
	Verify   motion.VerifyPolicy `json:"verify"`
	Reporter Reporter            `json:"reporter"`
	Server   Server              `json:"server"`
	Verbose  bool                `json:"verbose"` // Log track lifecycle events
}

func DefaultConfig() *Config {
	return &Config{
		Model: Model{
			Dir:       "models",
			Name:      "yolov5n",
			Threads:   2,
			Threshold: nn.DefaultProbabilityThreshold,
			NmsIoU:    nn.DefaultNmsIouThreshold,
			NmsMax:    nn.DefaultNmsMaxOutput,
		},
		Tracker: tracker.DefaultConfig(),
		Motion:  motion.DefaultConfig(),
		Verify:  motion.DefaultVerifyPolicy(),
		Reporter: Reporter{
			SendInterval: Duration(2 * time.Second),
			Timeout:      Duration(2 * time.Second),
			QueueSize:    100,
		},
		Server: Server{
			Listen:         ":8080",
			DBPath:         "detections.sqlite",
			MaxBatches:     1000,
			WebhookTimeout: Duration(5 * time.Second),
			RateLimit:      120,
			RateWindow:     Duration(time.Minute),
		},
	}
}

// LoadConfig reads a JSON file on top of DefaultConfig(), so that omitted fields keep their defaults.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		filename = DefaultFilename
	}
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Error loading %v: %w", filename, err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("Error loading as JSON %v: %w", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Invalid config %v: %w", filename, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	ids := map[int64]bool{}
	for _, cam := range c.Cameras {
		if ids[cam.ID] {
			return fmt.Errorf("Duplicate camera id %v", cam.ID)
		}
		ids[cam.ID] = true
		if err := validateURL(cam.URL); err != nil {
			return fmt.Errorf("Camera %v: %w", cam.ID, err)
		}
	}
	if err := c.Tracker.Validate(); err != nil {
		return fmt.Errorf("tracker: %w", err)
	}
	if c.Motion.History < 1 {
		return errors.New("motion.history must be at least 1")
	}
	if c.Motion.VarThreshold <= 0 {
		return errors.New("motion.varThreshold must be positive")
	}
	if len(c.Cameras) != 0 && (c.Model.Dir == "" || c.Model.Name == "") {
		return errors.New("model.dir and model.name are required when cameras are configured")
	}
	if c.Reporter.URL != "" {
		if err := validateURL(c.Reporter.URL); err != nil {
			return fmt.Errorf("reporter: %w", err)
		}
	}
	if c.Reporter.SendInterval <= 0 || c.Reporter.Timeout <= 0 {
		return errors.New("reporter.sendInterval and reporter.timeout must be positive")
	}
	if c.Reporter.QueueSize < 1 {
		return errors.New("reporter.queueSize must be at least 1")
	}
	if c.Server.WebhookURL != "" {
		if err := validateURL(c.Server.WebhookURL); err != nil {
			return fmt.Errorf("server.webhookURL: %w", err)
		}
	}
	if c.Server.MaxBatches < 1 {
		return errors.New("server.maxBatches must be at least 1")
	}
	if c.Server.RateLimit < 1 || c.Server.RateWindow <= 0 {
		return errors.New("server.rateLimit and server.rateWindow must be positive")
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL '%v' must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL '%v' has no host", raw)
	}
	return nil
}
