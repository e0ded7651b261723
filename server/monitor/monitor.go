package monitor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/motion"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/nn"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/tracker"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/camera"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/reporter"
)

// monitor runs our neural network on the camera streams, and feeds the results through
// a tracker, so that we only report objects that we believe are really there.

var ErrMonitorClosed = errors.New("Monitor is closed")
var ErrCameraExists = errors.New("Camera is already being monitored")

// Number of frames that may wait for analysis, per camera.
// If the NN can't keep up, we drop frames rather than fall behind the live stream.
const frameQueueSize = 2

// DetectionSink receives confirmed detections (eg reporter.Reporter)
type DetectionSink interface {
	Add(detections []reporter.Detection)
}

type Options struct {
	Tracker   tracker.Config
	Motion    motion.Config
	Verify    motion.VerifyPolicy
	Detection nn.DetectionParams
	Verbose   bool // Log track lifecycle events
}

func DefaultOptions() Options {
	return Options{
		Tracker:   tracker.DefaultConfig(),
		Motion:    motion.DefaultConfig(),
		Verify:    motion.DefaultVerifyPolicy(),
		Detection: *nn.NewDetectionParams(),
	}
}

type Monitor struct {
	Log      logs.Log
	detector nn.ObjectDetector
	options  Options
	sink     DetectionSink // May be nil

	ctx      context.Context
	cancel   context.CancelFunc
	mustStop atomic.Bool
	threads  sync.WaitGroup

	sessionsLock sync.RWMutex
	sessions     map[int64]*session

	watchersLock       sync.RWMutex
	watchers           map[int64][]chan *AnalysisState // Watchers of a specific camera
	watchersAllCameras []chan *AnalysisState           // Watchers of all cameras

	framesAnalyzed   atomic.Int64
	framesDropped    atomic.Int64
	verifiedByScore  atomic.Int64
	verifiedByMotion atomic.Int64
}

// Monitor-wide counters
type Counters struct {
	FramesAnalyzed   int64 `json:"framesAnalyzed"`
	FramesDropped    int64 `json:"framesDropped"`
	VerifiedByScore  int64 `json:"verifiedByScore"`
	VerifiedByMotion int64 `json:"verifiedByMotion"`
}

// Create a new monitor. sink may be nil.
func NewMonitor(logger logs.Log, detector nn.ObjectDetector, options Options, sink DetectionSink) (*Monitor, error) {
	if err := options.Tracker.Validate(); err != nil {
		return nil, fmt.Errorf("Invalid tracker config: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		Log:      logger,
		detector: detector,
		options:  options,
		sink:     sink,
		ctx:      ctx,
		cancel:   cancel,
		sessions: map[int64]*session{},
		watchers: map[int64][]chan *AnalysisState{},
	}
	return m, nil
}

// Close the monitor object. The detector is not closed, because we don't own it.
func (m *Monitor) Close() {
	m.Log.Infof("Monitor shutting down")
	m.mustStop.Store(true)
	m.cancel()
	m.threads.Wait()
	m.sessionsLock.Lock()
	for _, s := range m.sessions {
		s.close()
	}
	m.sessionsLock.Unlock()
	m.Log.Infof("Monitor is closed")
}

func (m *Monitor) Options() Options {
	return m.options
}

// Classes returns the class names of the detector
func (m *Monitor) Classes() []string {
	return m.detector.Config().Classes
}

func (m *Monitor) Counters() Counters {
	return Counters{
		FramesAnalyzed:   m.framesAnalyzed.Load(),
		FramesDropped:    m.framesDropped.Load(),
		VerifiedByScore:  m.verifiedByScore.Load(),
		VerifiedByMotion: m.verifiedByMotion.Load(),
	}
}

// AddCamera starts reading from the camera, and analyzing its frames
func (m *Monitor) AddCamera(cam *camera.Camera) error {
	if m.mustStop.Load() {
		return ErrMonitorClosed
	}
	s, err := m.newSession(cam.ID, cam.Name, cam)
	if err != nil {
		return err
	}
	queue := make(chan *camera.Frame, frameQueueSize)

	m.threads.Add(2)
	go func() {
		defer m.threads.Done()
		cam.Run(m.ctx, func(frame *camera.Frame) {
			if len(queue) >= cap(queue) {
				m.framesDropped.Add(1)
				s.framesDropped.Add(1)
				return
			}
			queue <- frame
		})
		close(queue)
	}()
	go func() {
		defer m.threads.Done()
		m.analyzeThread(s, queue)
	}()
	return nil
}

func (m *Monitor) analyzeThread(s *session, queue chan *camera.Frame) {
	lastErrAt := time.Time{}
	for frame := range queue {
		if m.mustStop.Load() {
			continue
		}
		if _, err := m.analyze(s, frame.Image, frame.PTS); err != nil {
			if time.Since(lastErrAt) > 15*time.Second {
				m.Log.Errorf("Camera %v: Error detecting objects: %v", s.cameraID, err)
				lastErrAt = time.Now()
			}
		}
	}
}

// InjectFrame runs a frame through the detector and tracker of the given camera, synchronously.
// If no such camera exists, a session without a live stream is created for it.
func (m *Monitor) InjectFrame(cameraID int64, img image.Image, pts time.Time) (*AnalysisState, error) {
	if m.mustStop.Load() {
		return nil, ErrMonitorClosed
	}
	s := m.getSession(cameraID)
	if s == nil {
		var err error
		s, err = m.newSession(cameraID, fmt.Sprintf("cam%v", cameraID), nil)
		if errors.Is(err, ErrCameraExists) {
			// Another thread beat us to it
			s = m.getSession(cameraID)
		} else if err != nil {
			return nil, err
		}
	}
	return m.analyze(s, img, pts)
}

// Status returns the state of every camera, ordered by camera ID
func (m *Monitor) Status() []CameraStatus {
	m.sessionsLock.RLock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessionsLock.RUnlock()
	all := make([]CameraStatus, 0, len(sessions))
	for _, s := range sessions {
		all = append(all, s.status())
	}
	sortStatus(all)
	return all
}

// LatestFrame returns the most recently analyzed frame of a camera, and its analysis.
// Returns nil if the camera is unknown, or has not produced a frame yet.
func (m *Monitor) LatestFrame(cameraID int64) (image.Image, *AnalysisState) {
	s := m.getSession(cameraID)
	if s == nil {
		return nil, nil
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.lastImage, s.lastState
}

func (m *Monitor) getSession(cameraID int64) *session {
	m.sessionsLock.RLock()
	defer m.sessionsLock.RUnlock()
	return m.sessions[cameraID]
}

func (m *Monitor) newSession(cameraID int64, name string, cam *camera.Camera) (*session, error) {
	t, err := tracker.NewTracker(m.options.Tracker)
	if err != nil {
		return nil, err
	}
	m.sessionsLock.Lock()
	defer m.sessionsLock.Unlock()
	// Close() sets mustStop before it walks the sessions, so no session can be missed
	if m.mustStop.Load() {
		return nil, ErrMonitorClosed
	}
	if _, ok := m.sessions[cameraID]; ok {
		return nil, fmt.Errorf("%w: %v", ErrCameraExists, cameraID)
	}
	s := &session{
		cameraID:   cameraID,
		name:       name,
		camera:     cam,
		tracker:    t,
		subtractor: motion.NewSubtractor(m.options.Motion),
		announced:  map[int64]bool{},
	}
	m.sessions[cameraID] = s
	return s, nil
}
