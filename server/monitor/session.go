package monitor

import (
	"image"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/motion"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/nn"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/perfstats"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/tracker"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/camera"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/reporter"
)

// An object that the tracker has confirmed
type TrackedObject struct {
	tracker.Track
	ClassName string `json:"className"`
	BBox      [4]int `json:"bbox"` // x1,y1,x2,y2 in pixels of the camera image
}

// Result of post-process analysis on the Object Detection neural network output
type AnalysisState struct {
	CameraID     int64               `json:"cameraID"`
	Input        *nn.DetectionResult `json:"input"`
	Objects      []TrackedObject     `json:"objects"`      // Confirmed tracks only
	ActiveTracks int                 `json:"activeTracks"` // Confirmed and unconfirmed
}

// Status of a single camera
type CameraStatus struct {
	CameraID        int64         `json:"cameraID"`
	Name            string        `json:"name"`
	Stream          *camera.Stats `json:"stream,omitempty"` // nil for cameras without a live stream
	FramesAnalyzed  int64         `json:"framesAnalyzed"`
	FramesDropped   int64         `json:"framesDropped"`
	ActiveTracks    int           `json:"activeTracks"`
	ConfirmedTracks int           `json:"confirmedTracks"`
	LastAnalysis    time.Time     `json:"lastAnalysis"`
	MotionTimeMS    float64       `json:"motionTimeMS"` // Average time spent on background subtraction
	DetectTimeMS    float64       `json:"detectTimeMS"` // Average time spent in the NN
}

// Per-camera state. The tracker and subtractor are only touched while holding processLock.
type session struct {
	cameraID   int64
	name       string
	camera     *camera.Camera // nil for injected frames
	tracker    *tracker.Tracker
	subtractor motion.Subtractor
	announced  map[int64]bool // Tracks that have been logged as confirmed
	lastErrAt  time.Time

	processLock sync.Mutex
	closed      bool // Set under processLock once the subtractor is released

	framesAnalyzed atomic.Int64
	framesDropped  atomic.Int64

	lock         sync.Mutex // Guards the fields below
	lastImage    image.Image
	lastState    *AnalysisState
	lastAnalysis time.Time
	motionTime   perfstats.TimeAccumulator
	detectTime   perfstats.TimeAccumulator
}

func (s *session) status() CameraStatus {
	st := CameraStatus{
		CameraID:       s.cameraID,
		Name:           s.name,
		FramesAnalyzed: s.framesAnalyzed.Load(),
		FramesDropped:  s.framesDropped.Load(),
	}
	if s.camera != nil {
		stream := s.camera.Stats()
		st.Stream = &stream
	}
	s.lock.Lock()
	if s.lastState != nil {
		st.ActiveTracks = s.lastState.ActiveTracks
		st.ConfirmedTracks = len(s.lastState.Objects)
	}
	st.LastAnalysis = s.lastAnalysis
	st.MotionTimeMS = s.motionTime.AverageMilliseconds()
	st.DetectTimeMS = s.detectTime.AverageMilliseconds()
	s.lock.Unlock()
	return st
}

func sortStatus(all []CameraStatus) {
	sort.Slice(all, func(i, j int) bool {
		return all[i].CameraID < all[j].CameraID
	})
}

// Release the per-camera resources. Waits for a frame that is being analyzed.
func (s *session) close() {
	s.processLock.Lock()
	defer s.processLock.Unlock()
	if !s.closed {
		s.closed = true
		s.subtractor.Close()
	}
}

// analyze runs one frame through motion detection, the NN, and the tracker
func (m *Monitor) analyze(s *session, img image.Image, pts time.Time) (*AnalysisState, error) {
	s.processLock.Lock()
	defer s.processLock.Unlock()
	if s.closed {
		return nil, ErrMonitorClosed
	}

	width := img.Bounds().Dx()
	height := img.Bounds().Dy()

	start := time.Now()

	// The background model must see every frame, even if the NN fails
	mask, err := s.subtractor.Apply(img)
	if err != nil {
		if time.Since(s.lastErrAt) > 15*time.Second {
			m.Log.Warnf("Camera %v: Motion detection failed: %v", s.cameraID, err)
			s.lastErrAt = time.Now()
		}
		mask = nil
	}

	motionDone := time.Now()
	objects, err := m.detector.DetectObjects(img, &m.options.Detection)
	if err != nil {
		return nil, err
	}
	detectDone := time.Now()

	candidates := make([]tracker.Candidate, 0, len(objects))
	for _, obj := range objects {
		r := obj.Box.ToPixels(width, height)
		if r.Empty() {
			continue
		}
		verified, reason := m.options.Verify.Verify(obj.Confidence, motion.Fraction(mask, r))
		switch reason {
		case motion.ReasonScore:
			m.verifiedByScore.Add(1)
		case motion.ReasonMotion:
			m.verifiedByMotion.Add(1)
		}
		candidates = append(candidates, tracker.Candidate{
			Class:       obj.Class,
			Box:         obj.Box,
			Score:       obj.Confidence,
			VerifiedNow: verified,
		})
	}

	confirmed := s.tracker.Update(candidates)
	classes := m.detector.Config().Classes

	state := &AnalysisState{
		CameraID: s.cameraID,
		Input: &nn.DetectionResult{
			CameraID:    s.cameraID,
			ImageWidth:  width,
			ImageHeight: height,
			Objects:     objects,
			FramePTS:    pts,
		},
		Objects:      make([]TrackedObject, 0, len(confirmed)),
		ActiveTracks: s.tracker.NumTracks(),
	}
	detections := make([]reporter.Detection, 0, len(confirmed))
	for i := range confirmed {
		t := &confirmed[i]
		d := reporter.MakeDetection(t, classes, width, height)
		state.Objects = append(state.Objects, TrackedObject{
			Track:     *t,
			ClassName: d.Class,
			BBox:      d.BBox,
		})
		detections = append(detections, d)
	}
	m.logTrackEvents(s, state)

	m.framesAnalyzed.Add(1)
	s.framesAnalyzed.Add(1)
	s.lock.Lock()
	s.lastImage = img
	s.lastState = state
	s.lastAnalysis = time.Now()
	s.motionTime.AddSample(motionDone.Sub(start))
	s.detectTime.AddSample(detectDone.Sub(motionDone))
	s.lock.Unlock()

	if m.sink != nil && len(detections) != 0 {
		m.sink.Add(detections)
	}
	m.sendToWatchers(state)
	return state, nil
}

// Log newly confirmed tracks, and forget tracks that are no longer reported
func (m *Monitor) logTrackEvents(s *session, state *AnalysisState) {
	seen := make(map[int64]bool, len(state.Objects))
	for _, obj := range state.Objects {
		seen[obj.ID] = true
		if !s.announced[obj.ID] {
			s.announced[obj.ID] = true
			if m.options.Verbose {
				m.Log.Infof("Camera %v: Confirmed %v #%v (score %.2f, hits %v, verified %v) at %v",
					s.cameraID, obj.ClassName, obj.ID, obj.Score, obj.Hits, obj.Verified(), obj.BBox)
			}
		}
	}
	for id := range s.announced {
		if !seen[id] {
			delete(s.announced, id)
			if m.options.Verbose {
				m.Log.Infof("Camera %v: #%v is no longer confirmed", s.cameraID, id)
			}
		}
	}
}
