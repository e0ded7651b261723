package monitor

import (
	"image"
	"image/color"
	"image/draw"
	"sync"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/pkg/nn"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/reporter"
	"github.com/stretchr/testify/require"
)

// Returns the same objects for every frame
type fakeDetector struct {
	lock    sync.Mutex
	objects []nn.ObjectDetection
	config  nn.ModelConfig
	calls   int
}

func newFakeDetector(objects ...nn.ObjectDetection) *fakeDetector {
	return &fakeDetector{
		objects: objects,
		config: nn.ModelConfig{
			Architecture: "fake",
			Width:        320,
			Height:       320,
			Classes:      nn.COCOClasses,
		},
	}
}

func (d *fakeDetector) Close() {}

func (d *fakeDetector) Config() *nn.ModelConfig {
	return &d.config
}

func (d *fakeDetector) DetectObjects(img image.Image, params *nn.DetectionParams) ([]nn.ObjectDetection, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.calls++
	return append([]nn.ObjectDetection{}, d.objects...), nil
}

func (d *fakeDetector) set(objects ...nn.ObjectDetection) {
	d.lock.Lock()
	d.objects = objects
	d.lock.Unlock()
}

type fakeSink struct {
	lock       sync.Mutex
	detections []reporter.Detection
}

func (s *fakeSink) Add(detections []reporter.Detection) {
	s.lock.Lock()
	s.detections = append(s.detections, detections...)
	s.lock.Unlock()
}

func blackFrame() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, 200, 100))
}

func frameWithSquare(r image.Rectangle) *image.RGBA {
	img := blackFrame()
	draw.Draw(img, r, &image.Uniform{color.White}, image.Point{}, draw.Src)
	return img
}

var personBox = nn.Box{X1: 0.1, Y1: 0.2, X2: 0.5, Y2: 0.9}

func TestHighScoreIsReportedImmediately(t *testing.T) {
	det := newFakeDetector(nn.ObjectDetection{Class: 0, Confidence: 0.55, Box: personBox})
	sink := &fakeSink{}
	m, err := NewMonitor(logs.NewTestingLog(t), det, DefaultOptions(), sink)
	require.NoError(t, err)
	defer m.Close()

	watcher := m.AddWatcher(3)
	all := m.AddWatcherAllCameras()

	state, err := m.InjectFrame(3, blackFrame(), time.Now())
	require.NoError(t, err)
	require.Len(t, state.Objects, 1)
	obj := state.Objects[0]
	require.Equal(t, "person", obj.ClassName)
	require.Equal(t, 1, obj.Hits)
	require.True(t, obj.Verified())
	require.Equal(t, [4]int{20, 20, 100, 90}, obj.BBox)
	require.Equal(t, 200, state.Input.ImageWidth)

	require.Len(t, sink.detections, 1)
	require.Equal(t, "person", sink.detections[0].Class)
	require.Equal(t, 0.55, sink.detections[0].Confidence)

	require.Equal(t, state, <-watcher)
	require.Equal(t, state, <-all)
	m.RemoveWatcher(3, watcher)
	m.RemoveWatcherAllCameras(all)

	require.Equal(t, int64(1), m.Counters().VerifiedByScore)
}

func TestLowScoreNeedsPersistence(t *testing.T) {
	det := newFakeDetector(nn.ObjectDetection{Class: 2, Confidence: 0.11, Box: personBox})
	sink := &fakeSink{}
	m, err := NewMonitor(logs.NewTestingLog(t), det, DefaultOptions(), sink)
	require.NoError(t, err)
	defer m.Close()

	img := blackFrame()
	for i := 1; i <= 5; i++ {
		state, err := m.InjectFrame(1, img, time.Now())
		require.NoError(t, err)
		require.Equal(t, 1, state.ActiveTracks)
		if i < 5 {
			require.Empty(t, state.Objects, "frame %v", i)
		} else {
			require.Len(t, state.Objects, 1)
			require.Equal(t, 5, state.Objects[0].Hits)
			require.False(t, state.Objects[0].Verified())
		}
	}
	require.Len(t, sink.detections, 1)

	// The object disappears, and is forgotten after MaxAge frames
	det.set()
	for i := 0; i < 6; i++ {
		state, err := m.InjectFrame(1, img, time.Now())
		require.NoError(t, err)
		require.Equal(t, 1, state.ActiveTracks)
	}
	state, err := m.InjectFrame(1, img, time.Now())
	require.NoError(t, err)
	require.Equal(t, 0, state.ActiveTracks)

	status := m.Status()
	require.Len(t, status, 1)
	require.Equal(t, int64(1), status[0].CameraID)
	require.Equal(t, int64(12), status[0].FramesAnalyzed)
	require.Nil(t, status[0].Stream)
}

func TestMotionVerifies(t *testing.T) {
	det := newFakeDetector()
	m, err := NewMonitor(logs.NewTestingLog(t), det, DefaultOptions(), nil)
	require.NoError(t, err)
	defer m.Close()

	// Establish a background
	state, err := m.InjectFrame(1, blackFrame(), time.Now())
	require.NoError(t, err)
	require.Empty(t, state.Objects)

	// Something bright appears under a low confidence detection
	det.set(nn.ObjectDetection{Class: 0, Confidence: 0.12, Box: personBox})
	state, err = m.InjectFrame(1, frameWithSquare(image.Rect(20, 20, 100, 90)), time.Now())
	require.NoError(t, err)
	require.Len(t, state.Objects, 1)
	require.True(t, state.Objects[0].Verified())
	require.Equal(t, int64(1), m.Counters().VerifiedByMotion)
	require.Equal(t, int64(0), m.Counters().VerifiedByScore)

	img, latest := m.LatestFrame(1)
	require.NotNil(t, img)
	require.Equal(t, state, latest)
	img, latest = m.LatestFrame(99)
	require.Nil(t, img)
	require.Nil(t, latest)
}

func TestDegenerateDetectionsAreIgnored(t *testing.T) {
	det := newFakeDetector(
		nn.ObjectDetection{Class: 0, Confidence: 0.9, Box: nn.Box{X1: 0.5, Y1: 0.5, X2: 0.5, Y2: 0.7}},
		nn.ObjectDetection{Class: 0, Confidence: 0.9, Box: nn.Box{X1: 1.2, Y1: 0.1, X2: 1.5, Y2: 0.3}},
	)
	m, err := NewMonitor(logs.NewTestingLog(t), det, DefaultOptions(), nil)
	require.NoError(t, err)
	defer m.Close()

	state, err := m.InjectFrame(1, blackFrame(), time.Now())
	require.NoError(t, err)
	require.Empty(t, state.Objects)
	require.Equal(t, 0, state.ActiveTracks)
	// The raw NN output is still visible
	require.Len(t, state.Input.Objects, 2)
}

func TestClosedMonitor(t *testing.T) {
	m, err := NewMonitor(logs.NewTestingLog(t), newFakeDetector(), DefaultOptions(), nil)
	require.NoError(t, err)
	m.Close()
	_, err = m.InjectFrame(1, blackFrame(), time.Now())
	require.ErrorIs(t, err, ErrMonitorClosed)
}

// A frame that slipped past the closed check in InjectFrame must not reach the
// released background model
func TestFrameInFlightDuringClose(t *testing.T) {
	det := newFakeDetector(nn.ObjectDetection{Class: 0, Confidence: 0.55, Box: personBox})
	m, err := NewMonitor(logs.NewTestingLog(t), det, DefaultOptions(), nil)
	require.NoError(t, err)
	_, err = m.InjectFrame(1, blackFrame(), time.Now())
	require.NoError(t, err)

	s := m.getSession(1)
	require.NotNil(t, s)
	m.Close()
	_, err = m.analyze(s, blackFrame(), time.Now())
	require.ErrorIs(t, err, ErrMonitorClosed)
}

func TestConcurrentInjectAndClose(t *testing.T) {
	det := newFakeDetector(nn.ObjectDetection{Class: 0, Confidence: 0.55, Box: personBox})
	m, err := NewMonitor(logs.NewTestingLog(t), det, DefaultOptions(), nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 4*50)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := m.InjectFrame(1, blackFrame(), time.Now()); err != nil {
					errs <- err
				}
			}
		}()
	}
	time.Sleep(time.Millisecond)
	m.Close()
	wg.Wait()
	close(errs)
	for err := range errs {
		require.ErrorIs(t, err, ErrMonitorClosed)
	}
}

func TestInvalidOptions(t *testing.T) {
	opt := DefaultOptions()
	opt.Tracker.MatchIoU = 2
	_, err := NewMonitor(logs.NewTestingLog(t), newFakeDetector(), opt, nil)
	require.Error(t, err)
}
