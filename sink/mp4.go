package sink

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"nvrcore/egress"
	"nvrcore/internal/fsutil"
	"nvrcore/internal/sysclock"
)

// mp4PollInterval is how often waitBeforeOpen re-checks the activity
// window while it is closed, matching original_source's
// usleep(500000) poll in monitor/record/mp4_record.cpp.
const mp4PollInterval = 500 * time.Millisecond

// MP4Config configures a time-segmented, optionally motion-gated MP4
// recording sink (spec §3, §4.3, §6).
type MP4Config struct {
	// OutputDir is the root recordings directory; each day's segments land
	// in OutputDir/<clock.FormatDir()>/.
	OutputDir string
	// SegmentDuration is how long a single file records before rolling
	// over to a new one.
	SegmentDuration time.Duration
	// UseMotionDetection gates recording on an externally signalled
	// activity window instead of recording continuously.
	UseMotionDetection bool
	// MotionWindow is how long the activity window stays open after the
	// most recent OnTrigger call.
	MotionWindow time.Duration

	Width, Height, FrameRate int
}

// mp4State tracks the motion-activity window and current segment's start
// time. OnTrigger can be called from any goroutine (the motion detector),
// while the run-loop-only fields (segmentStart) are only ever touched from
// the Worker's single consumer goroutine, so only activeUntil needs the
// mutex.
type mp4State struct {
	mu          sync.Mutex
	activeUntil int64

	clock sysclock.Clock
	cfg   MP4Config

	segmentStart int64
}

// activityOpen reports whether recording should be happening right now.
// Always true when motion detection isn't enabled.
func (s *mp4State) activityOpen() bool {
	if !s.cfg.UseMotionDetection {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.NowMillis() < s.activeUntil
}

// OnTrigger extends the activity window by MotionWindow from now.
func (s *mp4State) onTrigger() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeUntil = s.clock.NowMillis() + s.cfg.MotionWindow.Milliseconds()
}

// waitBeforeOpen blocks until the activity window is open (spec §4.3's
// idle state). original_source's pre-start loop inverted this condition
// (it polled while RecordNeedToQuit() was true, the opposite of what it
// needed); this corrects it to the intended semantics: poll while the
// window is closed.
func (s *mp4State) waitBeforeOpen(w *Worker) bool {
	for !s.activityOpen() {
		if !w.isRunning() {
			return false
		}
		time.Sleep(mp4PollInterval)
	}
	return w.isRunning()
}

// needsToQuit reports whether the current segment should stop because the
// activity window has closed underneath it.
func (s *mp4State) needsToQuit() bool {
	return !s.activityOpen()
}

func (s *mp4State) segmentElapsed() bool {
	return s.clock.NowMillis()-s.segmentStart > s.cfg.SegmentDuration.Milliseconds()
}

// segmentPath builds OutputDir/<day>/record_<timestamp>.mp4, ensuring the
// day directory exists first.
func (s *mp4State) segmentPath() (string, error) {
	dir := filepath.Join(s.cfg.OutputDir, s.clock.FormatDir())
	if err := fsutil.EnsureDir(dir); err != nil {
		return "", err
	}
	return filepath.Join(dir, "record_"+s.clock.FormatFile()+".mp4"), nil
}

// MP4Worker is the MP4 sink worker plus the motion-gate trigger surface an
// upstream motion detector calls into (spec §4.3).
type MP4Worker struct {
	*Worker
	state *mp4State
}

// OnTrigger records a motion event, reopening or extending the activity
// window. Safe to call from any goroutine.
func (m *MP4Worker) OnTrigger(num int32) {
	log.Printf("%s motion trigger #%d", m.logPrefix(), num)
	m.state.onTrigger()
}

// NewMP4 builds the MP4 sink worker: per-segment file rollover and an
// optional motion-gated activity window, layered on the shared Worker
// skeleton via policy hooks.
func NewMP4(cfg MP4Config) *MP4Worker {
	return newMP4(cfg, sysclock.System{})
}

// newMP4 is NewMP4 with an injectable clock, used by tests that need to
// control segment rollover and motion-window timing deterministically.
func newMP4(cfg MP4Config, clock sysclock.Clock) *MP4Worker {
	state := &mp4State{clock: clock, cfg: cfg}
	if !cfg.UseMotionDetection {
		// Activity window permanently open; activityOpen short-circuits on
		// cfg.UseMotionDetection anyway, but keep activeUntil sane.
		state.activeUntil = 1<<63 - 1
	}

	var w *Worker
	pol := policy{
		waitBeforeOpen: state.waitBeforeOpen,

		open: func() (Egress, error) {
			path, err := state.segmentPath()
			if err != nil {
				return nil, err
			}
			e := egress.NewMP4(path, cfg.Width, cfg.Height, cfg.FrameRate)
			if err := e.Open(); err != nil {
				return nil, err
			}
			log.Printf("%s opened segment %s", w.logPrefix(), path)
			return e, nil
		},

		afterOpen: func(w *Worker) {
			w.ringbuf.Clear()
			state.segmentStart = state.clock.NowMillis()
		},

		afterWrite: func(w *Worker, wrote bool) action {
			if state.needsToQuit() {
				return actionReopen
			}
			if state.segmentElapsed() {
				return actionReopen
			}
			return actionContinue
		},

		onWriteError: func(w *Worker, err error) action {
			log.Printf("%s write failed: %v", w.logPrefix(), err)
			return actionAbort
		},
	}

	w = newWorker("mp4", DefaultBufferLen, pol)
	return &MP4Worker{Worker: w, state: state}
}
