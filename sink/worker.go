// Package sink implements the shared SinkWorker consumer skeleton (spec
// §4.2) and its two variants, RTMP (rtmp.go) and MP4 (mp4.go). Both
// original consumer loops in original_source/monitor/{live,record}/*.cpp
// are near-identical apart from egress binding and segmentation/quit
// policy; this module factors that shared machinery into Worker once,
// parameterized by a small set of policy hooks, the way spec §9 calls for
// ("a common consumer-skeleton parameterized by an egress capability").
package sink

import (
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"nvrcore/frame"
	"nvrcore/ring"
)

// DefaultBufferLen is the scratch-buffer size used when a sink doesn't
// override it — spec §4.2's BUFFER_LEN, sized well above a typical 1080p
// keyframe NAL unit.
const DefaultBufferLen = 1 << 20 // 1 MiB

// RingCapacity is the default FrameRing capacity attached to each worker.
const RingCapacity = 4 << 20 // 4 MiB

var (
	// ErrDuplicateInitialize is returned when Start is called twice on the
	// same Worker (spec §7 DuplicateInitialize).
	ErrDuplicateInitialize = errors.New("sink: worker already started")
)

// Egress is the capability a concrete sink binds the shared Worker
// skeleton to: open/write/close, matching spec §6's RTMP and MP4 egress
// contracts exactly.
type Egress interface {
	Open() error
	WriteVideoFrame(f frame.VideoFrame) error
	Close() error
}

// action is what a policy hook tells the run loop to do next.
type action int

const (
	actionContinue action = iota // keep feeding within the current session
	actionReopen                 // close the egress and return to OPENING
	actionAbort                  // fatal: the worker exits for good
)

// policy bundles every place RTMP and MP4 sinks diverge from the shared
// skeleton. A nil hook falls back to the no-op default noted per field.
type policy struct {
	// open performs OPENING for one (re)open cycle and returns the egress
	// to use for the resulting session. Any error is fatal to the worker
	// (spec §4.2: "On failure, RTMP retries later" means the next
	// reconnect-triggered OPENING call is the retry — a failure there
	// aborts just like the first, matching original_source verbatim).
	open func() (Egress, error)

	// afterOpen runs once per successful open, under the ring's lock,
	// right after awaitingSPS is armed. Default: no-op.
	afterOpen func(w *Worker)

	// afterWrite runs after each frame has been handed to the egress (or
	// dropped by the SPS gate) and decides whether to keep feeding,
	// rotate the egress, or stop. Default: always actionContinue.
	afterWrite func(w *Worker, wrote bool) action

	// onWriteError runs when WriteVideoFrame itself fails. Default:
	// actionAbort.
	onWriteError func(w *Worker, err error) action

	// waitBeforeOpen blocks until the worker should proceed to OPENING,
	// returning false if running went false while waiting. Default:
	// always proceeds immediately (RTMP has no activity window).
	waitBeforeOpen func(w *Worker) bool
}

// Worker is the shared SinkWorker state machine from spec §4.2: a
// dedicated goroutine pulling frames from its own FrameRing and handing
// them to an Egress, gated on SPS and governed by the policy hooks above.
type Worker struct {
	label string
	// id uniquely identifies this worker instance across process restarts,
	// so segment/session log lines from concurrently running sinks (e.g.
	// two MP4 workers recording different cameras) can be told apart.
	id uuid.UUID

	ringbuf *ring.FrameRing
	mu      sync.Mutex
	cond    *sync.Cond

	running     bool
	initialized bool
	awaitingSPS bool

	scratch []byte
	egress  Egress

	started bool
	done    chan struct{}

	pol policy
}

func newWorker(label string, bufferLen int, pol policy) *Worker {
	if bufferLen <= 0 {
		bufferLen = DefaultBufferLen
	}
	w := &Worker{
		label:   label,
		id:      uuid.New(),
		ringbuf: ring.New(RingCapacity),
		scratch: make([]byte, bufferLen),
		pol:     pol,
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Start launches the consumer goroutine. Calling Start twice returns
// ErrDuplicateInitialize, matching spec §7.
func (w *Worker) Start() error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return ErrDuplicateInitialize
	}
	w.started = true
	w.running = true
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.run()
	return nil
}

// Append copies one frame's descriptor and payload into the worker's
// ring, silently dropping it if there isn't room (spec §4.1 "Overflow
// policy") — this is the operation Dispatcher.OnFrame invokes per attached
// worker.
func (w *Worker) Append(f frame.VideoFrame) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return false
	}

	need := frame.DescriptorSize + int(f.Len)
	if w.ringbuf.FreeSpace() < need {
		return false
	}

	w.ringbuf.Append(f.Descriptor.Encode())
	w.ringbuf.Append(f.Data)
	w.cond.Signal()
	return true
}

// Close stops the consumer goroutine and waits for it to exit. Close is
// idempotent and safe to call from any goroutine, matching spec §5.
func (w *Worker) Close() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	if !w.running {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.running = false
	w.cond.Broadcast()
	w.mu.Unlock()

	<-w.done
}

func (w *Worker) isRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// ID returns the worker's unique instance identifier, stable for the
// worker's lifetime, for correlating its log lines across concurrently
// running sinks.
func (w *Worker) ID() uuid.UUID {
	return w.id
}

// logPrefix tags every log line from this worker with its kind and
// instance ID.
func (w *Worker) logPrefix() string {
	return "[SinkWorker:" + w.label + " " + w.id.String() + "]"
}

// run is the OPENING/FEEDING loop from spec §4.2, shared by every sink
// variant.
func (w *Worker) run() {
	defer close(w.done)
	defer func() {
		w.mu.Lock()
		w.ringbuf.Clear()
		w.mu.Unlock()
	}()

	for {
		if !w.isRunning() {
			return
		}

		if w.pol.waitBeforeOpen != nil {
			if !w.pol.waitBeforeOpen(w) {
				return
			}
			if !w.isRunning() {
				return
			}
		}

		egress, err := w.pol.open()
		if err != nil {
			log.Printf("%s open failed: %v", w.logPrefix(), err)
			return
		}

		w.mu.Lock()
		w.egress = egress
		w.initialized = true
		w.awaitingSPS = true
		if w.pol.afterOpen != nil {
			w.pol.afterOpen(w)
		}
		w.mu.Unlock()

		act := w.feedSession()

		w.mu.Lock()
		w.initialized = false
		w.mu.Unlock()
		egress.Close()

		if act == actionAbort || !w.isRunning() {
			return
		}
		// actionReopen: loop back to the top, re-entering waitBeforeOpen
		// then OPENING.
	}
}

// feedSession runs the FEEDING state until it decides to reopen or abort.
func (w *Worker) feedSession() action {
	for {
		fr, ok := w.extractFrame()
		if !ok {
			return actionAbort
		}

		if fr.Type == frame.NaluSPS {
			w.mu.Lock()
			w.awaitingSPS = false
			w.mu.Unlock()
		}

		wrote := false
		w.mu.Lock()
		gated := w.awaitingSPS
		w.mu.Unlock()

		if !gated {
			if err := w.egress.WriteVideoFrame(fr); err != nil {
				if w.pol.onWriteError != nil {
					return w.pol.onWriteError(w, err)
				}
				log.Printf("%s write failed: %v", w.logPrefix(), err)
				return actionAbort
			}
			wrote = true
		}

		if w.pol.afterWrite != nil {
			if act := w.pol.afterWrite(w, wrote); act != actionContinue {
				return act
			}
		}

		if !w.isRunning() {
			return actionAbort
		}
	}
}

// extractFrame implements the per-iteration ring contract from spec §4.2
// step 1: peek the descriptor, copy the payload into scratch, consume both,
// all under the ring lock; wait on the condition variable when empty.
func (w *Worker) extractFrame() (frame.VideoFrame, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var hdr [frame.DescriptorSize]byte
	for {
		if w.ringbuf.Peek(hdr[:], frame.DescriptorSize) {
			desc := frame.DecodeDescriptor(hdr[:])

			if !w.ringbuf.Consume(frame.DescriptorSize) {
				log.Printf("%s BufferConsumeFailed: descriptor", w.logPrefix())
				w.running = false
				return frame.VideoFrame{}, false
			}

			n := int(desc.Len)
			if n > len(w.scratch) {
				log.Printf("%s BufferConsumeFailed: payload %d exceeds scratch %d", w.logPrefix(), n, len(w.scratch))
				w.running = false
				return frame.VideoFrame{}, false
			}

			a, b := w.ringbuf.CurrentPos(n)
			if a == nil && n > 0 {
				log.Printf("%s BufferConsumeFailed: payload short", w.logPrefix())
				w.running = false
				return frame.VideoFrame{}, false
			}
			copied := copy(w.scratch, a)
			copied += copy(w.scratch[copied:], b)

			if !w.ringbuf.Consume(n) {
				log.Printf("%s BufferConsumeFailed: rest data not enough", w.logPrefix())
				w.running = false
				return frame.VideoFrame{}, false
			}

			fr := frame.VideoFrame{Descriptor: desc, Data: w.scratch[:copied]}
			return fr, true
		}

		if !w.running {
			return frame.VideoFrame{}, false
		}
		w.cond.Wait()
	}
}
