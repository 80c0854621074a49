// Package dispatch implements the Dispatcher that fans each incoming
// VideoFrame out to every attached sink worker (spec §4, §6), the same
// broadcast-to-listeners shape as relay/cv/events.go's CVEventBus.
package dispatch

import (
	"sync"

	"nvrcore/frame"
)

// sinkAppender is the subset of sink.Worker's surface the Dispatcher
// needs: something it can hand frames to without caring whether it's the
// RTMP worker, the MP4 worker, or a test double.
type sinkAppender interface {
	Append(f frame.VideoFrame) bool
}

// Dispatcher fans frames from one upstream Source out to every attached
// sink, each into its own ring independently, matching spec §4's "the
// dispatcher hands the same frame to every attached sink worker, who each
// buffer it independently."
type Dispatcher struct {
	mu    sync.RWMutex
	sinks map[string]sinkAppender
}

// New returns an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{sinks: make(map[string]sinkAppender)}
}

// Attach registers a sink under name, replacing any previous sink
// registered under the same name.
func (d *Dispatcher) Attach(name string, s sinkAppender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks[name] = s
}

// Detach unregisters the sink under name, if any.
func (d *Dispatcher) Detach(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sinks, name)
}

// OnFrame hands f to every attached sink's ring. A sink that is full or
// stopped simply drops the frame, silently — spec §4.1's overflow policy
// ("not reported") exists precisely so a saturated sink never back-pressures
// the producer or floods the log.
func (d *Dispatcher) OnFrame(f frame.VideoFrame) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, s := range d.sinks {
		s.Append(f)
	}
}

// Run reads frames from src until it closes or stop is closed, dispatching
// each one. Run blocks; callers typically invoke it in its own goroutine.
func (d *Dispatcher) Run(src frame.Source, stop <-chan struct{}) {
	frames := src.Frames()
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return
			}
			d.OnFrame(f)
		case <-stop:
			return
		}
	}
}
