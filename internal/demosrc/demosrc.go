// Package demosrc is a synthetic frame.Source that cmd/nvrcore feeds its
// sinks from, standing in for the real H.264
// capture/encode pipeline spec §1 places out of scope. It plays the same
// structural role relay/sources/mjpeg.go plays for the teacher: an
// alternate, swappable Source implementation.
package demosrc

import (
	"log"
	"time"

	"nvrcore/frame"
	"nvrcore/internal/h264"
)

// Source emits a repeating SPS, PPS, IDR, non-IDR, non-IDR, ... cadence on
// a fixed interval, so every sink downstream can SPS-sync and observe
// ongoing frame flow without a real capture source attached.
type Source struct {
	out  chan frame.VideoFrame
	stop chan struct{}
}

// New starts a synthetic source emitting frames at the given interval.
// gopSize is the number of ticks per GOP: one tick emits SPS, PPS and IDR,
// the next gopSize-1 ticks each emit one non-IDR frame.
func New(interval time.Duration, gopSize int) *Source {
	s := &Source{
		out:  make(chan frame.VideoFrame, 4),
		stop: make(chan struct{}),
	}
	go s.run(interval, gopSize)
	return s
}

func (s *Source) run(interval time.Duration, gopSize int) {
	defer close(s.out)

	sps := []byte{0x67, 0x42, 0x00, 0x1f}
	pps := []byte{0x68, 0xce, 0x3c, 0x80}
	idr := append([]byte{0x65}, make([]byte, 511)...)
	p := append([]byte{0x41}, make([]byte, 255)...)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pts int64
	seq := 0

	// emitGOP assembles the given raw NAL payloads into one Annex-B access
	// unit, the way an encoder hands a GOP to its capture pipeline, then
	// reframes it back into individual NAL units via the same scanner a
	// real upstream Source would use on raw encoder output.
	emitGOP := func(nalus ...[]byte) bool {
		var annexB []byte
		for _, n := range nalus {
			annexB = append(annexB, h264.WithStartCode(n)...)
		}
		for _, nalu := range h264.Split(annexB) {
			pts += interval.Milliseconds()
			f := frame.VideoFrame{
				Descriptor: frame.Descriptor{Type: h264.Type(nalu), PTS: pts, Len: uint32(len(nalu))},
				Data:       nalu,
			}
			select {
			case s.out <- f:
			case <-s.stop:
				return false
			}
		}
		return true
	}

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		if seq%gopSize == 0 {
			if !emitGOP(sps, pps, idr) {
				return
			}
		} else {
			if !emitGOP(p) {
				return
			}
		}
		seq++
	}
}

// Frames returns the channel synthetic frames are delivered on.
func (s *Source) Frames() <-chan frame.VideoFrame {
	return s.out
}

// Close stops the generator goroutine.
func (s *Source) Close() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
		log.Printf("[DemoSource] stopped")
	}
}
