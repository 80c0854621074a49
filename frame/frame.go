// Package frame defines the VideoFrame descriptor shared by every producer
// and sink in the dispatch fabric, and the Source interface an upstream
// capture pipeline implements to feed the core.
package frame

import (
	"encoding/binary"
	"fmt"
)

// NaluType identifies the H.264 NAL unit carried by a VideoFrame. The core
// only needs to distinguish SPS (for the gate) from everything else, but the
// full vocabulary is kept so sinks and tests can reason about cadence.
type NaluType uint8

const (
	NaluUnknown NaluType = iota
	NaluNonIDR
	NaluIDR
	NaluSEI
	NaluSPS
	NaluPPS
)

func (t NaluType) String() string {
	switch t {
	case NaluNonIDR:
		return "non-idr"
	case NaluIDR:
		return "idr"
	case NaluSEI:
		return "sei"
	case NaluSPS:
		return "sps"
	case NaluPPS:
		return "pps"
	default:
		return "unknown"
	}
}

// Descriptor is the fixed-size part of a VideoFrame: everything the ring
// buffer stores ahead of the payload bytes. It deliberately holds no pointer
// into the payload — see ring.FrameRing for why.
type Descriptor struct {
	Type NaluType
	// PTS is a monotonic presentation timestamp in milliseconds.
	PTS int64
	// Len is the payload length in bytes.
	Len uint32
}

// VideoFrame is one compressed H.264 NAL unit: a fixed descriptor plus a
// non-owning reference to its payload. The producer retains ownership of
// Data; callers that need to keep a frame past the call that handed it to
// them must copy Data themselves.
type VideoFrame struct {
	Descriptor
	Data []byte
}

func (f VideoFrame) String() string {
	return fmt.Sprintf("VideoFrame{type=%s pts=%dms len=%d}", f.Type, f.PTS, f.Len)
}

// DescriptorSize is the wire size of an encoded Descriptor: the ring stores
// this many bytes ahead of each frame's payload (spec §4.1: "a frame is
// stored as the pair (descriptor bytes, payload bytes) appended
// back-to-back").
const DescriptorSize = 1 + 8 + 4

// Encode serializes the descriptor into a fixed DescriptorSize buffer,
// ready to append to a FrameRing.
func (d Descriptor) Encode() []byte {
	buf := make([]byte, DescriptorSize)
	buf[0] = byte(d.Type)
	binary.LittleEndian.PutUint64(buf[1:9], uint64(d.PTS))
	binary.LittleEndian.PutUint32(buf[9:13], d.Len)
	return buf
}

// DecodeDescriptor deserializes a Descriptor from an Encode-produced
// buffer. buf must be at least DescriptorSize bytes.
func DecodeDescriptor(buf []byte) Descriptor {
	return Descriptor{
		Type: NaluType(buf[0]),
		PTS:  int64(binary.LittleEndian.Uint64(buf[1:9])),
		Len:  binary.LittleEndian.Uint32(buf[9:13]),
	}
}

// Source is the external frame producer collaborator named in spec §6. The
// core never constructs one; it is supplied by whatever capture/encode
// pipeline sits upstream (out of scope for this module, see
// internal/demosrc for a synthetic stand-in used by cmd/nvrcore and tests).
type Source interface {
	// Frames returns a channel the producer sends VideoFrames on. The
	// channel is closed when the source has nothing more to produce.
	Frames() <-chan VideoFrame
	// Close stops the source and releases its resources.
	Close()
}
