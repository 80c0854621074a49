// Package h264 provides minimal Annex-B NAL unit scanning, grounded on the
// start-code detection and NAL-type switch in unblink's
// relay/cv/frame_extractor.go (consumeH264ToFFmpeg), extracted into a
// reusable scanner instead of being inlined in one consumer.
package h264

import "nvrcore/frame"

var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// Split scans Annex-B encoded data (a byte stream using 0x00000001 start
// codes) and returns each contained NAL unit's payload, without its start
// code.
func Split(data []byte) [][]byte {
	var nalus [][]byte
	start := -1
	for i := 0; i+4 <= len(data); i++ {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 0 && data[i+3] == 1 {
			if start >= 0 {
				nalus = append(nalus, data[start:i])
			}
			start = i + 4
			i += 3
		}
	}
	if start >= 0 && start <= len(data) {
		nalus = append(nalus, data[start:])
	}
	return nalus
}

// Type classifies a raw NAL unit's first byte into the spec's NaluType
// vocabulary. Bits 0-4 of the NAL header carry the H.264 nal_unit_type.
func Type(nalu []byte) frame.NaluType {
	if len(nalu) == 0 {
		return frame.NaluUnknown
	}
	switch nalu[0] & 0x1F {
	case 7:
		return frame.NaluSPS
	case 8:
		return frame.NaluPPS
	case 5:
		return frame.NaluIDR
	case 1:
		return frame.NaluNonIDR
	case 6:
		return frame.NaluSEI
	default:
		return frame.NaluUnknown
	}
}

// WithStartCode prefixes nalu with the Annex-B start code, the same
// transformation frame_extractor.go applies before handing NAL units to
// FFmpeg.
func WithStartCode(nalu []byte) []byte {
	out := make([]byte, 0, len(startCode)+len(nalu))
	out = append(out, startCode...)
	out = append(out, nalu...)
	return out
}
