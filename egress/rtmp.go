// Package egress implements the two concrete egress bindings named in spec
// §6: RTMP (this file) and MP4 (mp4.go). Both satisfy sink.Egress.
package egress

import (
	"encoding/binary"
	"fmt"
	"log"

	"github.com/ausocean/av/protocol/rtmp"

	"nvrcore/frame"
)

// flv video tag constants (ISO/IEC FLV spec, Adobe Flash Video).
const (
	flvTagTypeVideo = 9

	flvFrameTypeKey        = 1
	flvFrameTypeInter      = 2
	flvCodecIDAVC          = 7
	flvAVCPacketTypeSeqHdr = 0
	flvAVCPacketTypeNALU   = 1
)

// RTMP publishes VideoFrames to a remote RTMP endpoint via
// github.com/ausocean/av/protocol/rtmp, matching spec §6's
// open(url)/write_video_frame(frame)/close() contract. Frames are framed
// as FLV video tags (AVCC length-prefixed NAL data) before being handed to
// the underlying Conn, the way helixml-helix's fmp4_stream_handler.go
// length-prefixes NAL units for fMP4 samples, adapted here to FLV tags.
type RTMP struct {
	url  string
	conn *rtmp.Conn

	wroteSeqHdr bool
	sps, pps    []byte
}

// NewRTMP returns an unopened RTMP egress bound to url.
func NewRTMP(url string) *RTMP {
	return &RTMP{url: url}
}

func rtmpLog(level int8, msg string, params ...interface{}) {
	log.Printf("[RTMPEgress] %s", msg)
}

// Open dials the configured URL. Any error here is fatal to the calling
// SinkWorker (spec §7 EgressOpenFailed).
func (r *RTMP) Open() error {
	conn, err := rtmp.Dial(r.url, rtmpLog)
	if err != nil {
		return fmt.Errorf("rtmp dial %s: %w", r.url, err)
	}
	r.conn = conn
	r.wroteSeqHdr = false
	return nil
}

// WriteVideoFrame sends one FLV video tag for f. SPS/PPS frames are
// buffered until both are known, at which point an AVC sequence header tag
// is emitted once ahead of the first NALU tag, matching standard FLV/AVC
// framing.
func (r *RTMP) WriteVideoFrame(f frame.VideoFrame) error {
	switch f.Type {
	case frame.NaluSPS:
		r.sps = append([]byte(nil), f.Data...)
	case frame.NaluPPS:
		r.pps = append([]byte(nil), f.Data...)
	}

	if !r.wroteSeqHdr && r.sps != nil && r.pps != nil {
		if _, err := r.conn.Write(buildAVCSeqHeaderTag(r.sps, r.pps, f.PTS)); err != nil {
			return fmt.Errorf("rtmp write seq header: %w", err)
		}
		r.wroteSeqHdr = true
	}

	if f.Type == frame.NaluSPS || f.Type == frame.NaluPPS {
		// Parameter sets are carried in the sequence header, not as NALU
		// tags of their own.
		return nil
	}

	tag := buildAVCNaluTag(f)
	if _, err := r.conn.Write(tag); err != nil {
		return fmt.Errorf("rtmp write: %w", err)
	}
	return nil
}

// Close tears down the RTMP connection.
func (r *RTMP) Close() error {
	if r.conn == nil {
		return nil
	}
	r.conn.Close()
	r.conn = nil
	return nil
}

func buildFLVTagHeader(dataSize int, pts int64) []byte {
	hdr := make([]byte, 11)
	hdr[0] = flvTagTypeVideo
	hdr[1] = byte(dataSize >> 16)
	hdr[2] = byte(dataSize >> 8)
	hdr[3] = byte(dataSize)
	ts := uint32(pts)
	hdr[4] = byte(ts >> 16)
	hdr[5] = byte(ts >> 8)
	hdr[6] = byte(ts)
	hdr[7] = byte(ts >> 24)
	// StreamID is always 0.
	hdr[8], hdr[9], hdr[10] = 0, 0, 0
	return hdr
}

func buildAVCSeqHeaderTag(sps, pps []byte, pts int64) []byte {
	body := make([]byte, 0, 16+len(sps)+len(pps))
	body = append(body, flvFrameTypeKey<<4|flvCodecIDAVC, flvAVCPacketTypeSeqHdr, 0, 0, 0)
	// AVCDecoderConfigurationRecord.
	body = append(body, 1) // configurationVersion
	if len(sps) >= 4 {
		body = append(body, sps[1], sps[2], sps[3]) // profile, compat, level
	} else {
		body = append(body, 0, 0, 0)
	}
	body = append(body, 0xFF)       // lengthSizeMinusOne=3, reserved bits
	body = append(body, 0xE1)       // numSPS=1, reserved bits
	body = appendU16AndBytes(body, sps)
	body = append(body, 1) // numPPS
	body = appendU16AndBytes(body, pps)

	return append(buildFLVTagHeader(len(body), pts), body...)
}

func appendU16AndBytes(dst []byte, b []byte) []byte {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(b)))
	dst = append(dst, lenBuf[:]...)
	return append(dst, b...)
}

// buildAVCNaluTag wraps f.Data (a bare NAL unit, start-code stripped) as an
// AVCC length-prefixed sample inside one FLV video tag.
func buildAVCNaluTag(f frame.VideoFrame) []byte {
	frameType := byte(flvFrameTypeInter)
	if f.Type == frame.NaluIDR {
		frameType = flvFrameTypeKey
	}

	body := make([]byte, 0, 9+len(f.Data))
	body = append(body, frameType<<4|flvCodecIDAVC, flvAVCPacketTypeNALU, 0, 0, 0)

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(f.Data)))
	body = append(body, lenBuf[:]...)
	body = append(body, f.Data...)

	return append(buildFLVTagHeader(len(body), f.PTS), body...)
}
