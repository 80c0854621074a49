package egress

import (
	"bytes"
	"fmt"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"

	"nvrcore/frame"
)

// mp4Timescale is the fMP4 track timescale used throughout, matching the
// 90kHz convention helixml-helix's fmp4_stream_handler.go uses for video.
const mp4Timescale = 90000

// MP4 writes a fragmented MP4 file: an init segment (ftyp+moov) is written
// once the first SPS/PPS pair is known, followed by one moof+mdat fragment
// per subsequent non-SPS/PPS frame. Matches spec §6's MP4 egress contract
// (open(path,w,h,fps)/write_video_frame(frame)/close()).
type MP4 struct {
	path          string
	width, height uint32
	frameRate     int

	f *os.File

	sps, pps    []byte
	initialized bool
	frameNum    uint32
	baseTime    int64
	lastPTS     int64
}

// NewMP4 returns an unopened MP4 egress that will write to path once
// Open is called.
func NewMP4(path string, width, height, frameRate int) *MP4 {
	return &MP4{
		path:      path,
		width:     uint32(width),
		height:    uint32(height),
		frameRate: frameRate,
	}
}

// Open creates the segment file. Any error here is fatal to the calling
// SinkWorker (spec §7 FilesystemError/EgressOpenFailed).
func (m *MP4) Open() error {
	f, err := os.Create(m.path)
	if err != nil {
		return fmt.Errorf("create segment file %s: %w", m.path, err)
	}
	m.f = f
	m.initialized = false
	m.sps, m.pps = nil, nil
	m.frameNum = 0
	return nil
}

// WriteVideoFrame accumulates SPS/PPS until both are known (writing the
// init segment once), then muxes every subsequent frame as one fragment.
// SPS/PPS frames only update the stored parameter sets and are never
// written as fragments; frames arriving before both are known are dropped.
func (m *MP4) WriteVideoFrame(fr frame.VideoFrame) error {
	switch fr.Type {
	case frame.NaluSPS:
		m.sps = append([]byte(nil), fr.Data...)
	case frame.NaluPPS:
		m.pps = append([]byte(nil), fr.Data...)
	}

	if !m.initialized && m.sps != nil && m.pps != nil {
		if err := m.writeInitSegment(); err != nil {
			return fmt.Errorf("write init segment: %w", err)
		}
		m.initialized = true
		m.baseTime = fr.PTS
		m.lastPTS = fr.PTS
	}

	if !m.initialized {
		return nil
	}
	if fr.Type == frame.NaluSPS || fr.Type == frame.NaluPPS {
		return nil
	}

	return m.writeFragment(fr)
}

// writeInitSegment builds the ftyp+moov box tree from the current SPS/PPS,
// following helixml-helix/api/pkg/server/fmp4_stream_handler.go's
// writeInitSegment almost verbatim, adapted to write to a file instead of
// an HTTP response.
func (m *MP4) writeInitSegment() error {
	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(mp4Timescale, "video", "und")

	trak := init.Moov.Trak
	stsd := trak.Mdia.Minf.Stbl.Stsd

	avcC, err := mp4.CreateAvcC([][]byte{m.sps}, [][]byte{m.pps}, true)
	if err != nil {
		return fmt.Errorf("create avcC: %w", err)
	}

	avcx := mp4.CreateVisualSampleEntryBox("avc1", uint16(m.width), uint16(m.height), avcC)
	stsd.AddChild(avcx)

	var buf bytes.Buffer
	if err := init.Encode(&buf); err != nil {
		return fmt.Errorf("encode init segment: %w", err)
	}
	if _, err := m.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write init segment: %w", err)
	}
	return nil
}

// writeFragment builds one moof+mdat fragment carrying a single AVCC
// length-prefixed sample for fr.
func (m *MP4) writeFragment(fr frame.VideoFrame) error {
	m.frameNum++

	decodeTime := uint64(fr.PTS - m.baseTime)

	sampleDur := uint32(mp4Timescale / max(1, m.frameRate))
	if m.lastPTS > 0 && fr.PTS > m.lastPTS {
		sampleDur = uint32((fr.PTS - m.lastPTS) * mp4Timescale / 1000)
	}
	m.lastPTS = fr.PTS

	var lenBuf [4]byte
	sampleData := make([]byte, 0, 4+len(fr.Data))
	be32(lenBuf[:], uint32(len(fr.Data)))
	sampleData = append(sampleData, lenBuf[:]...)
	sampleData = append(sampleData, fr.Data...)

	frag, err := mp4.CreateFragment(m.frameNum, 1)
	if err != nil {
		return fmt.Errorf("create fragment: %w", err)
	}

	sample := mp4.FullSample{
		Sample: mp4.Sample{
			Flags: mp4.NonSyncSampleFlags,
			Dur:   sampleDur,
			Size:  uint32(len(sampleData)),
		},
		DecodeTime: decodeTime,
		Data:       sampleData,
	}
	if fr.Type == frame.NaluIDR {
		sample.Sample.Flags = mp4.SyncSampleFlags
	}
	frag.AddFullSample(sample)

	var buf bytes.Buffer
	if err := frag.Encode(&buf); err != nil {
		return fmt.Errorf("encode fragment: %w", err)
	}
	if _, err := m.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write fragment: %w", err)
	}
	return nil
}

// Close flushes and closes the segment file.
func (m *MP4) Close() error {
	if m.f == nil {
		return nil
	}
	err := m.f.Close()
	m.f = nil
	return err
}

func be32(dst []byte, v uint32) {
	dst[0] = byte(v >> 24)
	dst[1] = byte(v >> 16)
	dst[2] = byte(v >> 8)
	dst[3] = byte(v)
}
