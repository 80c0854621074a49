package sink

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"nvrcore/frame"
)

// fakeClock lets segmentation and motion-window tests drive NowMillis
// deterministically instead of depending on wall-clock sleeps.
type fakeClock struct {
	mu      sync.Mutex
	millis  int64
	fileSeq int
}

func (c *fakeClock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.millis
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.millis += d.Milliseconds()
}

func (c *fakeClock) FormatDir() string { return "2024-01-01" }

func (c *fakeClock) FormatFile() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fileSeq++
	return fmt.Sprintf("seg-%d", c.fileSeq)
}

func waitForFileCount(t *testing.T, dir string, want int) int {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	var got int
	for time.Now().Before(deadline) {
		entries, err := os.ReadDir(dir)
		if err == nil {
			got = len(entries)
			if got >= want {
				return got
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	return got
}

func TestMP4SegmentRollsOverOnDuration(t *testing.T) {
	outDir := t.TempDir()
	clock := &fakeClock{}
	cfg := MP4Config{
		OutputDir:       outDir,
		SegmentDuration: 100 * time.Millisecond,
		Width:           640,
		Height:          480,
		FrameRate:       15,
	}
	mw := newMP4(cfg, clock)
	if err := mw.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mw.Close()

	mw.Append(nalFrame(frame.NaluSPS, 0, string([]byte{0x67, 0x42, 0x00, 0x1f})))
	mw.Append(nalFrame(frame.NaluPPS, 0, string([]byte{0x68, 0xce, 0x3c, 0x80})))
	mw.Append(nalFrame(frame.NaluIDR, 0, "first-keyframe-payload"))

	dayDir := outDir + "/2024-01-01"
	if got := waitForFileCount(t, dayDir, 1); got < 1 {
		t.Fatalf("expected at least 1 segment file before rollover, got %d", got)
	}

	clock.advance(150 * time.Millisecond)
	mw.Append(nalFrame(frame.NaluSPS, 0, string([]byte{0x67, 0x42, 0x00, 0x1f})))
	mw.Append(nalFrame(frame.NaluIDR, 0, "second-segment-keyframe"))

	if got := waitForFileCount(t, dayDir, 2); got < 2 {
		t.Fatalf("expected segment rollover to produce a 2nd file, got %d", got)
	}
}

func TestMP4MotionGateWithholdsRecordingUntilTriggered(t *testing.T) {
	outDir := t.TempDir()
	clock := &fakeClock{}
	cfg := MP4Config{
		OutputDir:          outDir,
		SegmentDuration:    10 * time.Second,
		UseMotionDetection: true,
		MotionWindow:       5 * time.Second,
		Width:              640,
		Height:             480,
		FrameRate:          15,
	}
	mw := newMP4(cfg, clock)
	if err := mw.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mw.Close()

	dayDir := outDir + "/2024-01-01"

	time.Sleep(150 * time.Millisecond)
	if entries, _ := os.ReadDir(dayDir); len(entries) != 0 {
		t.Fatalf("recording started before any motion trigger: %d files", len(entries))
	}

	mw.OnTrigger(1)

	if got := waitForFileCount(t, dayDir, 1); got < 1 {
		t.Fatalf("expected a segment file after motion trigger, got %d", got)
	}
}
