package sink

import "testing"

func TestNewRTMPBuildsWorkerWithoutStarting(t *testing.T) {
	w := NewRTMP(RTMPConfig{URL: "rtmp://example.invalid/live/key"})
	if w == nil {
		t.Fatalf("NewRTMP returned nil")
	}
	if w.isRunning() {
		t.Fatalf("worker must not be running before Start()")
	}
}
