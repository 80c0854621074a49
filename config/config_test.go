package config

import (
	"os"
	"testing"
)

func clearNVRCoreEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"RTMP_ENABLED", "RTMP_URL",
		"MP4_ENABLED", "MP4_OUTPUT_DIR", "MP4_SEGMENT_SECONDS",
		"MP4_USE_MOTION_DETECTION", "MP4_MOTION_WINDOW_SECONDS",
		"MP4_WIDTH", "MP4_HEIGHT", "MP4_FRAME_RATE",
	} {
		os.Unsetenv(k)
	}
}

func TestLoadConfigMissingRTMPURL(t *testing.T) {
	clearNVRCoreEnv(t)
	os.Setenv("MP4_ENABLED", "false")
	defer clearNVRCoreEnv(t)

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when RTMP_URL is missing while RTMP is enabled")
	}
}

func TestLoadConfigRTMPOnly(t *testing.T) {
	clearNVRCoreEnv(t)
	os.Setenv("RTMP_URL", "rtmp://example.invalid/live/key")
	os.Setenv("MP4_ENABLED", "false")
	defer clearNVRCoreEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.EnableRTMP || cfg.EnableMP4 {
		t.Fatalf("EnableRTMP=%v EnableMP4=%v, want true/false", cfg.EnableRTMP, cfg.EnableMP4)
	}
	if cfg.RTMP.URL != "rtmp://example.invalid/live/key" {
		t.Fatalf("RTMP.URL = %q", cfg.RTMP.URL)
	}
}

func TestLoadConfigMP4Defaults(t *testing.T) {
	clearNVRCoreEnv(t)
	os.Setenv("RTMP_ENABLED", "false")
	os.Setenv("MP4_OUTPUT_DIR", "/tmp/recordings")
	os.Setenv("MP4_SEGMENT_SECONDS", "600")
	defer clearNVRCoreEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MP4.Width != 1920 || cfg.MP4.Height != 1080 || cfg.MP4.FrameRate != 15 {
		t.Fatalf("MP4 defaults = %+v", cfg.MP4)
	}
	if cfg.MP4.UseMotionDetection {
		t.Fatalf("UseMotionDetection should default to false")
	}
}

func TestLoadConfigInvalidSegmentSeconds(t *testing.T) {
	clearNVRCoreEnv(t)
	os.Setenv("RTMP_ENABLED", "false")
	os.Setenv("MP4_OUTPUT_DIR", "/tmp/recordings")
	os.Setenv("MP4_SEGMENT_SECONDS", "not-a-number")
	defer clearNVRCoreEnv(t)

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for non-numeric MP4_SEGMENT_SECONDS")
	}
}
