// Package config loads the nvrcore process's environment-based
// configuration, following relay/config.go's missing-var accumulation and
// validation-error pattern.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"nvrcore/sink"
)

// Config holds all nvrcore configuration loaded from the environment.
type Config struct {
	RTMP sink.RTMPConfig
	MP4  sink.MP4Config

	// EnableRTMP/EnableMP4 let either sink be disabled entirely, since
	// spec §3 only requires that a frame reach "the sinks that are
	// configured," not that both always run.
	EnableRTMP bool
	EnableMP4  bool
}

// LoadConfig loads and validates all configuration from the environment.
func LoadConfig() (*Config, error) {
	var missingVars []string
	var errs []string

	enableRTMP := os.Getenv("RTMP_ENABLED") != "false"
	enableMP4 := os.Getenv("MP4_ENABLED") != "false"

	var rtmpURL string
	if enableRTMP {
		rtmpURL = os.Getenv("RTMP_URL")
		if rtmpURL == "" {
			missingVars = append(missingVars, "RTMP_URL")
		}
	}

	var outputDir string
	var segmentSeconds int
	var useMotion bool
	var motionWindowSeconds int
	var width, height, frameRate int

	if enableMP4 {
		outputDir = os.Getenv("MP4_OUTPUT_DIR")
		if outputDir == "" {
			missingVars = append(missingVars, "MP4_OUTPUT_DIR")
		}

		segmentSecondsStr := os.Getenv("MP4_SEGMENT_SECONDS")
		if segmentSecondsStr == "" {
			missingVars = append(missingVars, "MP4_SEGMENT_SECONDS")
		} else if parsed, err := strconv.Atoi(segmentSecondsStr); err != nil || parsed <= 0 {
			errs = append(errs, fmt.Sprintf("MP4_SEGMENT_SECONDS must be a positive number, got: %s", segmentSecondsStr))
		} else {
			segmentSeconds = parsed
		}

		useMotion = os.Getenv("MP4_USE_MOTION_DETECTION") == "true" || os.Getenv("MP4_USE_MOTION_DETECTION") == "1"

		motionWindowSeconds = 30
		if val := os.Getenv("MP4_MOTION_WINDOW_SECONDS"); val != "" {
			if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
				motionWindowSeconds = parsed
			} else {
				errs = append(errs, fmt.Sprintf("MP4_MOTION_WINDOW_SECONDS must be a positive number, got: %s", val))
			}
		}

		width = intFromEnv("MP4_WIDTH", 1920, &errs)
		height = intFromEnv("MP4_HEIGHT", 1080, &errs)
		frameRate = intFromEnv("MP4_FRAME_RATE", 15, &errs)
	}

	if len(missingVars) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v\nPlease set them in .env file or environment", missingVars)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation errors:\n%v", errs)
	}

	cfg := &Config{
		EnableRTMP: enableRTMP,
		EnableMP4:  enableMP4,
		RTMP: sink.RTMPConfig{
			URL: rtmpURL,
		},
		MP4: sink.MP4Config{
			OutputDir:          outputDir,
			SegmentDuration:    time.Duration(segmentSeconds) * time.Second,
			UseMotionDetection: useMotion,
			MotionWindow:       time.Duration(motionWindowSeconds) * time.Second,
			Width:              width,
			Height:             height,
			FrameRate:          frameRate,
		},
	}

	log.Printf("[Config] Loaded configuration:")
	log.Printf("[Config]   RTMP_ENABLED: %v", cfg.EnableRTMP)
	if cfg.EnableRTMP {
		log.Printf("[Config]   RTMP_URL: %s", cfg.RTMP.URL)
	}
	log.Printf("[Config]   MP4_ENABLED: %v", cfg.EnableMP4)
	if cfg.EnableMP4 {
		log.Printf("[Config]   MP4_OUTPUT_DIR: %s", cfg.MP4.OutputDir)
		log.Printf("[Config]   MP4_SEGMENT_SECONDS: %v", cfg.MP4.SegmentDuration)
		log.Printf("[Config]   MP4_USE_MOTION_DETECTION: %v", cfg.MP4.UseMotionDetection)
		log.Printf("[Config]   MP4_MOTION_WINDOW: %v", cfg.MP4.MotionWindow)
		log.Printf("[Config]   MP4_WIDTH/HEIGHT/FRAME_RATE: %d/%d/%d", cfg.MP4.Width, cfg.MP4.Height, cfg.MP4.FrameRate)
	}

	return cfg, nil
}

func intFromEnv(key string, def int, errs *[]string) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s must be a positive number, got: %s", key, val))
		return def
	}
	return parsed
}
