// Command nvrcore runs the live-egress and recording core: it pulls H.264
// frames from an upstream source and dispatches them to whichever sinks
// are configured (spec §1, §3).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"nvrcore/config"
	"nvrcore/dispatch"
	"nvrcore/internal/demosrc"
	"nvrcore/sink"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[Main] No .env file found or error loading it (this is optional): %v", err)
	} else {
		log.Println("[Main] Loaded .env file")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	disp := dispatch.New()

	var rtmpWorker *sink.Worker
	if cfg.EnableRTMP {
		rtmpWorker = sink.NewRTMP(cfg.RTMP)
		if err := rtmpWorker.Start(); err != nil {
			log.Fatalf("Failed to start RTMP sink: %v", err)
		}
		disp.Attach("rtmp", rtmpWorker)
		log.Printf("[Main] RTMP sink started (id=%s)", rtmpWorker.ID())
	}

	var mp4Worker *sink.MP4Worker
	if cfg.EnableMP4 {
		mp4Worker = sink.NewMP4(cfg.MP4)
		if err := mp4Worker.Start(); err != nil {
			log.Fatalf("Failed to start MP4 sink: %v", err)
		}
		disp.Attach("mp4", mp4Worker)
		log.Printf("[Main] MP4 sink started (id=%s)", mp4Worker.ID())
	}

	// TODO: swap demosrc for the real upstream frame.Source once the
	// capture/encode pipeline feeding this process is wired up.
	src := demosrc.New(33*time.Millisecond, 30)

	stop := make(chan struct{})
	go disp.Run(src, stop)
	log.Println("[Main] Dispatcher running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	log.Println("[Main] Shutting down...")

	close(stop)
	src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closed := make(chan struct{})
	go func() {
		if rtmpWorker != nil {
			rtmpWorker.Close()
		}
		if mp4Worker != nil {
			mp4Worker.Close()
		}
		close(closed)
	}()

	select {
	case <-closed:
	case <-ctx.Done():
		log.Printf("[Main] sinks did not stop within shutdown deadline")
	}

	log.Println("[Main] Shutdown complete")
}
