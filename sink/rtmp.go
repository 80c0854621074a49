package sink

import (
	"log"

	"nvrcore/egress"
)

// RTMPConfig configures an RTMP live-egress sink (spec §3, §6).
type RTMPConfig struct {
	// URL is the full RTMP publish endpoint, e.g. rtmp://host/app/key.
	URL string
}

// NewRTMP builds the RTMP sink worker: no segmentation, no activity
// window, reconnect on any write failure. This is the thinnest possible
// policy binding, matching original_source/monitor/live/rtmp.cpp's single
// OPENING/FEEDING loop with no quit condition beyond worker shutdown.
func NewRTMP(cfg RTMPConfig) *Worker {
	pol := policy{
		open: func() (Egress, error) {
			e := egress.NewRTMP(cfg.URL)
			if err := e.Open(); err != nil {
				return nil, err
			}
			return e, nil
		},
		onWriteError: func(w *Worker, err error) action {
			log.Printf("%s connection broke, reconnecting: %v", w.logPrefix(), err)
			return actionReopen
		},
	}
	return newWorker("rtmp", DefaultBufferLen, pol)
}
