// Package sysclock provides the monotonic clock and local-time formatting
// the original implementation calls System::GetSteadyMilliSeconds() and
// System::GetLocalTime(). Every caller in this module goes through here so
// tests can swap in a fake.
package sysclock

import "time"

// Directory and file timestamp layouts, reproduced verbatim from
// original_source/monitor/record/mp4_record.cpp's RECORD_DIR_FORMAT and
// RECORD_FILE_FORMAT (spec §4.4).
const (
	DirFormat  = "2006-01-02"
	FileFormat = "2006-01-02_15-04-05"
)

// Clock is the monotonic-time and local-time-formatting collaborator named
// in spec §6. System is the real implementation; its zero value is ready
// to use.
type Clock interface {
	// NowMillis returns a monotonic millisecond timestamp. Only
	// differences between two calls are meaningful.
	NowMillis() int64
	// FormatDir returns the current local time formatted as DirFormat.
	FormatDir() string
	// FormatFile returns the current local time formatted as FileFormat.
	FormatFile() string
}

// System is the real Clock, backed by time.Now(). Its monotonic guarantee
// comes from Go's runtime-level monotonic reading embedded in time.Time
// values, the same property original_source relies on from
// std::chrono::steady_clock.
type System struct{}

var epoch = time.Now()

// NowMillis returns milliseconds elapsed since process start, monotonic
// for the lifetime of the process.
func (System) NowMillis() int64 {
	return time.Since(epoch).Milliseconds()
}

func (System) FormatDir() string {
	return time.Now().Format(DirFormat)
}

func (System) FormatFile() string {
	return time.Now().Format(FileFormat)
}
