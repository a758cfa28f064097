package timer

import (
	"fmt"
	"time"
)

// ElapsedSince returns whole seconds from start to now, recomputed from the
// absolute anchor every time. Clock skew that puts start in the future
// yields 0.
func ElapsedSince(start, now time.Time) int64 {
	d := now.Sub(start)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}

// FormatElapsed renders seconds as zero-padded HH:MM:SS. Hours keep growing
// past 24.
func FormatElapsed(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
