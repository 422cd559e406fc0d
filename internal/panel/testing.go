//go:build testing

package panel

import "time"

// SetNetSampleInterval overrides the pause between the two status polls and
// returns a function restoring the previous value.
func SetNetSampleInterval(d time.Duration) (restore func()) {
	prev := netSampleInterval
	netSampleInterval = d
	return func() { netSampleInterval = prev }
}

// SetTimeouts overrides the read and operate request timeouts and returns a
// function restoring the previous values.
func SetTimeouts(read, operate time.Duration) (restore func()) {
	prevRead, prevOperate := readTimeout, operateTimeout
	readTimeout, operateTimeout = read, operate
	return func() { readTimeout, operateTimeout = prevRead, prevOperate }
}
