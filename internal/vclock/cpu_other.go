//go:build !linux

package vclock

import "time"

// cpuClock falls back to process-wall elapsed time on platforms without a
// cheap per-thread CPU clock syscall exposed through golang.org/x/sys.
// Ticks are still monotonic and usable for relative comparisons; they are
// just not true per-thread CPU consumption outside linux.
type cpuClock struct {
	epoch time.Time
}

func newCPUClock() *cpuClock {
	return &cpuClock{epoch: time.Now()}
}

func (c *cpuClock) Tick() int64 {
	return int64(time.Since(c.epoch))
}

func (c *cpuClock) TicksPerSecond() int64 {
	return int64(time.Second)
}

func (c *cpuClock) Info() Info {
	return Info{APIName: "time.monotonic (cpu-clock fallback)", ResolutionSeconds: 1e-9}
}
