package flagdeck

import "github.com/flagdeck/flagdeck/flags"

// ExposureHook receives one exposure record per successful evaluation,
// whether the answer came from the server or from the cache. Hooks run
// on the caller's goroutine and should return quickly.
type ExposureHook interface {
	Record(flags.ExposureLog)
}

// ExposureHookFunc adapts a function to the ExposureHook interface.
type ExposureHookFunc func(flags.ExposureLog)

func (f ExposureHookFunc) Record(log flags.ExposureLog) {
	f(log)
}

type noopHook struct{}

func (noopHook) Record(flags.ExposureLog) {}
