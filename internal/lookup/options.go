package lookup

import "time"

// Options controls the lookup protocol. Zero values take the defaults below.
type Options struct {
	TargetURL      string
	InputSelector  string
	SubmitSelector string
	ResultSelector string

	Readiness         Readiness
	NavigationTimeout time.Duration
	// FormReadyTimeout bounds one unlock round, split across FormPollCycles.
	FormReadyTimeout time.Duration
	FormPollCycles   int
	ResultTimeout    time.Duration

	MaxAttempts     int
	BackoffInterval time.Duration

	// RateLimitRPS is a global limit on attempts. Set to <=0 to disable.
	RateLimitRPS float64

	// DebugDir receives a screenshot and HTML dump on terminal failure. Empty disables.
	DebugDir string
}

const (
	DefaultTargetURL      = "https://ceebydith.com/cek-hlr-lokasi-hp.html"
	DefaultInputSelector  = "#msisdn"
	DefaultSubmitSelector = "#find"
	DefaultResultSelector = "pre.message"

	DefaultNavigationTimeout = 10 * time.Second
	DefaultFormReadyTimeout  = 9 * time.Second
	DefaultFormPollCycles    = 3
	DefaultResultTimeout     = 15 * time.Second
	DefaultMaxAttempts       = 3
	DefaultBackoffInterval   = 5 * time.Second
)

func (o Options) withDefaults() Options {
	if o.TargetURL == "" {
		o.TargetURL = DefaultTargetURL
	}
	if o.InputSelector == "" {
		o.InputSelector = DefaultInputSelector
	}
	if o.SubmitSelector == "" {
		o.SubmitSelector = DefaultSubmitSelector
	}
	if o.ResultSelector == "" {
		o.ResultSelector = DefaultResultSelector
	}
	if o.Readiness == "" {
		o.Readiness = ReadinessDOMContentLoaded
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = DefaultNavigationTimeout
	}
	if o.FormReadyTimeout <= 0 {
		o.FormReadyTimeout = DefaultFormReadyTimeout
	}
	if o.FormPollCycles <= 0 {
		o.FormPollCycles = DefaultFormPollCycles
	}
	if o.ResultTimeout <= 0 {
		o.ResultTimeout = DefaultResultTimeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BackoffInterval <= 0 {
		o.BackoffInterval = DefaultBackoffInterval
	}
	return o
}

// DefaultOptions returns the zero Options with every default applied.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}
