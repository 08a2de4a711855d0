package hlr

import (
	"errors"
	"fmt"
)

var (
	// ErrNavigationTimeout means the page did not reach the requested readiness in time.
	ErrNavigationTimeout = errors.New("navigation timeout")
	// ErrFormNotInteractive means the input or submit control never left the disabled state.
	ErrFormNotInteractive = errors.New("form not interactive")
	// ErrResultTimeout means the result container never showed a success or error marker.
	ErrResultTimeout = errors.New("result timeout")
	// ErrChallenge means the target served an anti-bot interstitial instead of the form.
	ErrChallenge = errors.New("challenge page served")
	// ErrSessionFatal means the page session is unusable (browser gone, page closed).
	// It is never retried at the attempt level.
	ErrSessionFatal = errors.New("page session unusable")
)

// Step names one phase of the lookup protocol.
type Step string

const (
	StepReset   Step = "reset"
	StepUnlock  Step = "unlock"
	StepSubmit  Step = "submit"
	StepAwait   Step = "await"
	StepExtract Step = "extract"
)

// StepError records which protocol step failed on which attempt.
type StepError struct {
	Step    Step
	Attempt int
	Err     error
}

func (e *StepError) Error() string {
	if e == nil || e.Err == nil {
		return "lookup step failed"
	}
	return fmt.Sprintf("attempt %d: %s: %s", e.Attempt, e.Step, e.Err.Error())
}

func (e *StepError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsSessionFatal reports whether err means the page session can no longer be used.
func IsSessionFatal(err error) bool {
	return errors.Is(err, ErrSessionFatal)
}
