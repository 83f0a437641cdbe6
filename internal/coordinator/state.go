package coordinator

import (
	"errors"
	"fmt"

	"github.com/JakeFAU/jobsweep/internal/jobs"
)

// ErrInvalidTransition is returned for step state changes outside the
// PENDING -> CACHE_HIT | CALLING -> SUCCESS | FAILED -> DONE machine.
var ErrInvalidTransition = errors.New("invalid step transition")

var transitions = map[jobs.StepState][]jobs.StepState{
	jobs.StepPending:  {jobs.StepCacheHit, jobs.StepCalling},
	jobs.StepCalling:  {jobs.StepSuccess, jobs.StepFailed},
	jobs.StepCacheHit: {jobs.StepDone},
	jobs.StepSuccess:  {jobs.StepDone},
	jobs.StepFailed:   {jobs.StepDone},
}

// transition moves report to next, recording terminal outcomes.
func transition(report *jobs.StepReport, next jobs.StepState) error {
	for _, allowed := range transitions[report.State] {
		if allowed != next {
			continue
		}
		if next == jobs.StepDone {
			report.Outcome = report.State
		}
		report.State = next
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, report.State, next)
}
