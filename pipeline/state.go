package pipeline

import (
	"fmt"
	"time"

	"github.com/use-agent/pagepipe/models"
)

// State is a stage of one run. Runs move forward only.
type State int

const (
	StateIdle State = iota
	StateSessionAcquired
	StateNavigated
	StateExtracted
	StatePersisted
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:            "idle",
	StateSessionAcquired: "session_acquired",
	StateNavigated:       "navigated",
	StateExtracted:       "extracted",
	StatePersisted:       "persisted",
	StateDone:            "done",
	StateFailed:          "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Failure is the terminal Failed state: the stage that was being entered
// when the run stopped and why.
type Failure struct {
	Stage State
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Stage, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Report describes a finished run.
type Report struct {
	RunID       string
	Strategy    string
	States      []State
	Result      *models.PipelineResult
	Failure     *Failure
	Destination models.OutputDestination

	// Durations holds the time spent reaching each state.
	Durations map[State]time.Duration
	Started   time.Time
	Finished  time.Time
}

// Final returns the last state the run reached.
func (r *Report) Final() State {
	if len(r.States) == 0 {
		return StateIdle
	}
	return r.States[len(r.States)-1]
}

// Degraded reports whether the run succeeded with an unparseable extraction.
func (r *Report) Degraded() bool {
	return r.Result != nil && r.Result.Degraded != nil
}

// Event is sent to an Observer on every state change.
type Event struct {
	RunID    string
	Strategy string
	State    State
	Elapsed  time.Duration // time spent reaching State
	Degraded bool          // set on StateDone
	Err      error         // set on StateFailed
}

// Observer receives run events. It is called synchronously and must not block.
type Observer func(Event)
