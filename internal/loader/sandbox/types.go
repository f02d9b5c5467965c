package sandbox

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrScriptExecutionFailed wraps every error raised by a bundle script.
	ErrScriptExecutionFailed = errors.New("script execution failed")

	ErrPoolClosed     = errors.New("sandbox pool is closed")
	ErrAcquireTimeout = errors.New("sandbox acquisition timeout")
	ErrRuntimeClosed  = errors.New("sandbox runtime is closed")
	ErrBudgetSpent    = errors.New("execution budget exceeded")
)

// Config defines sandbox limits.
type Config struct {
	Timeout        time.Duration // Wall-clock budget for the body and its timers
	MaxCallStack   int           // Maximum JS call stack depth
	EnableConsole  bool          // Capture console output
	TimerHorizon   time.Duration // Timers due later than this are never run
	MaxTimerRuns   int           // Maximum timer callbacks per execution
	AcquireTimeout time.Duration // How long to wait for a pooled runtime
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		Timeout:        2 * time.Second,
		MaxCallStack:   1024,
		EnableConsole:  true,
		TimerHorizon:   5 * time.Second,
		MaxTimerRuns:   1000,
		AcquireTimeout: 5 * time.Second,
	}
}

// LogEntry is one captured console call.
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Env is the complete set of capabilities a script is given. Strategies
// must not hand the script anything that is not reachable from here.
type Env struct {
	Document *Document
	Console  *Console

	// Filled in by the strategy.
	TimersRun     int
	TimersPending int
	Listeners     int
}

// Strategy executes script text against an Env. The script is compiled as a
// function body with the parameters (window, document) and invoked with the
// window substitute as its receiver.
type Strategy interface {
	Run(ctx context.Context, env *Env, script string) error
}

// Report describes one execution.
type Report struct {
	Ran           bool          `json:"ran"`
	Console       []LogEntry    `json:"console,omitempty"`
	TimersRun     int           `json:"timers_run"`
	TimersPending int           `json:"timers_pending"`
	Listeners     int           `json:"listeners"`
	Notice        bool          `json:"notice"`
	Error         string        `json:"error,omitempty"`
	Err           error         `json:"-"`
	Duration      time.Duration `json:"duration"`
}
