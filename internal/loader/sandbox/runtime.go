package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// windowGlobals are mirrored onto the VM's global object so scripts can call
// them unqualified, as they would in a browser.
var windowGlobals = []string{
	"console",
	"setTimeout",
	"setInterval",
	"clearTimeout",
	"clearInterval",
}

// Runtime wraps a goja VM with execution limits
type Runtime struct {
	vm     *goja.Runtime
	config Config
	logger *zap.Logger
	mu     sync.Mutex
	closed bool
}

// New creates a new sandboxed runtime
func New(config Config, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runtime{
		config: config,
		logger: logger,
	}
	if err := r.reset(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runtime) reset() error {
	r.vm = goja.New()
	if r.config.MaxCallStack > 0 {
		r.vm.SetMaxCallStackSize(r.config.MaxCallStack)
	}
	return r.setupGlobals()
}

// setupGlobals removes host-ish globals a script could probe for
func (r *Runtime) setupGlobals() error {
	for _, name := range []string{"require", "process", "module", "exports", "global", "globalThis"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return fmt.Errorf("failed to clear %s: %w", name, err)
		}
	}
	return nil
}

// Run compiles script as a function body over (window, document) and calls
// it with window as the receiver, then drains due timers. The whole run,
// timers included, is bounded by Config.Timeout and ctx.
func (r *Runtime) Run(ctx context.Context, env *Env, script string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.vm == nil {
		return ErrRuntimeClosed
	}
	if env == nil || env.Document == nil {
		return errors.New("sandbox env has no document")
	}
	if !r.config.EnableConsole {
		env.Console.Disable()
	}

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	r.vm.ClearInterrupt()
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	defer func() {
		close(done)
		wg.Wait()
		r.vm.ClearInterrupt()
	}()

	b := newBridge(r.vm, env, r.logger)
	document := b.document()
	window := b.window(document)
	for _, name := range windowGlobals {
		if err := r.vm.Set(name, window.Get(name)); err != nil {
			return fmt.Errorf("failed to install %s: %w", name, err)
		}
	}

	err := r.call(ctx, b, window, document, script)
	env.TimersPending = len(b.timers.pending)
	env.Listeners = b.listenerCount()
	return r.classify(ctx, err)
}

func (r *Runtime) call(ctx context.Context, b *bridge, window, document *goja.Object, script string) error {
	ctor, ok := goja.AssertFunction(r.vm.Get("Function"))
	if !ok {
		return errors.New("Function constructor unavailable")
	}
	compiled, err := ctor(goja.Undefined(), r.vm.ToValue("window"), r.vm.ToValue("document"), r.vm.ToValue(script))
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	fn, ok := goja.AssertFunction(compiled)
	if !ok {
		return errors.New("compiled script is not callable")
	}

	if _, err := fn(window, window, document); err != nil {
		return err
	}

	runs, err := b.timers.drain(ctx, window, r.config.TimerHorizon, r.config.MaxTimerRuns)
	b.env.TimersRun = runs
	if err != nil {
		return fmt.Errorf("timer callback: %w", err)
	}
	return nil
}

// classify maps interrupts to the budget or cancellation that caused them.
func (r *Runtime) classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) || errors.Is(err, ctx.Err()) {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrBudgetSpent, err)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ctx.Err(), err)
		}
	}
	return err
}

// Reset replaces the VM so no script state survives into the next run
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRuntimeClosed
	}
	return r.reset()
}

// Close releases resources
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.vm = nil
	return nil
}
