package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/markup"
)

// Notice markup appended to the wrapper when a script fails.
const (
	NoticeAttr = "data-subapp-notice"
	NoticeText = "Script did not run (blocked or errored)"
)

var errNoStrategy = errors.New("no execution strategy configured")

// Executor runs bundle scripts against a wrapper element. It never returns
// an error or panics into its caller: failures become a notice in the
// wrapper and an entry in the Report.
type Executor struct {
	strategy Strategy
	logger   *zap.Logger
	observe  func(Report)
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithObserver is called with every report, after the notice is written.
func WithObserver(fn func(Report)) ExecutorOption {
	return func(e *Executor) { e.observe = fn }
}

// NewExecutor creates an executor backed by strategy.
func NewExecutor(strategy Strategy, logger *zap.Logger, opts ...ExecutorOption) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{strategy: strategy, logger: logger.Named("executor")}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs script with document lookups scoped to wrapper. An empty
// script does nothing.
func (e *Executor) Execute(ctx context.Context, wrapper *html.Node, script string) Report {
	if wrapper == nil || strings.TrimSpace(script) == "" {
		return Report{}
	}

	start := time.Now()
	env := &Env{
		Document: NewDocument(wrapper),
		Console:  NewConsole(e.logger),
	}

	err := e.run(ctx, env, script)

	rep := Report{
		Ran:           err == nil,
		Console:       env.Console.Entries(),
		TimersRun:     env.TimersRun,
		TimersPending: env.TimersPending,
		Listeners:     env.Listeners,
		Duration:      time.Since(start),
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrScriptExecutionFailed, err)
		rep.Err = err
		rep.Error = err.Error()
		AppendNotice(wrapper)
		rep.Notice = true
		e.logger.Warn("Bundle script failed", zap.Error(err), zap.Duration("duration", rep.Duration))
	} else {
		e.logger.Debug("Bundle script ran",
			zap.Int("timers_run", rep.TimersRun),
			zap.Int("timers_pending", rep.TimersPending),
			zap.Duration("duration", rep.Duration))
	}

	if e.observe != nil {
		e.observe(rep)
	}
	return rep
}

func (e *Executor) run(ctx context.Context, env *Env, script string) (err error) {
	if e.strategy == nil {
		return errNoStrategy
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return e.strategy.Run(ctx, env, script)
}

// AppendNotice adds the failure notice as the wrapper's last child. It
// reports false when the wrapper already carries one.
func AppendNotice(wrapper *html.Node) bool {
	for c := wrapper.FirstChild; c != nil; c = c.NextSibling {
		if _, ok := markup.Attr(c, NoticeAttr); ok && c.Type == html.ElementNode {
			return false
		}
	}
	notice := markup.NewElement("div",
		html.Attribute{Key: NoticeAttr, Val: "true"},
		html.Attribute{Key: "style", Val: "padding:12px;color:#e67e22;"},
	)
	notice.AppendChild(markup.NewText(NoticeText))
	wrapper.AppendChild(notice)
	return true
}
