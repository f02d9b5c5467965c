package loader

import (
	"errors"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/fetch"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/markup"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/sandbox"
)

// Errors surfaced by the loader pipeline. Only a stale open is reported as
// "nothing happened"; the others degrade the view and are logged.
var (
	ErrResourceReadFailed    = fetch.ErrResourceReadFailed
	ErrMarkupParseFailed     = markup.ErrParseFailed
	ErrScriptExecutionFailed = sandbox.ErrScriptExecutionFailed

	// ErrStale is returned by Open when a newer Open or a Close happened
	// while the bundle was being fetched. Its result was discarded.
	ErrStale = errors.New("viewer moved on; result discarded")

	ErrViewerNotFound = errors.New("viewer not found")
	ErrNothingToOpen  = errors.New("request names no bundle")
)
