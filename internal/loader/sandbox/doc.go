/*
Package sandbox runs bundle scripts against capability-scoped stand-ins for
the browser's window and document.

# Overview

A script is compiled as the body of a function with two parameters,
window and document, and called with window as its receiver. Those two
objects are everything the script is handed:

  - document: getElementById, querySelector, querySelectorAll and
    createElement, all resolved inside the bundle's wrapper element
  - window: console (log, info, warn, error, debug) and the four timer
    functions; no navigation, storage or network

Element proxies expose a small node API (text, innerHTML, attributes,
children, insertion and removal, scoped queries, classList). A node outside
the wrapper is never handed to a script; parentNode of a top-level bundle
element is null.

# Architecture

 1. Document: selector and id lookups over the wrapper (cascadia, htmlquery)
 2. bridge: goja objects for window, document and elements
 3. Runtime: one goja VM with a call stack limit and a wall-clock budget
 4. Pool: reusable runtimes; a runtime is reset before it is reused
 5. Executor: turns any failure into a notice in the wrapper and a Report

Timers run on a virtual clock after the script body returns. Callbacks fire
in due order until nothing is due within Config.TimerHorizon, MaxTimerRuns
callbacks have run, or the budget is spent. Event listeners are recorded
and counted but never dispatched.

# Security Model

This is NOT a security boundary. Scripts run in the host process and share
its memory and CPU; the scoping only prevents accidental interference with
the host document. Untrusted bundles need process isolation, which this
package does not provide.

Markup that scripts write is stripped of script elements, and
createElement refuses "script", because the rendered boundary is later
parsed by a browser where such elements would run unscoped.

# Usage Example

	pool, err := sandbox.NewPool(sandbox.DefaultConfig(), 4, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	exec := sandbox.NewExecutor(pool, logger)
	report := exec.Execute(ctx, boundary.Wrapper(), script)
	if report.Notice {
		log.Warn("script failed", zap.Error(report.Err))
	}

Any other Strategy can replace the pool, for example an engine in a
separate process.
*/
package sandbox
