// Call tracing for engine operations.
//
// The original engine calls doEnterFunctionEx(llDetail, "Class::method") at
// the top of nearly every public and private method. This is the same
// structural idea rendered with the standard structured logger: enter logs
// entry at debug level and returns a closure that logs exit, so a deferred
// call mirrors the source's scope-based entry/exit tracing.
package dblib

import (
	"log/slog"
	"time"
)

// tracer is the package-level logger. Replace via SetLogger to redirect
// engine tracing into an application's own slog handler.
var tracer = slog.Default()

// SetLogger replaces the logger used for call tracing.
func SetLogger(l *slog.Logger) {
	if l != nil {
		tracer = l
	}
}

// enter logs entry to component.method and returns a closure that logs
// exit plus elapsed time. Typical use: defer enter("Table", "PostRecord")().
func enter(component, method string) func() {
	start := time.Now()
	tracer.Debug("enter", "component", component, "method", method)
	return func() {
		tracer.Debug("exit", "component", component, "method", method, "elapsed", time.Since(start))
	}
}
