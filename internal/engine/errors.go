package engine

import (
	"errors"
	"fmt"
)

// Edit failures. All of them are recoverable: the engine returns to idle
// with the current snapshot unchanged, reports the failure, and accepts
// the next edit.
var (
	// ErrStaleReference means the target entity no longer resolves in
	// the baseline solid, typically because an earlier blend consumed it.
	ErrStaleReference = errors.New("target no longer exists on the solid")

	// ErrInvalidGeometry means the kernel rejected the operation or
	// produced a solid that failed validation.
	ErrInvalidGeometry = errors.New("edit would produce invalid geometry")

	// ErrTrivialEdit means the parameter magnitude is effectively zero.
	ErrTrivialEdit = errors.New("edit magnitude is effectively zero")

	// ErrEngineBusy means an edit is already executing. Concurrent
	// execute attempts are rejected immediately, never queued.
	ErrEngineBusy = errors.New("another edit is still running")

	// ErrCancelled means the in-flight edit was cancelled before the
	// kernel finished. Its result is discarded.
	ErrCancelled = errors.New("edit cancelled")

	// ErrKernel means the kernel failed for reasons of its own, such as
	// numerical non-convergence or a timeout.
	ErrKernel = errors.New("kernel operation failed")

	// ErrIO means a STEP import or export failed.
	ErrIO = errors.New("file exchange failed")
)

// Describe renders an edit failure for the message panel. Unknown errors
// fall through to their own text.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStaleReference):
		return "That face or edge is gone. Pick it again on the current solid."
	case errors.Is(err, ErrInvalidGeometry):
		return fmt.Sprintf("The edit was rejected: %v. Try a smaller value.", trimPrefix(err, ErrInvalidGeometry))
	case errors.Is(err, ErrTrivialEdit):
		return "Nothing to do: the value is too small to change the solid."
	case errors.Is(err, ErrEngineBusy):
		return "Still working on the previous edit."
	case errors.Is(err, ErrCancelled):
		return "Edit cancelled."
	case errors.Is(err, ErrKernel):
		return fmt.Sprintf("The geometry kernel failed: %v.", trimPrefix(err, ErrKernel))
	case errors.Is(err, ErrIO):
		return fmt.Sprintf("File exchange failed: %v.", trimPrefix(err, ErrIO))
	default:
		return err.Error()
	}
}

// trimPrefix strips the sentinel's own text from a wrapped error so the
// panel message does not repeat it.
func trimPrefix(err, sentinel error) string {
	msg := err.Error()
	pre := sentinel.Error() + ": "
	if len(msg) > len(pre) && msg[:len(pre)] == pre {
		return msg[len(pre):]
	}
	return msg
}
