package pgbox

import "errors"

// Launch pre-flight errors. These cover the conditions that can be detected
// before the container runtime is asked to do anything; once the run request
// has been issued all failure is passed through verbatim from the runtime.
var (
	// ErrRuntimeUnavailable indicates the container runtime binary could not
	// be found or its daemon did not answer.
	ErrRuntimeUnavailable = errors.New("container runtime unavailable")

	// ErrNameConflict indicates a container with the configured name already
	// exists, running or not.
	ErrNameConflict = errors.New("container name already in use")

	// ErrPortConflict indicates the configured host port is already bound.
	ErrPortConflict = errors.New("host port already in use")
)
