package stage

import "errors"

// Error kinds. Every stage failure matches exactly one of them with errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrInstallation  = errors.New("installation error")
	ErrBundling      = errors.New("bundling error")
	ErrPackaging     = errors.New("packaging error")
	ErrOutput        = errors.New("output error")
	ErrDeployment    = errors.New("deployment error")
)

// Error reports which stage failed and why.
type Error struct {
	Stage string
	Kind  error
	Err   error
}

func (e *Error) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Is matches the error kind as well as the wrapped cause.
func (e *Error) Is(target error) bool { return target == e.Kind }

func fail(stage string, kind, err error) error {
	return &Error{Stage: stage, Kind: kind, Err: err}
}
