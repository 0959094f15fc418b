package screenfx

import "errors"

// Error classes. Every error returned by screenfx packages wraps exactly one
// of these, so callers can branch on the class with errors.Is.
var (
	// ErrConfig reports a missing collaborator or an invalid parameter.
	// It is raised at construction or initialization; no partial pipeline runs.
	ErrConfig = errors.New("screenfx: configuration error")

	// ErrResource reports pool exhaustion or an allocation failure.
	// The frame is aborted after releasing everything it acquired.
	ErrResource = errors.New("screenfx: resource error")

	// ErrState reports an operation invoked before its required
	// initialization, or after teardown.
	ErrState = errors.New("screenfx: state error")
)

// classError attaches an error class to a package-level sentinel.
type classError struct {
	msg   string
	class error
}

func (e *classError) Error() string { return e.msg }
func (e *classError) Unwrap() error { return e.class }

// NewError returns a sentinel error with the given message that matches
// class under errors.Is. Sub-packages use it to declare their error values:
//
//	var ErrPoolExhausted = screenfx.NewError("framebuf: pool exhausted", screenfx.ErrResource)
func NewError(msg string, class error) error {
	return &classError{msg: msg, class: class}
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool { return errors.Is(err, ErrConfig) }

// IsResource reports whether err is a resource error.
func IsResource(err error) bool { return errors.Is(err, ErrResource) }

// IsState reports whether err is a state error.
func IsState(err error) bool { return errors.Is(err, ErrState) }
