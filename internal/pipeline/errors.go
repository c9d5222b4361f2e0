package pipeline

import (
	"errors"
	"fmt"
)

// ErrNotFitted is returned when Predict is called before a successful Fit.
var ErrNotFitted = errors.New("pipeline is not fitted")

// BindingError reports a parameter override that targets an unknown step or
// an unknown parameter of a known step.
type BindingError struct {
	Step   string
	Param  string
	Reason string
}

func (e *BindingError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("binding error for step %q: %s", e.Step, e.Reason)
	}
	return fmt.Sprintf("binding error for step %q parameter %q: %s", e.Step, e.Param, e.Reason)
}

// UnresolvedReferenceError reports a Deferred value whose referenced step or
// attribute is not available when the dependent step is about to fit.
type UnresolvedReferenceError struct {
	Step      string
	Param     string
	Ref       string
	Attribute string
	Reason    string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("step %q parameter %q references %s.%s: %s",
		e.Step, e.Param, e.Ref, e.Attribute, e.Reason)
}
