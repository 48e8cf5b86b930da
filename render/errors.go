package render

import (
	"fmt"

	"github.com/gogpu/ggmeme"
)

// ResourceError reports a missing drawing capability or an image that
// could not be loaded or decoded. No output is written when an export
// fails with it.
type ResourceError struct {
	Op  string // "load", "decode", "font", "encode"
	Ref string
	Err error
}

func (e *ResourceError) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("render: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("render: %s %q: %v", e.Op, e.Ref, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Is classifies ResourceError as a resource error.
func (e *ResourceError) Is(target error) bool {
	return target == ggmeme.ErrResource
}

// AdjustmentError reports an out-of-range image adjustment.
type AdjustmentError struct {
	Field  string
	Reason string
}

func (e *AdjustmentError) Error() string {
	return "render: adjustment " + e.Field + ": " + e.Reason
}

// Is classifies AdjustmentError as a validation error.
func (e *AdjustmentError) Is(target error) bool {
	return target == ggmeme.ErrValidation
}
