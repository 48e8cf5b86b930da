package composition

import (
	"errors"

	"github.com/gogpu/ggmeme"
)

// ErrLayerNotFound is returned by style operations targeting an absent layer.
// Geometry operations never return it; they are silent no-ops instead.
var ErrLayerNotFound = errors.New("composition: layer not found")

// InvalidImportError reports a snapshot that violates the layer invariants.
// ReplaceAll returns it without touching the existing composition.
type InvalidImportError struct {
	Reason string
}

func (e *InvalidImportError) Error() string {
	return "composition: invalid import: " + e.Reason
}

// Is classifies InvalidImportError as a validation error.
func (e *InvalidImportError) Is(target error) bool {
	return target == ggmeme.ErrValidation
}

// InvalidLayerError reports a malformed layer in an add or update call.
type InvalidLayerError struct {
	Reason string
}

func (e *InvalidLayerError) Error() string {
	return "composition: invalid layer: " + e.Reason
}

// Is classifies InvalidLayerError as a validation error.
func (e *InvalidLayerError) Is(target error) bool {
	return target == ggmeme.ErrValidation
}
