package ggmeme

import "errors"

// Error taxonomy shared by all ggmeme packages. Typed errors in sub-packages
// report their class through an Is method, so callers can branch with
// errors.Is(err, ggmeme.ErrValidation) regardless of the concrete type.
var (
	// ErrNetwork classifies failed requests and non-2xx responses.
	ErrNetwork = errors.New("ggmeme: network error")

	// ErrValidation classifies malformed import payloads and out-of-range style values.
	ErrValidation = errors.New("ggmeme: validation error")

	// ErrAuth classifies missing or expired credentials on a protected action.
	ErrAuth = errors.New("ggmeme: authentication required")

	// ErrResource classifies an unavailable rendering capability
	// (undecodable image, missing font, zero-sized surface).
	ErrResource = errors.New("ggmeme: resource unavailable")
)
