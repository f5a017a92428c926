package executor

import (
	"errors"

	"github.com/hnjylwb/pixels/executor/plan"
)

// The error taxonomy of the compiler. Every failure aborts the current
// compilation; no partial operator tree is ever returned and no retries are
// attempted here.
var (
	// ErrInvalidPlan marks plan invariant violations and impossible
	// chain-join states. It is the same sentinel the plan package wraps, so
	// construction-time and compile-time violations test alike.
	ErrInvalidPlan = plan.ErrInvalidPlan
	// ErrMetadata marks metadata service or index rebuild failures.
	ErrMetadata = errors.New("metadata unavailable")
	// ErrStorage marks storage listing failures.
	ErrStorage = errors.New("storage unavailable")
	// ErrMalformedMetadata marks undecodable layout documents.
	ErrMalformedMetadata = errors.New("malformed metadata")
)
