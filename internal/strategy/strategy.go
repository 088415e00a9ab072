// Package strategy defines the adapter contract every retrieval
// mechanism implements, plus the descriptor type the catalog hands to
// the fallback loop.
//
// This package contains:
//   - Adapter interface: one Fetch entry point per mechanism
//   - Descriptor: a named, parameterized catalog entry
//   - Params: the opaque per-descriptor parameter bag
package strategy

import (
	"context"
	"time"

	"github.com/vidfetch/vidfetch/internal/core/domain"
)

// Params is the opaque key/value bag a descriptor carries into its
// adapter. Adapters read only the keys their family defines.
type Params map[string]string

// Adapter executes one retrieval mechanism. Implementations return a
// normalized ExecutionResult and must not panic past the attempt
// runner; cancellation of ctx means the attempt is abandoned.
type Adapter interface {
	// Kind identifies the adapter family (e.g. "ytdlp", "cobalt").
	Kind() string

	// Fetch retrieves the job's video into its workspace.
	Fetch(ctx context.Context, job domain.DownloadJob, params Params) domain.ExecutionResult
}

// Descriptor is one entry of the strategy catalog. Immutable once the
// catalog is built for a job; callers may rely on relative order only,
// never on fixed indices.
type Descriptor struct {
	Name    string
	Kind    string
	Params  Params
	Timeout time.Duration
	Adapter Adapter
}
