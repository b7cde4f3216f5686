package evo

import (
	"context"

	"bitwalk/internal/artifact"
)

// Mutator applies one generation of mutation to an artifact.
// Implementations are interchangeable strategy types; they own the
// artifact for the duration of the call and must leave it fully
// flushed.
type Mutator interface {
	Name() string
	Mutate(ctx context.Context, art *artifact.Artifact) error
}
