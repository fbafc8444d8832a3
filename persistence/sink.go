package persistence

import (
	"context"
	"io"
)

// Sink opens a fresh write stream for a named backup file.
type Sink interface {
	Create(ctx context.Context, name string) (io.WriteCloser, error)
}

// Source opens a read stream for a named backup file, and lists the backup
// files currently present.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context) ([]string, error)
}

// Destination is a backup/restore target; the pipeline is independent of
// which concrete medium implements it (spec.md §4.8).
type Destination interface {
	Sink
	Source
}
