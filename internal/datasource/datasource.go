// Package datasource defines the contract for raw input byte streams.
// Implementations live in subpackages (file for the local filesystem) and
// hand the parser an io.ReadCloser; everything downstream is source-agnostic.
package datasource

import (
	"context"
	"io"
)

// Source is a single openable input stream, such as one dataset file.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
