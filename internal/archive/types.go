// Package archive stores immutable audit snapshots of completed validations.
// Regulatory review requires the signed record exactly as it was at
// completion time, independent of later database state.
package archive

import (
	"context"
	"time"
)

// Driver identifies an archive backend.
type Driver string

// Supported archive drivers.
const (
	DriverMemory     Driver = "memory"
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

// Info describes a stored archive object.
type Info struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the interface archive backends implement. Objects are immutable:
// Put fails when the key already exists, and the interface offers no removal.
// Retention is an administrative concern handled outside this service, on the
// backend itself (filesystem housekeeping, S3 lifecycle rules).
type Store interface {
	Put(ctx context.Context, key string, payload []byte, contentType string) (Info, error)
	Get(ctx context.Context, key string) (Info, []byte, error)
	List(ctx context.Context, prefix string) ([]Info, error)
}
