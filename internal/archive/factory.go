package archive

import (
	"context"
	"fmt"
)

// Config selects and parameterizes an archive backend.
type Config struct {
	Driver Driver
	Root   string // filesystem root when Driver is fs
	S3     S3Config
}

// Open constructs the archive Store described by cfg. An empty driver
// defaults to the filesystem backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverFilesystem:
		return NewFilesystem(cfg.Root)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown archive driver %q", driver)
	}
}
