package artifacts

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/RealDaniG/QFS-sub007/pkg/config"
)

// StoreType names an export backend.
type StoreType string

const (
	StoreTypeFS   StoreType = "fs"
	StoreTypeS3   StoreType = "s3"
	StoreTypeGCS  StoreType = "gcs"
	StoreTypeNone StoreType = "none"
)

// NewStoreFromConfig builds the export sink named by cfg.ExportStore.
// "none" returns a nil Store and no error; callers skip exporting.
func NewStoreFromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	switch StoreType(cfg.ExportStore) {
	case StoreTypeFS, "":
		return NewFileStore(filepath.Join(cfg.DataDir, "exports"))
	case StoreTypeS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("QFS_S3_BUCKET is required for S3 exports")
		}
		return NewS3Store(ctx, S3StoreConfig{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Prefix:   cfg.S3Prefix,
		})
	case StoreTypeGCS:
		return newGCSStoreFromConfig(ctx, cfg)
	case StoreTypeNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported export store: %s", cfg.ExportStore)
	}
}
