//go:build gcp

package artifacts

import (
	"context"
	"fmt"

	"github.com/RealDaniG/QFS-sub007/pkg/config"
)

func newGCSStoreFromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg.GCSBucket == "" {
		return nil, fmt.Errorf("QFS_GCS_BUCKET is required for GCS exports")
	}
	return NewGCSStore(ctx, GCSStoreConfig{Bucket: cfg.GCSBucket, Prefix: cfg.GCSPrefix})
}
