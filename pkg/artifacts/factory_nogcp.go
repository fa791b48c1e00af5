//go:build !gcp

package artifacts

import (
	"context"
	"fmt"

	"github.com/RealDaniG/QFS-sub007/pkg/config"
)

func newGCSStoreFromConfig(context.Context, *config.Config) (Store, error) {
	return nil, fmt.Errorf("GCS exports are not enabled in this build (use -tags gcp)")
}
