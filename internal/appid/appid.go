package appid

import (
	"context"

	"github.com/fulmenhq/gofulmen/appidentity"

	appidentityassets "github.com/backlogsync/backlogsync/internal/assets/appidentity"
)

const (
	FallbackBinaryName = "backlogsync"
	FallbackEnvPrefix  = "BACKLOGSYNC_"
)

func init() {
	// Explicit identity paths (FULMEN_APP_IDENTITY_PATH) stay authoritative;
	// the embedded copy only covers standalone binaries.
	_ = appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML)
}

func Get(ctx context.Context) (*appidentity.Identity, error) {
	return appidentity.Get(ctx)
}

// Resolve returns the discovered identity, or a built-in one when discovery
// fails. Callers that only need names and prefixes use this.
func Resolve(ctx context.Context) *appidentity.Identity {
	if ctx == nil {
		ctx = context.Background()
	}
	identity, err := appidentity.Get(ctx)
	if err == nil && identity != nil {
		return identity
	}
	return &appidentity.Identity{
		BinaryName: FallbackBinaryName,
		Vendor:     FallbackBinaryName,
		ConfigName: FallbackBinaryName,
		EnvPrefix:  FallbackEnvPrefix,
	}
}
