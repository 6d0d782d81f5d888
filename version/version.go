package version

import (
	"fmt"
	"runtime/debug"

	"github.com/Masterminds/semver/v3"
)

const ThisModulePath = "github.com/pylock/attest"

// Get reads this module's version out of the embedded build info. A nil
// version with a nil error means no build info was available, as with a
// plain `go run`.
func Get() (*semver.Version, error) {
	var mod *debug.Module
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return nil, nil
	}
	if bi.Main.Path == ThisModulePath {
		mod = &bi.Main
	} else {
		for _, dep := range bi.Deps {
			if dep.Path == ThisModulePath {
				mod = dep
				break
			}
		}
	}
	if mod == nil {
		return nil, nil
	}

	v, err := semver.NewVersion(mod.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to parse version %s: %w", mod.Version, err)
	}
	return v, nil
}
