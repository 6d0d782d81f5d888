package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/yaml"
)

// Config is the YAML configuration file of the lock updater. Every field is
// optional; zero values fall back to built-in defaults.
type Config struct {
	// IntegrityBaseURL overrides the index integrity API endpoint.
	IntegrityBaseURL string `json:"integrity-base-url,omitempty"`
	// SkipExisting leaves artifacts that already carry an identity alone.
	SkipExisting bool `json:"skip-existing,omitempty"`
	// Concurrency bounds parallel provenance lookups.
	Concurrency int `json:"concurrency,omitempty"`
	// Timeout bounds one artifact's lookup and verification, e.g. "30s".
	Timeout string `json:"timeout,omitempty"`
	// AllowedIssuers restricts accepted OIDC issuers. Empty accepts any
	// issuer the trust roots vouch for.
	AllowedIssuers []string `json:"allowed-issuers,omitempty"`
	// SkipTransparencyLog disables transparency log inclusion checking.
	SkipTransparencyLog bool `json:"skip-transparency-log,omitempty"`

	TrustRoots TrustRootsConfig `json:"trust-roots,omitempty"`
}

// TrustRootsConfig selects where Fulcio roots and Rekor keys come from:
// local PEM files, or a TUF repository when PEM paths are unset.
type TrustRootsConfig struct {
	// FulcioRootPath points at a PEM bundle of Fulcio root certificates.
	FulcioRootPath string `json:"fulcio-root,omitempty"`
	// FulcioIntermediatePath points at a PEM bundle of intermediates.
	FulcioIntermediatePath string `json:"fulcio-intermediate,omitempty"`
	// RekorKeyPath points at a PEM encoded Rekor public key.
	RekorKeyPath string `json:"rekor-key,omitempty"`

	// TUFRootPath points at the initial root.json of the TUF repository.
	TUFRootPath string `json:"tuf-root,omitempty"`
	// TUFMetadataSource overrides the TUF repository URL.
	TUFMetadataSource string `json:"tuf-metadata-source,omitempty"`
	// TUFCachePath is where TUF metadata and targets are cached.
	TUFCachePath string `json:"tuf-cache,omitempty"`
}

// UsesPEM reports whether trust material comes from local PEM files.
func (t TrustRootsConfig) UsesPEM() bool {
	return t.FulcioRootPath != "" || t.RekorKeyPath != ""
}

func validate(cfg *Config) error {
	var validationErrors []error
	if cfg.Concurrency < 0 {
		validationErrors = append(validationErrors, fmt.Errorf("concurrency cannot be negative: %d", cfg.Concurrency))
	}
	if cfg.Timeout != "" {
		if _, err := time.ParseDuration(cfg.Timeout); err != nil {
			validationErrors = append(validationErrors, fmt.Errorf("invalid timeout: %w", err))
		}
	}
	tr := cfg.TrustRoots
	if tr.FulcioRootPath != "" && tr.RekorKeyPath == "" && !cfg.SkipTransparencyLog {
		validationErrors = append(validationErrors, errors.New("rekor-key must be set when fulcio-root is set"))
	}
	if tr.UsesPEM() && tr.TUFRootPath != "" {
		validationErrors = append(validationErrors, errors.New("trust-roots cannot mix PEM paths with a TUF root"))
	}
	if len(validationErrors) > 0 {
		return errors.Join(validationErrors...)
	}
	return nil
}

// CallTimeout returns the parsed timeout, or zero when unset. Validation has
// already rejected unparseable values.
func (c *Config) CallTimeout() time.Duration {
	if c.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0
	}
	return d
}

func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	return cfg, nil
}

// Load reads a config file from disk. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}
