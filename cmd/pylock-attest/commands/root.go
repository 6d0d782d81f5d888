// Package commands implements the pylock-attest command line interface.
package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pylock/attest"
	"github.com/pylock/attest/attestation"
	"github.com/pylock/attest/config"
	"github.com/pylock/attest/integrity"
	"github.com/pylock/attest/tlog"
	"github.com/pylock/attest/tuf"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// CLI wires the cobra command tree to the attestation engine.
type CLI struct {
	rootCmd *cobra.Command

	configPath   string
	inputPath    string
	outputPath   string
	force        bool
	verbosity    int
	skipExisting bool
	concurrency  int
	timeout      time.Duration
}

// DefaultLockfile is the input used when no path argument is given.
const DefaultLockfile = "pylock.toml"

func New() *CLI {
	c := &CLI{}
	c.rootCmd = &cobra.Command{
		Use:   "pylock-attest [pylock.toml]",
		Short: "Augment a PEP 751 lock file with verified attestation identities",
		Long: `pylock-attest resolves PEP 740 attestations for every artifact in a
PEP 751 lock file, verifies them against the sigstore trust roots and
records the verified signer identities in the lock file.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			lockPath := c.inputPath
			if len(args) == 1 {
				lockPath = args[0]
			}
			return c.run(cmd.Context(), lockPath)
		},
	}

	flags := c.rootCmd.Flags()
	flags.StringVarP(&c.configPath, "config", "c", "", "path to a YAML configuration file")
	flags.StringVarP(&c.inputPath, "input", "i", DefaultLockfile, "lock file to augment")
	flags.StringVarP(&c.outputPath, "output", "o", "", "write the augmented lock file here instead of updating in place")
	flags.BoolVar(&c.force, "force", false, "overwrite the output file if it exists")
	flags.CountVarP(&c.verbosity, "verbose", "v", "increase log verbosity, repeatable")
	flags.BoolVar(&c.skipExisting, "skip-existing", false, "do not re-resolve artifacts that already carry an identity")
	flags.IntVar(&c.concurrency, "concurrency", attest.DefaultConcurrency, "maximum provenance lookups in flight")
	flags.DurationVar(&c.timeout, "timeout", attest.DefaultCallTimeout, "timeout per artifact lookup and verification")

	c.rootCmd.AddCommand(newVersionCmd())
	return c
}

func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

func (c *CLI) run(ctx context.Context, lockPath string) error {
	logger := newLogger(c.verbosity)

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.applyConfig(cfg)

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	var sourceOpts []func(*integrity.Client)
	if cfg.IntegrityBaseURL != "" {
		sourceOpts = append(sourceOpts, integrity.WithBaseURL(cfg.IntegrityBaseURL))
	}

	engine, err := attest.NewEngine(
		attest.WithSource(integrity.NewClient(sourceOpts...)),
		attest.WithVerifier(verifier),
		attest.WithSkipExisting(c.skipExisting),
		attest.WithConcurrency(c.concurrency),
		attest.WithCallTimeout(c.timeout),
		attest.WithLogger(&logger),
	)
	if err != nil {
		return err
	}

	summary, err := attest.Update(ctx, engine, attest.UpdateOptions{
		InputPath:  lockPath,
		OutputPath: c.outputPath,
		Force:      c.force,
	})
	if err != nil {
		return err
	}

	if c.verbosity > 0 {
		for _, res := range summary.Resolutions {
			fmt.Println(res)
		}
	}
	fmt.Println(summary)
	return nil
}

// applyConfig folds config file values into flag defaults. Flags the user
// set explicitly win.
func (c *CLI) applyConfig(cfg *config.Config) {
	flags := c.rootCmd.Flags()
	if !flags.Changed("skip-existing") && cfg.SkipExisting {
		c.skipExisting = true
	}
	if !flags.Changed("concurrency") && cfg.Concurrency > 0 {
		c.concurrency = cfg.Concurrency
	}
	if !flags.Changed("timeout") && cfg.CallTimeout() > 0 {
		c.timeout = cfg.CallTimeout()
	}
}

// newVerifier builds the attestation verifier from the configured trust
// material: local PEM files when given, the sigstore TUF repository
// otherwise.
func newVerifier(cfg *config.Config) (attestation.Verifier, error) {
	var (
		roots      *attestation.TrustRoots
		downloader tuf.Downloader
		err        error
	)
	switch {
	case cfg.TrustRoots.UsesPEM():
		roots, err = loadPEMTrustRoots(cfg.TrustRoots)
		if err != nil {
			return nil, err
		}
	default:
		downloader, err = newTUFClient(cfg.TrustRoots)
		if err != nil {
			return nil, err
		}
		roots, err = attestation.LoadTUFTrustRoots(downloader)
		if err != nil {
			return nil, err
		}
	}

	return buildVerifier(cfg, roots, downloader)
}

func buildVerifier(cfg *config.Config, roots *attestation.TrustRoots, downloader tuf.Downloader) (attestation.Verifier, error) {
	tlOpts := []func(*tlog.Rekor){tlog.WithPublicKeys(roots.RekorKeys)}
	if downloader != nil {
		tlOpts = append(tlOpts, tlog.WithTUFDownloader(downloader))
	}
	tl, err := tlog.NewRekorLog(tlOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create rekor verifier: %w", err)
	}

	return attestation.NewVerifier(
		attestation.WithTrustRoots(roots),
		attestation.WithTransparencyLog(tl),
		attestation.WithAllowedIssuers(cfg.AllowedIssuers),
		attestation.WithSkipTransparencyLog(cfg.SkipTransparencyLog),
	)
}

func loadPEMTrustRoots(tr config.TrustRootsConfig) (*attestation.TrustRoots, error) {
	roots := attestation.NewTrustRoots()
	if tr.FulcioRootPath != "" {
		pem, err := os.ReadFile(tr.FulcioRootPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read fulcio root: %w", err)
		}
		if err := roots.AddFulcioRootPEM(pem); err != nil {
			return nil, err
		}
	}
	if tr.FulcioIntermediatePath != "" {
		pem, err := os.ReadFile(tr.FulcioIntermediatePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read fulcio intermediate: %w", err)
		}
		if err := roots.AddFulcioIntermediatePEM(pem); err != nil {
			return nil, err
		}
	}
	if tr.RekorKeyPath != "" {
		pem, err := os.ReadFile(tr.RekorKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read rekor key: %w", err)
		}
		if err := roots.AddRekorKeyPEM(pem); err != nil {
			return nil, err
		}
	}
	return roots, nil
}

func newTUFClient(tr config.TrustRootsConfig) (*tuf.Client, error) {
	if tr.TUFRootPath == "" {
		return nil, fmt.Errorf("no trust roots configured: set trust-roots.tuf-root or PEM paths in the config file")
	}
	initialRoot, err := os.ReadFile(tr.TUFRootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read TUF root: %w", err)
	}
	cachePath := tr.TUFCachePath
	if cachePath == "" {
		userCache, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate cache directory: %w", err)
		}
		cachePath = filepath.Join(userCache, "pylock-attest", "tuf")
	}
	opts := tuf.NewDefaultClientOptions(initialRoot, cachePath)
	if tr.TUFMetadataSource != "" {
		opts.MetadataSource = tr.TUFMetadataSource
		opts.TargetsSource = tr.TUFMetadataSource + "/targets"
	}
	return tuf.NewClient(opts)
}

func newLogger(verbosity int) zerolog.Logger {
	var level zerolog.Level
	switch {
	case verbosity <= 0:
		level = zerolog.WarnLevel
	case verbosity == 1:
		level = zerolog.InfoLevel
	default:
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}
