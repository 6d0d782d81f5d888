package tuf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pylock/attest/internal/util"
	"github.com/theupdateframework/go-tuf/v2/metadata/config"
	"github.com/theupdateframework/go-tuf/v2/metadata/updater"
)

// DefaultMetadataSource is the sigstore public-good trust repository.
const DefaultMetadataSource = "https://tuf-repo-cdn.sigstore.dev"

// TargetFile is a downloaded and TUF-verified target.
type TargetFile struct {
	TargetURI string
	Data      []byte
	Digest    string
}

// Downloader fetches trust material (Fulcio roots, Rekor keys) through a TUF
// repository. filePath optionally caches the target on disk.
type Downloader interface {
	DownloadTarget(target, filePath string) (*TargetFile, error)
}

// ClientOptions configures a TUF client. InitialRoot is the trusted root.json
// for the repository; it is pinned on first use under CachePath.
type ClientOptions struct {
	InitialRoot    []byte
	CachePath      string
	MetadataSource string
	TargetsSource  string
}

func NewDefaultClientOptions(initialRoot []byte, cachePath string) *ClientOptions {
	return &ClientOptions{
		InitialRoot:    initialRoot,
		CachePath:      cachePath,
		MetadataSource: DefaultMetadataSource,
		TargetsSource:  DefaultMetadataSource + "/targets",
	}
}

// ensure it has all the necessary methods.
var _ Downloader = (*Client)(nil)

type Client struct {
	updater *updater.Updater
	cfg     *config.UpdaterConfig
}

// NewClient creates a TUF client rooted at opts.InitialRoot and refreshes
// the top-level metadata.
func NewClient(opts *ClientOptions) (*Client, error) {
	if len(opts.InitialRoot) == 0 {
		return nil, fmt.Errorf("initial TUF root must be set")
	}

	// each distinct initial root gets its own metadata directory
	rootDigest := util.SHA256Hex(opts.InitialRoot)
	metadataPath := filepath.Join(opts.CachePath, rootDigest)
	if err := os.MkdirAll(metadataPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory '%s': %w", metadataPath, err)
	}
	rootFile := filepath.Join(metadataPath, "root.json")
	rootBytes, err := os.ReadFile(rootFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read root.json: %w", err)
		}
		if err := os.WriteFile(rootFile, opts.InitialRoot, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write root.json: %w", err)
		}
		rootBytes = opts.InitialRoot
	}

	cfg, err := config.New(opts.MetadataSource, rootBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create TUF updater configuration: %w", err)
	}
	cfg.LocalMetadataDir = metadataPath
	cfg.LocalTargetsDir = filepath.Join(metadataPath, "download")
	cfg.RemoteTargetsURL = opts.TargetsSource

	up, err := updater.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create TUF updater instance: %w", err)
	}
	if err := up.Refresh(); err != nil {
		return nil, fmt.Errorf("failed to refresh trusted metadata: %w", err)
	}

	return &Client{updater: up, cfg: cfg}, nil
}

// DownloadTarget returns the named target, from the local cache when it is
// still valid, otherwise downloaded and verified.
func (t *Client) DownloadTarget(target, filePath string) (*TargetFile, error) {
	targetInfo, err := t.updater.GetTargetInfo(target)
	if err != nil {
		return nil, fmt.Errorf("target %s not found in TUF repository: %w", target, err)
	}

	if filePath != "" {
		if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create target download directory '%s': %w", filepath.Dir(filePath), err)
		}
	}

	actualFilePath, data, err := t.updater.FindCachedTarget(targetInfo, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed while finding a cached target: %w", err)
	}
	if data == nil {
		actualFilePath, data, err = t.updater.DownloadTarget(targetInfo, filePath, "")
		if err != nil {
			return nil, fmt.Errorf("failed to download target file %s: %w", target, err)
		}
	}
	return &TargetFile{TargetURI: actualFilePath, Data: data, Digest: util.SHA256Hex(data)}, nil
}
