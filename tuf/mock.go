package tuf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pylock/attest/internal/util"
)

// ensure it has all the necessary methods.
var _ Downloader = (*MockDownloader)(nil)

// MockDownloader serves targets from a local directory, or from a fixed
// in-memory map when Targets is set.
type MockDownloader struct {
	SrcPath string
	Targets map[string][]byte
}

func (dc *MockDownloader) DownloadTarget(target, _ string) (*TargetFile, error) {
	if dc.Targets != nil {
		data, ok := dc.Targets[target]
		if !ok {
			return nil, fmt.Errorf("target %s not found", target)
		}
		return &TargetFile{TargetURI: target, Data: data, Digest: util.SHA256Hex(data)}, nil
	}
	targetPath := filepath.Join(dc.SrcPath, target)
	data, err := os.ReadFile(targetPath)
	if err != nil {
		return nil, err
	}
	return &TargetFile{TargetURI: targetPath, Data: data, Digest: util.SHA256Hex(data)}, nil
}
