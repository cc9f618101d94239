package backup

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/kjk/devrecords/u"
)

// Remote is storage snapshots are uploaded to, implemented by *S3
type Remote interface {
	RemotePath(localPath string) string
	Exists(ctx context.Context, remotePath string) bool
	Download(ctx context.Context, dstPath string, remotePath string) error
}

// RestoreFrom restores snapshot src into dstPath. src is a local snapshot
// file or, if there's no such file, a remote path or snapshot name in
// remote (which can be nil). Downloaded snapshots are kept in tmpDir.
// Returns the local path of the snapshot that was restored.
func RestoreFrom(ctx context.Context, remote Remote, src string, dstPath string, tmpDir string) (string, error) {
	if u.FileExists(src) {
		return src, Restore(src, dstPath)
	}
	if remote == nil {
		return "", fmt.Errorf("backup: snapshot '%s' doesn't exist", src)
	}
	remotePath := src
	if !remote.Exists(ctx, remotePath) {
		remotePath = remote.RemotePath(src)
		if !remote.Exists(ctx, remotePath) {
			return "", fmt.Errorf("backup: snapshot '%s' doesn't exist locally or remotely", src)
		}
	}
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return "", fmt.Errorf("backup: %w", err)
	}
	localPath := filepath.Join(tmpDir, path.Base(remotePath))
	if err := remote.Download(ctx, localPath, remotePath); err != nil {
		return "", fmt.Errorf("backup: downloading '%s': %w", remotePath, err)
	}
	return localPath, Restore(localPath, dstPath)
}
