// Package backup writes compressed snapshots of the records file and
// uploads them to s3-compatible storage
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/kjk/devrecords/atomicfile"
	"github.com/kjk/devrecords/u"
)

const (
	snapshotTimeLayout = "2006-01-02_15-04-05"
	snapshotExt        = ".zst"
)

// SnapshotName returns name of a snapshot of srcPath taken at t e.g.
// device_records.csv => device_records-2024-03-05_14-07-09.csv.zst
func SnapshotName(srcPath string, t time.Time) string {
	name := filepath.Base(srcPath)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return base + "-" + t.Format(snapshotTimeLayout) + ext + snapshotExt
}

// Snapshot writes zstd-compressed copy of srcPath to dstDir and returns
// the path of the snapshot
func Snapshot(srcPath string, dstDir string, now time.Time) (string, error) {
	r, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("backup: %w", err)
	}
	defer r.Close()

	if err = os.MkdirAll(dstDir, 0755); err != nil {
		return "", fmt.Errorf("backup: %w", err)
	}
	dstPath := filepath.Join(dstDir, SnapshotName(srcPath, now))
	err = atomicfile.WriteFrom(dstPath, func(w io.Writer) error {
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if err != nil {
			return err
		}
		if _, err = io.Copy(zw, r); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	})
	if err != nil {
		return "", fmt.Errorf("backup: writing '%s': %w", dstPath, err)
	}
	return dstPath, nil
}

// Restore decompresses snapshot at path to dstPath
func Restore(path string, dstPath string) error {
	r, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	defer r.Close()
	zr, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	defer zr.Close()
	err = atomicfile.WriteFrom(dstPath, func(w io.Writer) error {
		_, err := io.Copy(w, zr)
		return err
	})
	if err != nil {
		return fmt.Errorf("backup: restoring '%s': %w", path, err)
	}
	return nil
}

// isSnapshotOf returns true if name is a snapshot of srcPath made by Snapshot
func isSnapshotOf(name string, srcPath string) bool {
	base := filepath.Base(srcPath)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext) + "-"
	suffix := ext + snapshotExt
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return false
	}
	ts := strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)
	_, err := time.Parse(snapshotTimeLayout, ts)
	return err == nil
}

// List returns paths of snapshots of srcPath in dir, oldest first.
// A missing dir has no snapshots.
func List(dir string, srcPath string) ([]string, error) {
	if !u.DirExists(dir) {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var res []string
	for _, e := range entries {
		if e.IsDir() || !isSnapshotOf(e.Name(), srcPath) {
			continue
		}
		res = append(res, filepath.Join(dir, e.Name()))
	}
	// timestamp format sorts lexically
	sort.Strings(res)
	return res, nil
}

// Prune deletes all but the newest keep snapshots of srcPath in dir
func Prune(dir string, srcPath string, keep int) ([]string, error) {
	paths, err := List(dir, srcPath)
	if err != nil {
		return nil, err
	}
	if len(paths) <= keep {
		return nil, nil
	}
	toDelete := paths[:len(paths)-keep]
	for _, path := range toDelete {
		if err = os.Remove(path); err != nil {
			return nil, err
		}
	}
	return toDelete, nil
}
