package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kjk/devrecords/backup"
	"github.com/kjk/devrecords/config"
	"github.com/kjk/devrecords/u"
)

type backupOptions struct {
	keep    int
	upload  bool
	restore string
	trace   bool
}

// newS3 returns nil if s3 is not configured
func newS3(ctx context.Context, cfg *config.Config, o *backupOptions) (*backup.S3, error) {
	s3cfg := cfg.Backup.S3
	if !s3cfg.HasCredentials() {
		return nil, nil
	}
	var trace io.Writer
	if o.trace {
		trace = os.Stderr
	}
	c, err := backup.NewS3(&backup.S3Config{
		Access:       s3cfg.AccessKey,
		Secret:       s3cfg.SecretKey,
		Bucket:       s3cfg.Bucket,
		Endpoint:     s3cfg.Endpoint,
		Prefix:       s3cfg.Prefix,
		Insecure:     s3cfg.Insecure,
		RequestTrace: trace,
	})
	if err != nil {
		return nil, err
	}
	if err = c.CheckBucket(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func runBackup(ctx context.Context, cfg *config.Config, o *backupOptions) error {
	srcPath := cfg.StorePath()
	if !u.FileExists(srcPath) {
		return fmt.Errorf("records file '%s' doesn't exist", srcPath)
	}
	path, err := backup.Snapshot(srcPath, cfg.Backup.Dir, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("wrote '%s' (%s)\n", path, u.FormatSize(u.FileSize(path)))

	if o.keep > 0 {
		deleted, err := backup.Prune(cfg.Backup.Dir, srcPath, o.keep)
		if err != nil {
			return err
		}
		for _, p := range deleted {
			fmt.Printf("deleted '%s'\n", p)
		}
	}

	if !o.upload {
		return nil
	}
	c, err := newS3(ctx, cfg, o)
	if err != nil {
		return err
	}
	if c == nil {
		fmt.Printf("no s3 credentials, skipping upload\n")
		return nil
	}
	timeStart := time.Now()
	remotePath, err := c.Upload(ctx, path)
	if err != nil {
		return err
	}
	fmt.Printf("uploaded to '%s/%s' in %s\n", c.Bucket, remotePath, u.FormatDuration(time.Since(timeStart)))
	return nil
}

// runRestore replaces the records file with a snapshot. The current file
// is snapshotted first so a restore can be undone.
func runRestore(ctx context.Context, cfg *config.Config, o *backupOptions) error {
	var remote backup.Remote
	c, err := newS3(ctx, cfg, o)
	if err != nil {
		return err
	}
	if c != nil {
		remote = c
	}

	dstPath := cfg.StorePath()
	if u.FileExists(dstPath) {
		path, err := backup.Snapshot(dstPath, cfg.Backup.Dir, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("saved current records as '%s'\n", path)
	}
	tmpDir := filepath.Join(cfg.Backup.Dir, "downloads")
	used, err := backup.RestoreFrom(ctx, remote, o.restore, dstPath, tmpDir)
	if err != nil {
		return err
	}
	fmt.Printf("restored '%s' from '%s'\n", dstPath, used)
	return nil
}

func newCmdBackup(g *globalOptions) *cobra.Command {
	o := &backupOptions{}
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a compressed snapshot of the records file, or restore one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if o.restore != "" {
				return runRestore(cmd.Context(), cfg, o)
			}
			return runBackup(cmd.Context(), cfg, o)
		},
	}
	cmd.Flags().IntVar(&o.keep, "keep", 0, "delete all but the newest N snapshots, 0 keeps all")
	cmd.Flags().BoolVar(&o.upload, "upload", true, "upload the snapshot to s3 if configured")
	cmd.Flags().StringVar(&o.restore, "restore", "", "restore records file from a local snapshot or a snapshot in s3")
	cmd.Flags().BoolVar(&o.trace, "trace", false, "log s3 requests to stderr")
	return cmd
}
