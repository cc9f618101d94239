package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kjk/devrecords/atomicfile"
	"github.com/kjk/devrecords/u"
)

type S3Config struct {
	Access   string
	Secret   string
	Bucket   string
	Endpoint string
	Region   string
	// remote paths are <Prefix>/<file name>
	Prefix string
	// use http instead of https e.g. for local minio
	Insecure     bool
	RequestTrace io.Writer
}

type S3 struct {
	Client *minio.Client
	Bucket string
	Prefix string
}

// NewS3 returns a client for uploading snapshots. Doesn't talk to the
// server, use CheckBucket for that.
func NewS3(config *S3Config) (*S3, error) {
	if config == nil {
		return nil, errors.New("must provide config")
	}
	c := config
	if c.Access == "" || c.Secret == "" || c.Bucket == "" || c.Endpoint == "" {
		return nil, errors.New("must provide access, secret, bucket and endpoint")
	}
	mc, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Access, c.Secret, ""),
		Region: c.Region,
		Secure: !c.Insecure,
	})
	if err != nil {
		return nil, err
	}
	if c.RequestTrace != nil {
		mc.TraceOn(c.RequestTrace)
	}
	return &S3{
		Client: mc,
		Bucket: c.Bucket,
		Prefix: c.Prefix,
	}, nil
}

func (c *S3) CheckBucket(ctx context.Context) error {
	found, err := c.Client.BucketExists(ctx, c.Bucket)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("bucket '%s' doesn't exist", c.Bucket)
	}
	return nil
}

// RemotePath returns where a local file is stored in the bucket
func (c *S3) RemotePath(localPath string) string {
	return path.Join(c.Prefix, filepath.Base(localPath))
}

// Upload uploads a local file and returns its remote path
func (c *S3) Upload(ctx context.Context, localPath string) (string, error) {
	remotePath := c.RemotePath(localPath)
	opts := minio.PutObjectOptions{
		ContentType: u.MimeTypeFromFileName(localPath),
	}
	_, err := c.Client.FPutObject(ctx, c.Bucket, remotePath, localPath, opts)
	if err != nil {
		return "", fmt.Errorf("upload of '%s' as '%s' failed with '%w'", localPath, remotePath, err)
	}
	return remotePath, nil
}

func (c *S3) Exists(ctx context.Context, remotePath string) bool {
	_, err := c.Client.StatObject(ctx, c.Bucket, remotePath, minio.StatObjectOptions{})
	return err == nil
}

func (c *S3) Download(ctx context.Context, dstPath string, remotePath string) error {
	obj, err := c.Client.GetObject(ctx, c.Bucket, remotePath, minio.GetObjectOptions{})
	if err != nil {
		return err
	}
	defer obj.Close()

	if err = os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	return atomicfile.WriteFrom(dstPath, func(w io.Writer) error {
		_, err := io.Copy(w, obj)
		return err
	})
}
