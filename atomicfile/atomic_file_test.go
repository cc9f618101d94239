package atomicfile

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert"
)

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

func TestWrite(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "records.csv")

	f, err := New(dst)
	assert.NoError(t, err)
	assert.True(t, fileExists(f.tmpPath))
	assert.False(t, fileExists(dst))

	d := []byte("device_id,update_content,update_time\n")
	n, err := f.Write(d)
	assert.NoError(t, err)
	assert.Equal(t, len(d), n)
	assert.NoError(t, f.Close())
	assert.False(t, fileExists(f.tmpPath))

	got, err := os.ReadFile(dst)
	assert.NoError(t, err)
	assert.Equal(t, d, got)

	// calling Close twice is a no-op
	assert.NoError(t, f.Close())
}

func TestSimulateError(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "records.csv")
	f, err := New(dst)
	assert.NoError(t, err)
	_, err = f.Write([]byte("foo"))
	assert.NoError(t, err)

	errSimulated := errors.New("simulated")
	f.err = errSimulated
	assert.Equal(t, errSimulated, f.Close())
	assert.False(t, fileExists(f.tmpPath))
	assert.False(t, fileExists(dst))
	// sticky
	assert.Equal(t, errSimulated, f.Close())
}

func writeWithPanic(f *File) {
	defer f.RemoveIfNotClosed()
	_, _ = f.Write([]byte("foo"))
	panic("simulating a crash")
}

func TestRemoveIfNotClosedOnPanic(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "records.csv")
	f, err := New(dst)
	assert.NoError(t, err)

	func() {
		defer func() {
			assert.NotNil(t, recover())
		}()
		writeWithPanic(f)
	}()
	assert.False(t, fileExists(f.tmpPath))
	assert.False(t, fileExists(dst))

	_, err = f.Write([]byte("bar"))
	assert.Equal(t, ErrCancelled, err)
	assert.Equal(t, ErrCancelled, f.Close())
}

func TestWriteFromKeepsOldContentOnError(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "records.csv")
	assert.NoError(t, WriteFile(dst, []byte("old")))

	errFailed := errors.New("failed")
	err := WriteFrom(dst, func(w io.Writer) error {
		_, _ = w.Write([]byte("new, partial"))
		return errFailed
	})
	assert.Equal(t, errFailed, err)

	got, err := os.ReadFile(dst)
	assert.NoError(t, err)
	assert.Equal(t, "old", string(got))

	matches, _ := filepath.Glob(dst + ".tmp-*")
	assert.Equal(t, 0, len(matches))
}

func TestNewInMissingDir(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "foo", "bar.txt")
	f, err := New(dst)
	assert.Error(t, err)
	assert.Nil(t, f)
}
