package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile copies src to dst through a temporary sibling and renames it into
// place once size and SHA256 match, so readers never see a partial dst.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	srcHash := sha256.New()
	dstHash := sha256.New()
	var written int64
	err = writeAtomic(dst, 0o644, func(out io.Writer) error {
		n, copyErr := io.Copy(io.MultiWriter(out, dstHash), io.TeeReader(in, srcHash))
		written = n
		if copyErr != nil {
			return copyErr
		}
		if written != info.Size() {
			return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
		}
		if !bytes.Equal(srcHash.Sum(nil), dstHash.Sum(nil)) {
			return fmt.Errorf("copy hash mismatch: file corrupted during copy")
		}
		return nil
	})
	return err
}

// WriteFileAtomic replaces path with data via a temporary file and rename.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	return writeAtomic(path, mode, func(out io.Writer) error {
		_, err := out.Write(data)
		return err
	})
}

// WriteAtomic streams fill into a temporary sibling of path and renames it
// into place on success. The temporary file is removed on failure.
func WriteAtomic(path string, mode os.FileMode, fill func(io.Writer) error) error {
	return writeAtomic(path, mode, fill)
}

func writeAtomic(path string, mode os.FileMode, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}
	if err := fill(tmp); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// NonEmpty reports whether path is a regular file with at least one byte.
func NonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
