// Package fsutil provides the file system primitives the optimizer builds
// on: atomic file replacement, attribute-preserving copies, and PNG
// discovery under a directory tree.
package fsutil

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FindPNGFiles recursively collects every file under root whose name ends
// in .png, case-insensitively. A root that is itself a file is returned
// as is, without extension checks, so explicit arguments always pass
// through.
func FindPNGFiles(root string) ([]string, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsPNGName(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// IsPNGName reports whether a file name carries the .png extension.
func IsPNGName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".png")
}

// SameFile reports whether two paths name the same file on disk, seeing
// through spelling differences and links. A path that cannot be stated is
// never the same file as anything.
func SameFile(a, b string) bool {
	sa, err := os.Stat(a)
	if err != nil {
		return false
	}
	sb, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(sa, sb)
}

// ReplaceFile writes data to path through a temporary file in the same
// directory, so a crash mid-write can never leave a half-written file
// under the final name.
func ReplaceFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// CopyFile copies src to dst, carrying the source permissions over. dst is
// replaced atomically if it already exists.
func CopyFile(dst, src string) error {
	st, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !st.Mode().IsRegular() {
		return fmt.Errorf("%s: not a regular file", src)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	return ReplaceFile(dst, data, st.Mode().Perm())
}
