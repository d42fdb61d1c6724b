// Package fsys is the filesystem collaborator used by the static handler.
package fsys

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ashpect/webserv/pkg/errs"
)

// FS reads content for the response path. Paths are host filesystem paths.
type FS interface {
	ReadFile(name string) ([]byte, error)
	Exists(name string) bool
	Stat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	WriteFile(name string, data []byte) error
	Remove(name string) error
}

// OS is the FS backed by the real filesystem.
type OS struct{}

// ReadFile returns the file content, or a NotFound error when the file is
// missing or is a directory.
func (OS) ReadFile(name string) ([]byte, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isDirErr(err) {
			return nil, errs.E(errs.NotFound, "read "+name, err)
		}
		return nil, err
	}
	return b, nil
}

// Exists reports whether name is a regular file.
func (OS) Exists(name string) bool {
	fi, err := os.Stat(name)
	return err == nil && fi.Mode().IsRegular()
}

func (OS) Stat(name string) (fs.FileInfo, error) {
	fi, err := os.Stat(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.E(errs.NotFound, "stat "+name, err)
	}
	return fi, err
}

func (OS) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(name)
}

func isDirErr(err error) bool {
	return errors.Is(err, syscall.EISDIR)
}

// Join maps a URL path below prefix onto root. It returns false when the
// cleaned path would escape root.
func Join(root, prefix, urlPath string) (string, bool) {
	if strings.Contains(urlPath, "\x00") {
		return "", false
	}
	for _, seg := range strings.Split(urlPath, "/") {
		if seg == ".." {
			return "", false
		}
	}
	rel := strings.TrimPrefix(path.Clean("/"+urlPath), path.Clean(prefix))
	rel = strings.TrimPrefix(rel, "/")
	return filepath.Join(root, filepath.FromSlash(rel)), true
}

// WriteFile creates or truncates name. Parent directories must exist.
func (OS) WriteFile(name string, data []byte) error {
	return os.WriteFile(name, data, 0o644)
}

// Remove deletes a regular file.
func (o OS) Remove(name string) error {
	if !o.Exists(name) {
		return errs.E(errs.NotFound, "remove "+name, fs.ErrNotExist)
	}
	return os.Remove(name)
}
