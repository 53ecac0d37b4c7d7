package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscapesRoot is returned when a relative path would resolve outside
// the storage root.
var ErrPathEscapesRoot = errors.New("storage: path escapes root")

// Disk is a Storage rooted at a single directory on the local filesystem.
type Disk struct {
	root string
}

var _ Storage = (*Disk)(nil)

// NewDisk returns a Disk rooted at root, creating it if necessary.
func NewDisk(root string) (*Disk, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Disk{root: abs}, nil
}

// resolve maps a slash-relative path onto the root, rejecting traversal.
func (d *Disk) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(path))
	if clean == "/" {
		return d.root, nil
	}
	full := filepath.Join(d.root, clean)
	if !strings.HasPrefix(full, d.root+string(os.PathSeparator)) {
		return "", ErrPathEscapesRoot
	}
	return full, nil
}

func (d *Disk) Exists(path string) bool {
	full, err := d.resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

func (d *Disk) Read(path string) ([]byte, error) {
	full, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

func (d *Disk) Write(path string, data []byte) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	return os.WriteFile(full, data, 0o644)
}

func (d *Disk) WriteFrom(path string, r io.Reader) (int64, error) {
	full, err := d.resolve(path)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return 0, fmt.Errorf("create parent directory: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func (d *Disk) Open(path string) (io.ReadCloser, error) {
	full, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

func (d *Disk) Size(path string) (int64, error) {
	full, err := d.resolve(path)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (d *Disk) MkdirAll(path string) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	return os.MkdirAll(full, 0o755)
}

func (d *Disk) Remove(path string) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (d *Disk) RemoveAll(path string) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	if full == d.root {
		return ErrPathEscapesRoot
	}
	return os.RemoveAll(full)
}

func (d *Disk) List(path string) ([]string, error) {
	full, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (d *Disk) Abs(path string) string {
	full, err := d.resolve(path)
	if err != nil {
		return ""
	}
	return full
}
