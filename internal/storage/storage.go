// Package storage hides the filesystem behind a small interface so the
// gateway and the transcode worker can be tested without real disk I/O.
package storage

import "io"

// Storage is the file persistence contract. Paths are slash-separated and
// relative to the implementation's root; implementations must refuse to
// escape that root.
type Storage interface {
	// Exists reports whether path refers to an existing file.
	Exists(path string) bool

	// Read returns the full contents of the file at path.
	Read(path string) ([]byte, error)

	// Write creates or replaces the file at path, creating parent
	// directories as needed.
	Write(path string, data []byte) error

	// WriteFrom streams r into the file at path, creating parent
	// directories as needed, and returns the number of bytes written.
	WriteFrom(path string, r io.Reader) (int64, error)

	// Open returns a reader over the file at path for streaming.
	Open(path string) (io.ReadCloser, error)

	// Size returns the size in bytes of the file at path.
	Size(path string) (int64, error)

	// MkdirAll creates the directory at path together with any parents.
	MkdirAll(path string) error

	// Remove deletes the file at path. Removing a missing file is not an
	// error.
	Remove(path string) error

	// RemoveAll deletes path and everything under it. Removing a missing
	// path is not an error.
	RemoveAll(path string) error

	// List returns the names of the entries directly under the directory at
	// path, or an empty slice if the directory does not exist.
	List(path string) ([]string, error)

	// Abs returns the absolute filesystem path for path, for handing to
	// external processes. Never exposed to clients.
	Abs(path string) string
}
