package storage

import (
	"bytes"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-memory Storage for tests. It records every read-type access
// so tests can assert that rejected requests never touched the filesystem.
type Memory struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool

	// ReadCount counts Read/Open/Size/Exists calls.
	ReadCount int
}

var _ Storage = (*Memory)(nil)

// NewMemory returns an empty in-memory storage.
func NewMemory() *Memory {
	return &Memory{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

func norm(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func (m *Memory) Exists(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadCount++
	_, ok := m.files[norm(p)]
	return ok
}

func (m *Memory) Read(p string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadCount++
	data, ok := m.files[norm(p)]
	if !ok {
		return nil, os.ErrNotExist
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) Write(p string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := norm(p)
	buf := make([]byte, len(data))
	copy(buf, data)
	m.files[key] = buf
	m.dirs[path.Dir(key)] = true
	return nil
}

func (m *Memory) WriteFrom(p string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if err := m.Write(p, data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (m *Memory) Open(p string) (io.ReadCloser, error) {
	data, err := m.Read(p)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Memory) Size(p string) (int64, error) {
	data, err := m.Read(p)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (m *Memory) MkdirAll(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[norm(p)] = true
	return nil
}

func (m *Memory) Remove(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, norm(p))
	return nil
}

func (m *Memory) RemoveAll(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := norm(p)
	for key := range m.files {
		if key == prefix || strings.HasPrefix(key, prefix+"/") {
			delete(m.files, key)
		}
	}
	for key := range m.dirs {
		if key == prefix || strings.HasPrefix(key, prefix+"/") {
			delete(m.dirs, key)
		}
	}
	return nil
}

func (m *Memory) List(p string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := norm(p)
	seen := make(map[string]bool)
	for key := range m.files {
		if strings.HasPrefix(key, prefix+"/") {
			rest := strings.TrimPrefix(key, prefix+"/")
			seen[strings.SplitN(rest, "/", 2)[0]] = true
		}
	}
	for key := range m.dirs {
		if strings.HasPrefix(key, prefix+"/") {
			rest := strings.TrimPrefix(key, prefix+"/")
			seen[strings.SplitN(rest, "/", 2)[0]] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) Abs(p string) string {
	return "/" + norm(p)
}
