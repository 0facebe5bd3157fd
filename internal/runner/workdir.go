package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// boxes hands out numbered working directories under one root. Each
// box is exclusive to one execution until Close; the directory and its
// contents are removed unconditionally on Close.
type boxes struct {
	root  string
	mutex sync.Mutex
	inUse mapset.Set[int]
}

func newBoxes(root string) *boxes {
	return &boxes{
		root:  root,
		inUse: mapset.NewThreadUnsafeSet[int](),
	}
}

func (b *boxes) acquire() (*Box, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	id := 0
	for b.inUse.Contains(id) {
		id++
	}

	path := filepath.Join(b.root, fmt.Sprintf("box-%d", id))
	// a previous crashed process may have left debris behind
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("failed to clean box dir: %w", err)
	}
	if err := os.MkdirAll(path, 0777); err != nil {
		return nil, fmt.Errorf("failed to create box dir: %w", err)
	}

	b.inUse.Add(id)
	return &Box{id: id, path: path, owner: b}, nil
}

func (b *boxes) release(id int) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.inUse.Remove(id)
}

// Box is one ephemeral working directory.
type Box struct {
	id    int
	path  string
	owner *boxes
}

func (box *Box) Id() int {
	return box.id
}

func (box *Box) Path() string {
	return box.path
}

// AddFile writes content at a path relative to the box root. Paths that
// escape the box are refused.
func (box *Box) AddFile(path string, content []byte) error {
	if !filepath.IsLocal(path) {
		return fmt.Errorf("seed file path escapes working directory: %s", path)
	}
	dst := filepath.Join(box.path, path)
	if err := os.MkdirAll(filepath.Dir(dst), 0777); err != nil {
		return fmt.Errorf("failed to create seed file directory: %w", err)
	}
	if err := os.WriteFile(dst, content, 0644); err != nil {
		return fmt.Errorf("failed to write seed file %s: %w", path, err)
	}
	return nil
}

func (box *Box) HasFile(path string) bool {
	if !filepath.IsLocal(path) {
		return false
	}
	_, err := os.Stat(filepath.Join(box.path, path))
	return err == nil
}

func (box *Box) GetFile(path string) ([]byte, error) {
	if !filepath.IsLocal(path) {
		return nil, fmt.Errorf("path escapes working directory: %s", path)
	}
	return os.ReadFile(filepath.Join(box.path, path))
}

// Close removes the directory and frees the box slot. It runs on every
// exit path, including timeout and crash.
func (box *Box) Close() error {
	err := os.RemoveAll(box.path)
	box.owner.release(box.id)
	if err != nil {
		return fmt.Errorf("failed to remove box dir: %w", err)
	}
	return nil
}
