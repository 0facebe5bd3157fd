package filestore

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DownloadFunc fetches url into path.
type DownloadFunc func(url string, path string) error

// Store is a content-addressed cache of seed files keyed by sha256.
// Downloads run in a background worker; Await blocks until the file is
// on disk and integrity-verified.
type Store struct {
	fileDir  string
	downlDir string
	download DownloadFunc

	mu   sync.Mutex
	jobs map[string]*job

	queue chan string
}

type job struct {
	url  string
	done chan struct{}
	err  error
}

func New(fileDir string, downlDir string) *Store {
	return &Store{
		fileDir:  fileDir,
		downlDir: downlDir,
		download: HttpDownloadFunc(),
		jobs:     make(map[string]*job),
		queue:    make(chan string, 10000),
	}
}

// WithDownloadFunc overrides the transport, used by tests.
func (s *Store) WithDownloadFunc(f DownloadFunc) *Store {
	s.download = f
	return s
}

// Start runs the background download worker. It returns when the store
// queue is closed, so it is typically invoked as `go fs.Start()`.
func (s *Store) Start() {
	for key := range s.queue {
		s.mu.Lock()
		j := s.jobs[key]
		s.mu.Unlock()
		if j == nil {
			continue
		}
		j.err = s.fetch(key, j.url)
		close(j.done)
	}
}

// Schedule queues a download unless the key is already scheduled or
// cached. Scheduling the same key twice is a no-op.
func (s *Store) Schedule(key string, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[key]; exists {
		return nil
	}
	j := &job{url: url, done: make(chan struct{})}
	s.jobs[key] = j
	s.queue <- key
	return nil
}

// Await blocks until the keyed file has been downloaded and verified,
// then returns its contents.
func (s *Store) Await(key string) ([]byte, error) {
	s.mu.Lock()
	j := s.jobs[key]
	s.mu.Unlock()

	if j == nil {
		// may have been cached by an earlier process lifetime
		data, err := os.ReadFile(filepath.Join(s.fileDir, key))
		if err != nil {
			return nil, fmt.Errorf("file %s has not been scheduled for download", key)
		}
		return data, nil
	}

	<-j.done
	if j.err != nil {
		return nil, fmt.Errorf("failed to fetch file %s: %w", key, j.err)
	}

	data, err := os.ReadFile(filepath.Join(s.fileDir, key))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", key, err)
	}
	return data, nil
}

// Put stores inline content under its sha256 key and returns the key.
func (s *Store) Put(content []byte) (string, error) {
	if err := os.MkdirAll(s.fileDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create file store directory: %w", err)
	}
	key := fmt.Sprintf("%x", sha256.Sum256(content))
	path := filepath.Join(s.fileDir, key)
	if _, err := os.Stat(path); err == nil {
		return key, nil
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write file %s: %w", key, err)
	}
	return key, nil
}

func (s *Store) fetch(key string, url string) error {
	filePath := filepath.Join(s.fileDir, key)
	if _, err := os.Stat(filePath); err == nil {
		return nil
	}

	if err := os.MkdirAll(s.fileDir, 0755); err != nil {
		return fmt.Errorf("failed to create file store directory: %w", err)
	}
	if err := os.MkdirAll(s.downlDir, 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	tmpPath := filepath.Join(s.downlDir, key)
	if err := s.download(url, tmpPath); err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer os.Remove(tmpPath)

	if err := verifySha256(tmpPath, key); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		return fmt.Errorf("failed to move file into store: %w", err)
	}
	return nil
}

func verifySha256(path string, expected string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read downloaded file: %w", err)
	}
	sum := fmt.Sprintf("%x", sha256.Sum256(data))
	if sum != expected {
		return fmt.Errorf("file has sha256 %s, but expected %s", sum, expected)
	}
	return nil
}
