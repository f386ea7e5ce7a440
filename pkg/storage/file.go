package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrSealed is returned when a sealed value cannot be opened with the
// configured key.
var ErrSealed = errors.New("storage: cannot open sealed value")

// FileStorage writes one file per key under a base directory. With a key set,
// values are sealed with NaCl secretbox before they touch the disk.
type FileStorage struct {
	basePath string
	key      *[32]byte
}

// NewFileStorage creates the base directory if missing. key may be nil.
func NewFileStorage(basePath string, key *[32]byte) (*FileStorage, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStorage{basePath: basePath, key: key}, nil
}

// Dir returns the base directory.
func (f *FileStorage) Dir() string {
	return f.basePath
}

func (f *FileStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	if f.key == nil {
		return data, true, nil
	}
	if len(data) < nonceSize {
		return nil, false, ErrSealed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], data[:nonceSize])
	out, ok := secretbox.Open(nil, data[nonceSize:], &nonce, f.key)
	if !ok {
		return nil, false, ErrSealed
	}
	return out, true, nil
}

// Put writes through a temp file and rename so readers never see a torn value.
func (f *FileStorage) Put(_ context.Context, key string, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	data := value
	if f.key != nil {
		var nonce [nonceSize]byte
		if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
			return fmt.Errorf("generate nonce: %w", err)
		}
		data = secretbox.Seal(nonce[:], value, &nonce, f.key)
	}
	tmp, err := os.CreateTemp(f.basePath, "."+key+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

func (f *FileStorage) Delete(_ context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Watch calls fn with the key whenever another writer changes a stored value.
// It blocks until ctx is done.
func (f *FileStorage) Watch(ctx context.Context, fn func(key string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(f.basePath); err != nil {
		return fmt.Errorf("watch %s: %w", f.basePath, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if strings.HasPrefix(name, ".") {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				fn(name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("storage watch error", "dir", f.basePath, "err", err)
		}
	}
}

func (f *FileStorage) path(key string) string {
	return filepath.Join(f.basePath, key)
}
