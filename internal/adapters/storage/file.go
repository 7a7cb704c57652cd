package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// FileStore persists keys in a small yaml file, the device-local
// equivalent of browser storage.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.read()
	if err != nil {
		return "", false, err
	}
	if !v.IsSet(key) {
		return "", false, nil
	}
	return v.GetString(key), true, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.read()
	if err != nil {
		return err
	}
	v.Set(key, value)
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}
	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write store %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) read() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		return nil, fmt.Errorf("read store %s: %w", s.path, err)
	}
	return v, nil
}
