package entitlement

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const storeFileName = "pro-store.json"

// record is one device's entitlement as persisted on disk.
type record struct {
	IsPro      bool   `json:"isPro"`
	UpdatedAt  int64  `json:"updatedAt"`
	CustomerID string `json:"customerId,omitempty"`
}

// FileStore persists the entire entitlement map as one JSON object keyed by
// device ID. Every write reads the whole object, mutates one key, and
// rewrites the whole file. That is only safe because a single process owns
// the file; clustered deployments must use RedisStore instead. The mutex
// serializes writers within this process.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates (or reuses) the store file under dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create entitlement data dir: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, storeFileName)}, nil
}

func (s *FileStore) ProStatus(ctx context.Context, deviceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.readLocked()
	if err != nil {
		return false, err
	}
	rec, ok := store[deviceID]
	if !ok {
		return false, nil
	}
	return rec.IsPro, nil
}

func (s *FileStore) SetProStatus(ctx context.Context, deviceID string, isPro bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.readLocked()
	if err != nil {
		return err
	}
	rec := store[deviceID]
	rec.IsPro = isPro
	rec.UpdatedAt = time.Now().UnixMilli()
	store[deviceID] = rec
	return s.writeLocked(store)
}

func (s *FileStore) CustomerID(ctx context.Context, deviceID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.readLocked()
	if err != nil {
		return "", err
	}
	rec, ok := store[deviceID]
	if !ok || rec.CustomerID == "" {
		return "", ErrNotFound
	}
	return rec.CustomerID, nil
}

func (s *FileStore) SetCustomerID(ctx context.Context, deviceID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.readLocked()
	if err != nil {
		return err
	}
	rec := store[deviceID]
	rec.CustomerID = customerID
	rec.UpdatedAt = time.Now().UnixMilli()
	store[deviceID] = rec
	return s.writeLocked(store)
}

func (s *FileStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.readLocked()
	return err
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) readLocked() (map[string]record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]record{}, nil
		}
		return nil, fmt.Errorf("read entitlement store: %w", err)
	}
	store := map[string]record{}
	if len(data) == 0 {
		return store, nil
	}
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, fmt.Errorf("decode entitlement store: %w", err)
	}
	return store, nil
}

// writeLocked rewrites the full store via a temp file and rename so a crash
// mid-write never leaves a truncated store behind.
func (s *FileStore) writeLocked(store map[string]record) error {
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("encode entitlement store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write entitlement store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace entitlement store: %w", err)
	}
	return nil
}
