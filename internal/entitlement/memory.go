package entitlement

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and as a last-resort
// fallback when neither backend is configured. State is lost on restart.
type MemoryStore struct {
	mu         sync.RWMutex
	records    map[string]record
	failWrites bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]record)}
}

// FailWrites makes subsequent writes return an error. Test hook for
// exercising backend-failure paths.
func (s *MemoryStore) FailWrites(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = fail
}

func (s *MemoryStore) ProStatus(ctx context.Context, deviceID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[deviceID].IsPro, nil
}

func (s *MemoryStore) SetProStatus(ctx context.Context, deviceID string, isPro bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errors.New("entitlement: write failed")
	}
	rec := s.records[deviceID]
	rec.IsPro = isPro
	rec.UpdatedAt = time.Now().UnixMilli()
	s.records[deviceID] = rec
	return nil
}

func (s *MemoryStore) CustomerID(ctx context.Context, deviceID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[deviceID]
	if !ok || rec.CustomerID == "" {
		return "", ErrNotFound
	}
	return rec.CustomerID, nil
}

func (s *MemoryStore) SetCustomerID(ctx context.Context, deviceID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errors.New("entitlement: write failed")
	}
	rec := s.records[deviceID]
	rec.CustomerID = customerID
	rec.UpdatedAt = time.Now().UnixMilli()
	s.records[deviceID] = rec
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
