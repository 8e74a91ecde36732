package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development.
// Sessions are deep-copied on the way in and out.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID]*Session)}
}

func cloneSession(sess *Session) (*Session, error) {
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("session: clone: %w", err)
	}
	var out Session
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("session: clone: %w", err)
	}
	return &out, nil
}

func (s *MemoryStore) Create(_ context.Context, sess *Session) error {
	cp, err := cloneSession(sess)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.ID]; exists {
		return fmt.Errorf("session: duplicate id %s", sess.ID)
	}
	s.sessions[sess.ID] = cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, companyID string, id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	stored, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || stored.CompanyID != companyID {
		return nil, ErrSessionNotFound
	}
	return cloneSession(stored)
}

func (s *MemoryStore) Update(_ context.Context, sess *Session) error {
	cp, err := cloneSession(sess)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[sess.ID]
	if !ok || stored.CompanyID != sess.CompanyID {
		return ErrSessionNotFound
	}
	s.sessions[sess.ID] = cp
	return nil
}

func (s *MemoryStore) List(_ context.Context, companyID string, filter ListFilter) ([]*Session, error) {
	s.mu.RLock()
	var matched []*Session
	for _, sess := range s.sessions {
		if sess.CompanyID != companyID {
			continue
		}
		if filter.Status != "" && sess.Status != filter.Status {
			continue
		}
		if filter.Tier != "" && sess.CurrentTier != filter.Tier {
			continue
		}
		if filter.CustomerID != "" && sess.CustomerID != filter.CustomerID {
			continue
		}
		if !filter.Since.IsZero() && sess.CreatedAt.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && !sess.CreatedAt.Before(filter.Until) {
			continue
		}
		matched = append(matched, sess)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	out := make([]*Session, 0, len(matched))
	for _, sess := range matched {
		cp, err := cloneSession(sess)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}
