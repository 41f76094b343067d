// Package moderationtest provides in-memory collaborators for tests
package moderationtest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tg-modbot/internal/models"
	"tg-modbot/internal/moderation"
)

// MemoryStore implements moderation.Store with maps
type MemoryStore struct {
	mu      sync.Mutex
	configs map[int64]models.ChatConfig
	polls   map[string]models.PollRecord

	// InsertErr, when set, is returned by InsertPoll
	InsertErr error
}

var _ moderation.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		configs: make(map[int64]models.ChatConfig),
		polls:   make(map[string]models.PollRecord),
	}
}

func key(chatID int64, offendingMessageID int) string {
	return fmt.Sprintf("%d:%d", chatID, offendingMessageID)
}

func (s *MemoryStore) GetConfig(_ context.Context, chatID int64) (*models.ChatConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[chatID]
	if !ok {
		return nil, moderation.ErrConfigMissing
	}
	return &cfg, nil
}

func (s *MemoryStore) SetConfig(_ context.Context, cfg *models.ChatConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.ChatID] = *cfg
	return nil
}

func (s *MemoryStore) FindOpenPoll(_ context.Context, chatID int64, offendingMessageID int) (*models.PollRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[key(chatID, offendingMessageID)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *MemoryStore) InsertPoll(_ context.Context, record *models.PollRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return s.InsertErr
	}
	k := key(record.ChatID, record.OffendingMessageID)
	if _, ok := s.polls[k]; ok {
		return fmt.Errorf("duplicate poll for %s", k)
	}
	s.polls[k] = *record
	return nil
}

func (s *MemoryStore) DeleteOpenPoll(_ context.Context, chatID int64, offendingMessageID int) (*models.PollRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(chatID, offendingMessageID)
	p, ok := s.polls[k]
	if !ok {
		return nil, nil
	}
	delete(s.polls, k)
	return &p, nil
}

func (s *MemoryStore) FindPollByID(_ context.Context, pollID string) (*models.PollRecord, error) {
	return s.find(func(p models.PollRecord) bool { return p.PollID == pollID }), nil
}

func (s *MemoryStore) FindPollByJobID(_ context.Context, jobID string) (*models.PollRecord, error) {
	return s.find(func(p models.PollRecord) bool { return p.JobID == jobID }), nil
}

func (s *MemoryStore) ListPolls(_ context.Context, chatID int64) ([]models.PollRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PollRecord
	for _, p := range s.polls {
		if p.ChatID == chatID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].StartedAt.Before(out[k].StartedAt) })
	return out, nil
}

func (s *MemoryStore) DeleteChat(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.configs, chatID)
	for k, p := range s.polls {
		if p.ChatID == chatID {
			delete(s.polls, k)
		}
	}
	return nil
}

func (s *MemoryStore) RemapChatID(_ context.Context, oldID, newID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg, ok := s.configs[oldID]; ok {
		delete(s.configs, oldID)
		cfg.ChatID = newID
		s.configs[newID] = cfg
	}
	for k, p := range s.polls {
		if p.ChatID == oldID {
			delete(s.polls, k)
			p.ChatID = newID
			s.polls[key(newID, p.OffendingMessageID)] = p
		}
	}
	return nil
}

// PollCount returns the number of stored poll records
func (s *MemoryStore) PollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.polls)
}

func (s *MemoryStore) find(match func(models.PollRecord) bool) *models.PollRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.polls {
		if match(p) {
			p := p
			return &p
		}
	}
	return nil
}
