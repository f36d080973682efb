package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/models"
)

// MemoryPushTokenRepository is an in-memory implementation of PushTokenRepository.
type MemoryPushTokenRepository struct {
	regs map[string]models.PushRegistration
	mu   sync.RWMutex
}

// NewMemoryPushTokenRepository creates a new instance of MemoryPushTokenRepository.
func NewMemoryPushTokenRepository() *MemoryPushTokenRepository {
	return &MemoryPushTokenRepository{
		regs: make(map[string]models.PushRegistration),
	}
}

// Upsert registers token or refreshes its timestamp.
func (r *MemoryPushTokenRepository) Upsert(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	reg, ok := r.regs[token]
	if !ok {
		reg = models.PushRegistration{Token: token, CreatedAt: now}
	}
	reg.UpdatedAt = now
	r.regs[token] = reg
	return nil
}

// ListTokens returns every registered token, oldest registration first.
func (r *MemoryPushTokenRepository) ListTokens(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	regs := make([]models.PushRegistration, 0, len(r.regs))
	for _, reg := range r.regs {
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].CreatedAt.Before(regs[j].CreatedAt) })

	tokens := make([]string, len(regs))
	for i, reg := range regs {
		tokens[i] = reg.Token
	}
	return tokens, nil
}
