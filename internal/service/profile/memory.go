package profile

import (
	"errors"
	"sync"

	"github.com/elsoug/orders/internal/domain"
)

// ErrProfileNotFound возвращается, если профиль отсутствует в справочнике.
var ErrProfileNotFound = errors.New("profile not found")

// MemoryDirectory — потокобезопасная in-memory реализация справочника
// профилей. Используется в тестах и в standalone-режиме.
type MemoryDirectory struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile
}

// NewMemoryDirectory создаёт пустой справочник.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{profiles: make(map[string]domain.Profile)}
}

// Put добавляет или заменяет профиль.
func (d *MemoryDirectory) Put(p domain.Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.ID] = p
}

// GetProfile возвращает профиль по идентификатору или ErrProfileNotFound.
func (d *MemoryDirectory) GetProfile(id string) (domain.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[id]
	if !ok {
		return domain.Profile{}, ErrProfileNotFound
	}
	return p, nil
}

var _ domain.ProfileDirectory = (*MemoryDirectory)(nil)
