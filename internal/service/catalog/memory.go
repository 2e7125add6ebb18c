package catalog

import (
	"sync"

	"github.com/elsoug/orders/internal/domain"
)

// MemoryCatalog — потокобезопасная in-memory реализация каталога.
// Используется в тестах и в standalone-режиме без внешнего сервиса каталога.
type MemoryCatalog struct {
	mu       sync.RWMutex
	listings map[string]domain.Listing

	// GetErr позволяет тестам форсировать ошибку каталога.
	GetErr error
}

// NewMemoryCatalog создаёт пустой каталог.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{listings: make(map[string]domain.Listing)}
}

// Put добавляет или заменяет карточку в каталоге.
func (c *MemoryCatalog) Put(listing domain.Listing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listings[listing.ID] = listing
}

// GetListing возвращает карточку по идентификатору или ErrListingNotFound.
func (c *MemoryCatalog) GetListing(id string) (domain.Listing, error) {
	if c.GetErr != nil {
		return domain.Listing{}, c.GetErr
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	listing, ok := c.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	return listing, nil
}

var _ domain.CatalogService = (*MemoryCatalog)(nil)
