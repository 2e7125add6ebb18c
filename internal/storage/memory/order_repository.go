package memory

import (
	"sort"
	"sync"

	"github.com/elsoug/orders/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Order
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]domain.Order),
	}
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderRepositoryInMemory) Create(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrOrderVersionConflict
	}
	// Сохраняем глубокую копию, чтобы избежать мутаций через слайсы извне.
	r.items[order.ID] = cloneOrder(order)
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// ListByBuyer возвращает заказы покупателя, новые первыми.
func (r *orderRepositoryInMemory) ListByBuyer(buyerID string, limit int) ([]domain.Order, error) {
	return r.list(domain.OrderFilter{BuyerID: buyerID, Limit: limit})
}

// ListBySeller возвращает заказы продавца, новые первыми.
func (r *orderRepositoryInMemory) ListBySeller(sellerID string, limit int) ([]domain.Order, error) {
	return r.list(domain.OrderFilter{SellerID: sellerID, Limit: limit})
}

// List возвращает заказы по фильтру.
func (r *orderRepositoryInMemory) List(filter domain.OrderFilter) ([]domain.Order, error) {
	return r.list(filter)
}

func (r *orderRepositoryInMemory) list(filter domain.OrderFilter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if filter.BuyerID != "" && order.BuyerID != filter.BuyerID {
			continue
		}
		if filter.SellerID != "" && order.SellerID != filter.SellerID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	return result, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *orderRepositoryInMemory) Save(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}
	// Инкрементируем версию перед сохранением.
	order.Version++
	r.items[order.ID] = cloneOrder(order)
	return nil
}

// cloneOrder делает глубокую копию заказа: слайсы и указатели не должны
// разделяться между хранилищем и вызывающим кодом.
func cloneOrder(src domain.Order) domain.Order {
	dst := src
	dst.Items = append([]domain.OrderItem(nil), src.Items...)
	dst.StatusHistory = append([]domain.StatusChange(nil), src.StatusHistory...)
	if src.Discount != nil {
		discount := *src.Discount
		dst.Discount = &discount
	}
	if src.CustomerRating != nil {
		rating := *src.CustomerRating
		dst.CustomerRating = &rating
	}
	if src.SellerRating != nil {
		rating := *src.SellerRating
		dst.SellerRating = &rating
	}
	if src.Cancellation != nil {
		cancellation := *src.Cancellation
		dst.Cancellation = &cancellation
	}
	return dst
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
