package domain

// OrderFilter задаёт параметры выборки заказов для административного списка.
// Пустое поле означает «без фильтра».
type OrderFilter struct {
	BuyerID  string
	SellerID string
	Status   OrderStatus
	Limit    int
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями и первой записью журнала.
	// Возвращает ошибку, если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// ListByBuyer возвращает заказы покупателя, новые первыми.
	ListByBuyer(buyerID string, limit int) ([]Order, error)
	// ListBySeller возвращает заказы продавца, новые первыми.
	ListBySeller(sellerID string, limit int) ([]Order, error)
	// List возвращает заказы по фильтру; предназначен для административных выборок.
	List(filter OrderFilter) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking:
	// запись проходит только при совпадении Version, иначе ErrOrderVersionConflict.
	// Новые записи журнала статусов пишутся атомарно со сменой статуса.
	Save(order Order) error
}
