package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/elsoug/orders/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

// orderColumns — общий список колонок для SELECT по таблице orders.
const orderColumns = `
	id, number, type, buyer_id, seller_id,
	subtotal_minor, delivery_fee_minor, service_fee_minor,
	discount_type, discount_amount, discount_code, discount_reason,
	total_minor, currency,
	delivery_type, delivery_address, delivery_lat, delivery_lng,
	delivery_window_from, delivery_window_to, delivery_estimated_at, delivered_at,
	payment_method, payment_status, paid_amount_minor, paid_at, payment_transaction_id,
	status,
	customer_rating_score, customer_rating_comment, customer_rated_at,
	seller_rating_score, seller_rating_comment, seller_rated_at,
	cancel_reason, cancel_actor_id, cancel_actor_role,
	refund_amount_minor, refund_status, cancelled_at,
	notes, version, created_at, updated_at`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// Create сохраняет заказ, позиции и журнал статусов в одной транзакции.
func (r *orderRepository) Create(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`
		) VALUES (
			$1,$2,$3,$4,$5,
			$6,$7,$8,
			$9,$10,$11,$12,
			$13,$14,
			$15,$16,$17,$18,
			$19,$20,$21,$22,
			$23,$24,$25,$26,$27,
			$28,
			$29,$30,$31,
			$32,$33,$34,
			$35,$36,$37,
			$38,$39,$40,
			$41,$42,$43,$44
		)
	`, insertArgs(&order)...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, listing_id, title, description, image_url, unit,
				qty, price_minor, total_minor, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`,
			item.ID, order.ID, item.ListingID,
			item.Snapshot.Title, item.Snapshot.Description, item.Snapshot.ImageURL, item.Snapshot.Unit,
			item.Qty, item.PriceMinor, item.TotalMinor, item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err = insertHistoryTail(ctx, tx, order.ID, 0, order.StatusHistory); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}

	return nil
}

// Get возвращает заказ вместе с позициями и журналом статусов.
func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	if err := r.loadDetails(ctx, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// ListByBuyer возвращает заказы покупателя, новые первыми.
func (r *orderRepository) ListByBuyer(buyerID string, limit int) ([]domain.Order, error) {
	return r.List(domain.OrderFilter{BuyerID: buyerID, Limit: limit})
}

// ListBySeller возвращает заказы продавца, новые первыми.
func (r *orderRepository) ListBySeller(sellerID string, limit int) ([]domain.Order, error) {
	return r.List(domain.OrderFilter{SellerID: sellerID, Limit: limit})
}

// List возвращает заказы по фильтру.
func (r *orderRepository) List(filter domain.OrderFilter) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `SELECT ` + orderColumns + ` FROM orders`
	args := make([]any, 0, 4)
	where := ""

	appendCond := func(cond string, value any) {
		args = append(args, value)
		placeholder := "$" + strconv.Itoa(len(args))
		if where == "" {
			where = " WHERE " + cond + placeholder
		} else {
			where += " AND " + cond + placeholder
		}
	}

	if filter.BuyerID != "" {
		appendCond("buyer_id = ", filter.BuyerID)
	}
	if filter.SellerID != "" {
		appendCond("seller_id = ", filter.SellerID)
	}
	if filter.Status != "" {
		appendCond("status = ", string(filter.Status))
	}

	query += where + " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		if err := r.loadDetails(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}

	return orders, nil
}

// Save обновляет заказ с version-guard и дописывает хвост журнала статусов
// в той же транзакции: смена статуса и запись истории атомарны.
func (r *orderRepository) Save(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    payment_method = $2,
		    payment_status = $3,
		    paid_amount_minor = $4,
		    paid_at = $5,
		    payment_transaction_id = $6,
		    delivery_estimated_at = $7,
		    delivered_at = $8,
		    customer_rating_score = $9,
		    customer_rating_comment = $10,
		    customer_rated_at = $11,
		    seller_rating_score = $12,
		    seller_rating_comment = $13,
		    seller_rated_at = $14,
		    cancel_reason = $15,
		    cancel_actor_id = $16,
		    cancel_actor_role = $17,
		    refund_amount_minor = $18,
		    refund_status = $19,
		    cancelled_at = $20,
		    notes = $21,
		    version = version + 1,
		    updated_at = $22
		WHERE id = $23
		  AND version = $24
	`, saveArgs(&order)...)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, checkErr := orderExistsTx(ctx, tx, order.ID)
		if checkErr != nil {
			err = checkErr
			return err
		}
		if !exists {
			err = domain.ErrOrderNotFound
			return err
		}
		err = domain.ErrOrderVersionConflict
		return err
	}

	var persisted int
	if err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM order_status_history WHERE order_id = $1
	`, order.ID).Scan(&persisted); err != nil {
		return fmt.Errorf("count status history: %w", err)
	}

	if persisted < len(order.StatusHistory) {
		if err = insertHistoryTail(ctx, tx, order.ID, persisted, order.StatusHistory); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save order: %w", err)
	}

	return nil
}

// insertHistoryTail дописывает записи журнала начиная с позиции from.
// Записи нумеруются seq начиная с 1; существующие строки не меняются.
func insertHistoryTail(ctx context.Context, tx *sql.Tx, orderID string, from int, history []domain.StatusChange) error {
	for i := from; i < len(history); i++ {
		change := history[i]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_status_history (
				order_id, seq, status, note, actor_id, actor_role, occurred_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
			orderID, i+1, string(change.Status), change.Note,
			change.ActorID, string(change.ActorRole), change.Occurred,
		); err != nil {
			return fmt.Errorf("insert status history: %w", err)
		}
	}
	return nil
}

func (r *orderRepository) loadDetails(ctx context.Context, order *domain.Order) error {
	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return err
	}
	order.Items = items

	history, err := r.loadHistory(ctx, order.ID)
	if err != nil {
		return err
	}
	order.StatusHistory = history
	return nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, listing_id, title, description, image_url, unit, qty, price_minor, total_minor, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID, &item.ListingID,
			&item.Snapshot.Title, &item.Snapshot.Description, &item.Snapshot.ImageURL, &item.Snapshot.Unit,
			&item.Qty, &item.PriceMinor, &item.TotalMinor, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func (r *orderRepository) loadHistory(ctx context.Context, orderID string) ([]domain.StatusChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, note, actor_id, actor_role, occurred_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY seq ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load status history: %w", err)
	}
	defer rows.Close()

	history := make([]domain.StatusChange, 0)
	for rows.Next() {
		var (
			change domain.StatusChange
			status string
			role   string
		)
		if err := rows.Scan(&status, &change.Note, &change.ActorID, &role, &change.Occurred); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		change.Status = domain.OrderStatus(status)
		change.ActorRole = domain.Role(role)
		history = append(history, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history: %w", err)
	}

	return history, nil
}

// insertArgs раскладывает заказ в аргументы INSERT в порядке orderColumns.
func insertArgs(o *domain.Order) []any {
	var (
		discountType, discountCode, discountReason sql.NullString
		discountAmount                             sql.NullInt64
	)
	if o.Discount != nil {
		discountType = sql.NullString{String: string(o.Discount.Type), Valid: true}
		discountAmount = sql.NullInt64{Int64: o.Discount.Amount, Valid: true}
		discountCode = sql.NullString{String: o.Discount.Code, Valid: true}
		discountReason = sql.NullString{String: o.Discount.Reason, Valid: true}
	}

	custScore, custComment, custRatedAt := ratingArgs(o.CustomerRating)
	sellScore, sellComment, sellRatedAt := ratingArgs(o.SellerRating)
	cancelReason, cancelActorID, cancelActorRole, refundAmount, refundStatus, cancelledAt := cancellationArgs(o.Cancellation)

	return []any{
		o.ID, o.Number, string(o.Type), o.BuyerID, o.SellerID,
		o.SubtotalMinor, o.DeliveryFeeMinor, o.ServiceFeeMinor,
		discountType, discountAmount, discountCode, discountReason,
		o.TotalMinor, o.Currency,
		string(o.Delivery.Type), o.Delivery.Address, o.Delivery.Lat, o.Delivery.Lng,
		nullTime(o.Delivery.WindowFrom), nullTime(o.Delivery.WindowTo),
		nullTime(o.Delivery.EstimatedAt), nullTime(o.Delivery.DeliveredAt),
		string(o.Payment.Method), string(o.Payment.Status), o.Payment.PaidAmountMinor,
		nullTime(o.Payment.PaidAt), o.Payment.TransactionID,
		string(o.Status),
		custScore, custComment, custRatedAt,
		sellScore, sellComment, sellRatedAt,
		cancelReason, cancelActorID, cancelActorRole,
		refundAmount, refundStatus, cancelledAt,
		o.Notes, o.Version, o.CreatedAt, o.UpdatedAt,
	}
}

// saveArgs раскладывает изменяемые поля заказа в аргументы UPDATE.
func saveArgs(o *domain.Order) []any {
	custScore, custComment, custRatedAt := ratingArgs(o.CustomerRating)
	sellScore, sellComment, sellRatedAt := ratingArgs(o.SellerRating)
	cancelReason, cancelActorID, cancelActorRole, refundAmount, refundStatus, cancelledAt := cancellationArgs(o.Cancellation)

	return []any{
		string(o.Status),
		string(o.Payment.Method), string(o.Payment.Status), o.Payment.PaidAmountMinor,
		nullTime(o.Payment.PaidAt), o.Payment.TransactionID,
		nullTime(o.Delivery.EstimatedAt), nullTime(o.Delivery.DeliveredAt),
		custScore, custComment, custRatedAt,
		sellScore, sellComment, sellRatedAt,
		cancelReason, cancelActorID, cancelActorRole,
		refundAmount, refundStatus, cancelledAt,
		o.Notes, o.UpdatedAt,
		o.ID, o.Version,
	}
}

func ratingArgs(r *domain.Rating) (sql.NullInt64, sql.NullString, sql.NullTime) {
	if r == nil {
		return sql.NullInt64{}, sql.NullString{}, sql.NullTime{}
	}
	return sql.NullInt64{Int64: int64(r.Score), Valid: true},
		sql.NullString{String: r.Comment, Valid: true},
		sql.NullTime{Time: r.RatedAt, Valid: true}
}

func cancellationArgs(c *domain.Cancellation) (sql.NullString, sql.NullString, sql.NullString, sql.NullInt64, sql.NullString, sql.NullTime) {
	if c == nil {
		return sql.NullString{}, sql.NullString{}, sql.NullString{}, sql.NullInt64{}, sql.NullString{}, sql.NullTime{}
	}
	refundStatus := sql.NullString{}
	if c.RefundStatus != "" {
		refundStatus = sql.NullString{String: string(c.RefundStatus), Valid: true}
	}
	return sql.NullString{String: c.Reason, Valid: true},
		sql.NullString{String: c.ActorID, Valid: true},
		sql.NullString{String: string(c.ActorRole), Valid: true},
		sql.NullInt64{Int64: c.RefundAmountMinor, Valid: true},
		refundStatus,
		sql.NullTime{Time: c.CancelledAt, Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanOrder читает строку orders в агрегат, восстанавливая nullable-поля.
func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order                                      domain.Order
		orderType, deliveryType                    string
		paymentMethod, paymentStatus, status       string
		discountType, discountCode, discountReason sql.NullString
		discountAmount                             sql.NullInt64
		windowFrom, windowTo, estimatedAt          sql.NullTime
		deliveredAt, paidAt                        sql.NullTime
		custScore, sellScore                       sql.NullInt64
		custComment, sellComment                   sql.NullString
		custRatedAt, sellRatedAt                   sql.NullTime
		cancelReason, cancelActorID                sql.NullString
		cancelActorRole, refundStatus              sql.NullString
		refundAmount                               sql.NullInt64
		cancelledAt                                sql.NullTime
	)

	if err := row.Scan(
		&order.ID, &order.Number, &orderType, &order.BuyerID, &order.SellerID,
		&order.SubtotalMinor, &order.DeliveryFeeMinor, &order.ServiceFeeMinor,
		&discountType, &discountAmount, &discountCode, &discountReason,
		&order.TotalMinor, &order.Currency,
		&deliveryType, &order.Delivery.Address, &order.Delivery.Lat, &order.Delivery.Lng,
		&windowFrom, &windowTo, &estimatedAt, &deliveredAt,
		&paymentMethod, &paymentStatus, &order.Payment.PaidAmountMinor, &paidAt, &order.Payment.TransactionID,
		&status,
		&custScore, &custComment, &custRatedAt,
		&sellScore, &sellComment, &sellRatedAt,
		&cancelReason, &cancelActorID, &cancelActorRole,
		&refundAmount, &refundStatus, &cancelledAt,
		&order.Notes, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}

	order.Type = domain.OrderType(orderType)
	order.Status = domain.OrderStatus(status)
	order.Delivery.Type = domain.FulfilmentType(deliveryType)
	order.Delivery.WindowFrom = timeOrZero(windowFrom)
	order.Delivery.WindowTo = timeOrZero(windowTo)
	order.Delivery.EstimatedAt = timeOrZero(estimatedAt)
	order.Delivery.DeliveredAt = timeOrZero(deliveredAt)
	order.Payment.Method = domain.PaymentMethod(paymentMethod)
	order.Payment.Status = domain.PaymentStatus(paymentStatus)
	order.Payment.PaidAt = timeOrZero(paidAt)

	if discountType.Valid {
		order.Discount = &domain.Discount{
			Type:   domain.DiscountType(discountType.String),
			Amount: discountAmount.Int64,
			Code:   discountCode.String,
			Reason: discountReason.String,
		}
	}
	if custScore.Valid {
		order.CustomerRating = &domain.Rating{
			Score:   int32(custScore.Int64),
			Comment: custComment.String,
			RatedAt: timeOrZero(custRatedAt),
		}
	}
	if sellScore.Valid {
		order.SellerRating = &domain.Rating{
			Score:   int32(sellScore.Int64),
			Comment: sellComment.String,
			RatedAt: timeOrZero(sellRatedAt),
		}
	}
	if cancelReason.Valid || cancelActorID.Valid {
		order.Cancellation = &domain.Cancellation{
			Reason:            cancelReason.String,
			ActorID:           cancelActorID.String,
			ActorRole:         domain.Role(cancelActorRole.String),
			RefundAmountMinor: refundAmount.Int64,
			RefundStatus:      domain.PaymentStatus(refundStatus.String),
			CancelledAt:       timeOrZero(cancelledAt),
		}
	}

	return order, nil
}

func orderExistsTx(ctx context.Context, tx *sql.Tx, orderID string) (bool, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func timeOrZero(nt sql.NullTime) time.Time {
	if !nt.Valid {
		return time.Time{}
	}
	return nt.Time.UTC()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
