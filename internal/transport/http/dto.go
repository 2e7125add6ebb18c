package http

import (
	"time"

	"github.com/elsoug/orders/internal/domain"
	"github.com/elsoug/orders/internal/service/orders"
)

// createOrderRequest — тело POST /orders.
type createOrderRequest struct {
	Items []struct {
		ListingID string `json:"listing_id"`
		Qty       int32  `json:"qty"`
	} `json:"items"`
	Delivery struct {
		Type       string     `json:"type"`
		Address    string     `json:"address"`
		Lat        float64    `json:"lat"`
		Lng        float64    `json:"lng"`
		WindowFrom *time.Time `json:"window_from,omitempty"`
		WindowTo   *time.Time `json:"window_to,omitempty"`
	} `json:"delivery"`
	PaymentMethod    string `json:"payment_method"`
	DeliveryFeeMinor int64  `json:"delivery_fee_minor"`
	ServiceFeeMinor  int64  `json:"service_fee_minor"`
	Discount         *struct {
		Type   string `json:"type"`
		Amount int64  `json:"amount"`
		Code   string `json:"code"`
		Reason string `json:"reason"`
	} `json:"discount,omitempty"`
	Notes string `json:"notes"`
}

// toCreateRequest конвертирует тело запроса в прикладную структуру.
func (r *createOrderRequest) toCreateRequest(buyerID string) orders.CreateOrderRequest {
	req := orders.CreateOrderRequest{
		BuyerID:          buyerID,
		DeliveryType:     domain.FulfilmentType(r.Delivery.Type),
		DeliveryAddress:  r.Delivery.Address,
		DeliveryLat:      r.Delivery.Lat,
		DeliveryLng:      r.Delivery.Lng,
		PaymentMethod:    domain.PaymentMethod(r.PaymentMethod),
		DeliveryFeeMinor: r.DeliveryFeeMinor,
		ServiceFeeMinor:  r.ServiceFeeMinor,
		Notes:            r.Notes,
	}
	if r.Delivery.WindowFrom != nil {
		req.WindowFrom = *r.Delivery.WindowFrom
	}
	if r.Delivery.WindowTo != nil {
		req.WindowTo = *r.Delivery.WindowTo
	}
	if r.Discount != nil {
		req.Discount = &domain.Discount{
			Type:   domain.DiscountType(r.Discount.Type),
			Amount: r.Discount.Amount,
			Code:   r.Discount.Code,
			Reason: r.Discount.Reason,
		}
	}
	for _, item := range r.Items {
		req.Items = append(req.Items, orders.CreateOrderItem{
			ListingID: item.ListingID,
			Qty:       item.Qty,
		})
	}
	return req
}

// updateStatusRequest — тело PUT /orders/{id}/status.
type updateStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// updatePaymentRequest — тело PUT /orders/{id}/payment.
type updatePaymentRequest struct {
	Status          string `json:"status"`
	TransactionID   string `json:"transaction_id"`
	PaidAmountMinor int64  `json:"paid_amount_minor"`
}

// rateOrderRequest — тело PUT /orders/{id}/rating.
type rateOrderRequest struct {
	Score   int32  `json:"score"`
	Comment string `json:"comment"`
}

// disputeRequest — тело POST /orders/{id}/dispute.
type disputeRequest struct {
	Reason string `json:"reason"`
}

// refundRequest — тело POST /orders/{id}/refund.
type refundRequest struct {
	AmountMinor int64  `json:"amount_minor"`
	Reason      string `json:"reason"`
}

type orderItemResponse struct {
	ID          string    `json:"id"`
	ListingID   string    `json:"listing_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Unit        string    `json:"unit,omitempty"`
	Qty         int32     `json:"qty"`
	PriceMinor  int64     `json:"price_minor"`
	TotalMinor  int64     `json:"total_minor"`
	CreatedAt   time.Time `json:"created_at"`
}

type discountResponse struct {
	Type   string `json:"type"`
	Amount int64  `json:"amount"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type deliveryResponse struct {
	Type        string     `json:"type"`
	Address     string     `json:"address,omitempty"`
	Lat         float64    `json:"lat,omitempty"`
	Lng         float64    `json:"lng,omitempty"`
	WindowFrom  *time.Time `json:"window_from,omitempty"`
	WindowTo    *time.Time `json:"window_to,omitempty"`
	EstimatedAt *time.Time `json:"estimated_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

type paymentResponse struct {
	Method          string     `json:"method"`
	Status          string     `json:"status"`
	PaidAmountMinor int64      `json:"paid_amount_minor,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	TransactionID   string     `json:"transaction_id,omitempty"`
}

type ratingResponse struct {
	Score   int32     `json:"score"`
	Comment string    `json:"comment,omitempty"`
	RatedAt time.Time `json:"rated_at"`
}

type cancellationResponse struct {
	Reason            string    `json:"reason,omitempty"`
	ActorID           string    `json:"actor_id"`
	ActorRole         string    `json:"actor_role"`
	RefundAmountMinor int64     `json:"refund_amount_minor,omitempty"`
	RefundStatus      string    `json:"refund_status,omitempty"`
	CancelledAt       time.Time `json:"cancelled_at"`
}

type statusChangeResponse struct {
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	ActorID   string    `json:"actor_id"`
	ActorRole string    `json:"actor_role"`
	Occurred  time.Time `json:"occurred_at"`
}

// orderResponse — представление заказа во всех ответах API.
type orderResponse struct {
	ID               string                 `json:"id"`
	Number           string                 `json:"number"`
	Type             string                 `json:"type"`
	BuyerID          string                 `json:"buyer_id"`
	SellerID         string                 `json:"seller_id"`
	Items            []orderItemResponse    `json:"items"`
	SubtotalMinor    int64                  `json:"subtotal_minor"`
	DeliveryFeeMinor int64                  `json:"delivery_fee_minor"`
	ServiceFeeMinor  int64                  `json:"service_fee_minor"`
	Discount         *discountResponse      `json:"discount,omitempty"`
	TotalMinor       int64                  `json:"total_minor"`
	Currency         string                 `json:"currency"`
	Delivery         deliveryResponse       `json:"delivery"`
	Payment          paymentResponse        `json:"payment"`
	Status           string                 `json:"status"`
	StatusHistory    []statusChangeResponse `json:"status_history"`
	CustomerRating   *ratingResponse        `json:"customer_rating,omitempty"`
	SellerRating     *ratingResponse        `json:"seller_rating,omitempty"`
	Cancellation     *cancellationResponse  `json:"cancellation,omitempty"`
	Notes            string                 `json:"notes,omitempty"`
	Version          int64                  `json:"version"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toRatingResponse(r *domain.Rating) *ratingResponse {
	if r == nil {
		return nil
	}
	return &ratingResponse{Score: r.Score, Comment: r.Comment, RatedAt: r.RatedAt}
}

// toOrderResponse конвертирует агрегат в представление API.
func toOrderResponse(o domain.Order) orderResponse {
	resp := orderResponse{
		ID:               o.ID,
		Number:           o.Number,
		Type:             string(o.Type),
		BuyerID:          o.BuyerID,
		SellerID:         o.SellerID,
		SubtotalMinor:    o.SubtotalMinor,
		DeliveryFeeMinor: o.DeliveryFeeMinor,
		ServiceFeeMinor:  o.ServiceFeeMinor,
		TotalMinor:       o.TotalMinor,
		Currency:         o.Currency,
		Delivery: deliveryResponse{
			Type:        string(o.Delivery.Type),
			Address:     o.Delivery.Address,
			Lat:         o.Delivery.Lat,
			Lng:         o.Delivery.Lng,
			WindowFrom:  timePtr(o.Delivery.WindowFrom),
			WindowTo:    timePtr(o.Delivery.WindowTo),
			EstimatedAt: timePtr(o.Delivery.EstimatedAt),
			DeliveredAt: timePtr(o.Delivery.DeliveredAt),
		},
		Payment: paymentResponse{
			Method:          string(o.Payment.Method),
			Status:          string(o.Payment.Status),
			PaidAmountMinor: o.Payment.PaidAmountMinor,
			PaidAt:          timePtr(o.Payment.PaidAt),
			TransactionID:   o.Payment.TransactionID,
		},
		Status:         string(o.Status),
		CustomerRating: toRatingResponse(o.CustomerRating),
		SellerRating:   toRatingResponse(o.SellerRating),
		Notes:          o.Notes,
		Version:        o.Version,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}

	resp.Items = make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:          item.ID,
			ListingID:   item.ListingID,
			Title:       item.Snapshot.Title,
			Description: item.Snapshot.Description,
			ImageURL:    item.Snapshot.ImageURL,
			Unit:        item.Snapshot.Unit,
			Qty:         item.Qty,
			PriceMinor:  item.PriceMinor,
			TotalMinor:  item.TotalMinor,
			CreatedAt:   item.CreatedAt,
		})
	}

	resp.StatusHistory = make([]statusChangeResponse, 0, len(o.StatusHistory))
	for _, change := range o.StatusHistory {
		resp.StatusHistory = append(resp.StatusHistory, statusChangeResponse{
			Status:    string(change.Status),
			Note:      change.Note,
			ActorID:   change.ActorID,
			ActorRole: string(change.ActorRole),
			Occurred:  change.Occurred,
		})
	}

	if o.Discount != nil {
		resp.Discount = &discountResponse{
			Type:   string(o.Discount.Type),
			Amount: o.Discount.Amount,
			Code:   o.Discount.Code,
			Reason: o.Discount.Reason,
		}
	}
	if o.Cancellation != nil {
		resp.Cancellation = &cancellationResponse{
			Reason:            o.Cancellation.Reason,
			ActorID:           o.Cancellation.ActorID,
			ActorRole:         string(o.Cancellation.ActorRole),
			RefundAmountMinor: o.Cancellation.RefundAmountMinor,
			RefundStatus:      string(o.Cancellation.RefundStatus),
			CancelledAt:       o.Cancellation.CancelledAt,
		}
	}

	return resp
}

func toOrderListResponse(list []domain.Order) []orderResponse {
	result := make([]orderResponse, 0, len(list))
	for _, o := range list {
		result = append(result, toOrderResponse(o))
	}
	return result
}
