package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter собирает маршруты API заказов. Все эндпоинты требуют
// аутентификации; авторизация по ролям выполняется на уровне сервиса.
func NewRouter(handler *Handler, jwtSecret []byte) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/orders", func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Post("/", handler.CreateOrder)
		r.Get("/", handler.ListOrders)
		r.Get("/my-orders", handler.ListMyOrders)
		r.Get("/{id}", handler.GetOrder)
		r.Put("/{id}/status", handler.UpdateStatus)
		r.Put("/{id}/payment", handler.UpdatePayment)
		r.Put("/{id}/rating", handler.RateOrder)
		r.Post("/{id}/dispute", handler.Dispute)
		r.Post("/{id}/refund", handler.Refund)
	})

	return r
}
