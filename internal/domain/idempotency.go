package domain

import "time"

// IdempotencyStatus — фаза обработки запроса по ключу Idempotency-Key.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing — запрос принят, ответ ещё не готов.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone — ответ сохранён и доступен для повторов.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed — обработка завершилась ошибкой; сохранённый
	// ответ с ошибкой тоже воспроизводится на повторах.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// IdempotencyRecord связывает ключ идемпотентности создания заказа с хешем
// тела запроса и закешированным HTTP-ответом. Повтор с тем же ключом и телом
// получает сохранённый ответ; тот же ключ с другим телом отклоняется.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Expired сообщает, истёк ли срок хранения записи к моменту now.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.TTLAt.After(now)
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}
