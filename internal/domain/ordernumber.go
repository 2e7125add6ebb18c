package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// orderNumberPrefix — видимый покупателю префикс номеров заказов.
const orderNumberPrefix = "ELS"

// NewOrderNumber генерирует человекочитаемый номер заказа вида
// ELS-20260831-9F3A1C2B. Суффикс берётся из UUID, поэтому номера
// не конфликтуют при конкурентном создании заказов и не раскрывают
// количество заказов в системе.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", orderNumberPrefix, now.UTC().Format("20060102"), suffix)
}
