package domain

// Recompute пересчитывает производные денежные поля заказа: totalMinor
// каждой позиции, subtotal и итоговую сумму с учётом доставки, сервисного
// сбора и скидки. Функция чистая относительно входных полей и идемпотентная:
// повторный вызов без изменения позиций/сборов/скидки даёт тот же итог.
//
// Итог никогда не уходит в минус: при скидке больше суммы заказа он
// ограничивается нулём.
func Recompute(o *Order) {
	var subtotal int64
	for i := range o.Items {
		o.Items[i].TotalMinor = int64(o.Items[i].Qty) * o.Items[i].PriceMinor
		subtotal += o.Items[i].TotalMinor
	}
	o.SubtotalMinor = subtotal
	o.TotalMinor = expectedTotal(o)
}

// expectedTotal вычисляет итоговую сумму из текущих полей заказа,
// не трогая сам заказ. Используется и Recompute, и ValidateInvariants.
func expectedTotal(o *Order) int64 {
	raw := o.SubtotalMinor + o.DeliveryFeeMinor + o.ServiceFeeMinor
	if o.Discount != nil {
		switch o.Discount.Type {
		case DiscountPercentage:
			raw -= raw * o.Discount.Amount / 100
		case DiscountFixed:
			raw -= o.Discount.Amount
		}
	}
	if raw < 0 {
		raw = 0
	}
	return raw
}
