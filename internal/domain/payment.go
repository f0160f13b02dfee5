package domain

// PaymentType описывает способ оплаты заказа.
type PaymentType string

const (
	// PaymentTypeCreditCard — оплата банковской картой.
	PaymentTypeCreditCard PaymentType = "credit_card"
	// PaymentTypeBankTransfer — оплата банковским переводом.
	PaymentTypeBankTransfer PaymentType = "bank_transfer"
)

// PaymentLabelUnpaid — метка для заказа без подтверждённой оплаты.
const PaymentLabelUnpaid = "UNPAID"

// Label возвращает wire-метку способа оплаты.
func (p PaymentType) Label() string {
	switch p {
	case PaymentTypeCreditCard:
		return "CREDITCARD"
	case PaymentTypeBankTransfer:
		return "BANKTRANSFER"
	default:
		return "UNKNOWN"
	}
}

// PaymentTypeFromLabel разрешает wire-метку в способ оплаты.
// Неизвестная метка — это отсутствие значения, а не ошибка: решение о том,
// допустимо ли отсутствие, принимает вызывающий слой.
func PaymentTypeFromLabel(label string) (PaymentType, bool) {
	switch label {
	case PaymentTypeCreditCard.Label():
		return PaymentTypeCreditCard, true
	case PaymentTypeBankTransfer.Label():
		return PaymentTypeBankTransfer, true
	default:
		return "", false
	}
}
