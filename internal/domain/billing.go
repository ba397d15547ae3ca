package domain

type BillingSummary struct {
	Amount     float64 `json:"amount"`
	PaidAmount float64 `json:"paidAmount"`
}

func Outstanding(billing *BillingSummary) float64 {
	if billing == nil {
		return 0
	}
	return billing.Amount - billing.PaidAmount
}

// IsSettled fails closed: a request without a billing record is never settled.
func IsSettled(billing *BillingSummary) bool {
	if billing == nil {
		return false
	}
	return Outstanding(billing) <= 0
}
