package invoice

import (
	"github.com/shopspring/decimal"

	"github.com/hospital/staffportal/internal/domain/common"
	"github.com/hospital/staffportal/internal/portal/action"
	"github.com/hospital/staffportal/internal/portal/detail"
)

type Status string

const (
	StatusIssued      Status = "ISSUED"
	StatusPartialPaid Status = "PARTIAL_PAID"
	StatusPaid        Status = "PAID"
	StatusCancelled   Status = "CANCELLED"
)

func (s Status) Label() string {
	switch s {
	case StatusIssued:
		return "Đã phát hành"
	case StatusPartialPaid:
		return "Thanh toán một phần"
	case StatusPaid:
		return "Đã thanh toán"
	case StatusCancelled:
		return "Đã hủy"
	default:
		return string(s)
	}
}

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "UNPAID"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentPaid    PaymentStatus = "PAID"
)

func (s PaymentStatus) Label() string {
	switch s {
	case PaymentUnpaid:
		return "Chưa thanh toán"
	case PaymentPartial:
		return "Thanh toán một phần"
	case PaymentPaid:
		return "Đã thanh toán"
	default:
		return string(s)
	}
}

// Method is how a payment was made. Shared with transactions.
type Method string

const (
	MethodCash         Method = "CASH"
	MethodCard         Method = "CARD"
	MethodBankTransfer Method = "BANK_TRANSFER"
	MethodEWallet      Method = "E_WALLET"
)

func (m Method) Label() string {
	switch m {
	case MethodCash:
		return "Tiền mặt"
	case MethodCard:
		return "Thẻ"
	case MethodBankTransfer:
		return "Chuyển khoản"
	case MethodEWallet:
		return "Ví điện tử"
	default:
		return string(m)
	}
}

// Invoice is a patient bill.
type Invoice struct {
	ID                     int64           `json:"id"`
	Code                   string          `json:"code"`
	Patient                *common.Ref     `json:"patient,omitempty"`
	TotalAmount            decimal.Decimal `json:"totalAmount"`
	PaidAmount             decimal.Decimal `json:"paidAmount"`
	UnpaidAmount           decimal.Decimal `json:"unpaidAmount"`
	InsuranceCoveredAmount decimal.Decimal `json:"insuranceCoveredAmount"`
	Status                 Status          `json:"status"`
	PaymentStatus          PaymentStatus   `json:"paymentStatus"`
	IssuedAt               string          `json:"issuedAt,omitempty"`
	DueDate                string          `json:"dueDate,omitempty"`
	Note                   string          `json:"note,omitempty"`
}

func (i Invoice) AllowedActions() []action.Name {
	switch i.Status {
	case StatusIssued:
		return []action.Name{action.Pay, action.Cancel}
	case StatusPartialPaid:
		return []action.Name{action.Pay}
	case StatusPaid, StatusCancelled:
		return nil
	default:
		return nil
	}
}

// Money renders an amount in VND.
func Money(d decimal.Decimal) string {
	return d.StringFixedBank(0) + " ₫"
}

func (i Invoice) Fields() []detail.Field {
	return []detail.Field{
		{Label: "Mã hóa đơn", Value: i.Code},
		{Label: "Bệnh nhân", Value: i.Patient.Display()},
		{Label: "Tổng tiền", Value: Money(i.TotalAmount)},
		{Label: "BHYT chi trả", Value: Money(i.InsuranceCoveredAmount)},
		{Label: "Đã thanh toán", Value: Money(i.PaidAmount)},
		{Label: "Còn nợ", Value: Money(i.UnpaidAmount)},
		{Label: "Trạng thái", Value: i.Status.Label()},
		{Label: "Thanh toán", Value: i.PaymentStatus.Label()},
		{Label: "Ngày phát hành", Value: common.OrDash(i.IssuedAt)},
		{Label: "Hạn thanh toán", Value: common.OrDash(i.DueDate)},
		{Label: "Ghi chú", Value: common.OrDash(i.Note)},
	}
}

// PaymentRequest pays part or all of an invoice.
type PaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    Method          `json:"paymentMethod" validate:"required,oneof=CASH CARD BANK_TRANSFER E_WALLET"`
	Reference string          `json:"referenceNumber,omitempty"`
	Note      string          `json:"note,omitempty"`
}

// CheckPayment rejects amounts outside (0, unpaid]. It runs before any
// request is made.
func CheckPayment(i Invoice, r PaymentRequest) error {
	if !r.Amount.IsPositive() {
		return action.Invalid("Số tiền thanh toán phải lớn hơn 0")
	}
	if r.Amount.GreaterThan(i.UnpaidAmount) {
		return action.Invalid("Số tiền thanh toán (%s) vượt quá số tiền còn nợ (%s)", Money(r.Amount), Money(i.UnpaidAmount))
	}
	return nil
}

// CancelRequest carries the cancellation reason.
type CancelRequest struct {
	Reason string `json:"reason"`
}
