package transaction

import (
	"github.com/shopspring/decimal"

	"github.com/hospital/staffportal/internal/domain/common"
	"github.com/hospital/staffportal/internal/domain/invoice"
	"github.com/hospital/staffportal/internal/portal/action"
	"github.com/hospital/staffportal/internal/portal/detail"
)

type Type string

const (
	TypeAdvancePayment Type = "ADVANCE_PAYMENT"
	TypeInvoicePayment Type = "INVOICE_PAYMENT"
	TypeRefund         Type = "REFUND"
	TypeAdvanceUsed    Type = "ADVANCE_USED"
)

func (t Type) Label() string {
	switch t {
	case TypeAdvancePayment:
		return "Tạm ứng"
	case TypeInvoicePayment:
		return "Thanh toán hóa đơn"
	case TypeRefund:
		return "Hoàn tiền"
	case TypeAdvanceUsed:
		return "Sử dụng tạm ứng"
	default:
		return string(t)
	}
}

// Refundable reports whether a completed transaction of this type can be
// refunded. Refunds and advance usages are bookkeeping entries.
func (t Type) Refundable() bool {
	return t != TypeRefund && t != TypeAdvanceUsed
}

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Đang xử lý"
	case StatusCompleted:
		return "Thành công"
	case StatusFailed:
		return "Thất bại"
	case StatusCancelled:
		return "Đã hủy"
	default:
		return string(s)
	}
}

// Transaction is one money movement.
type Transaction struct {
	ID            int64           `json:"id"`
	Code          string          `json:"code"`
	Patient       *common.Ref     `json:"patient,omitempty"`
	Invoice       *common.Ref     `json:"invoice,omitempty"`
	Type          Type            `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Method        invoice.Method  `json:"paymentMethod"`
	Status        Status          `json:"status"`
	Reference     string          `json:"referenceNumber,omitempty"`
	TransactionAt string          `json:"transactionDate,omitempty"`
	Cashier       string          `json:"cashier,omitempty"`
	Note          string          `json:"note,omitempty"`
}

func (t Transaction) AllowedActions() []action.Name {
	switch t.Status {
	case StatusPending:
		return []action.Name{action.Cancel}
	case StatusCompleted:
		if t.Type.Refundable() {
			return []action.Name{action.Refund}
		}
		return nil
	case StatusFailed, StatusCancelled:
		return nil
	default:
		return nil
	}
}

func (t Transaction) Fields() []detail.Field {
	return []detail.Field{
		{Label: "Mã giao dịch", Value: t.Code},
		{Label: "Bệnh nhân", Value: t.Patient.Display()},
		{Label: "Hóa đơn", Value: t.Invoice.Display()},
		{Label: "Loại", Value: t.Type.Label()},
		{Label: "Số tiền", Value: invoice.Money(t.Amount)},
		{Label: "Phương thức", Value: t.Method.Label()},
		{Label: "Trạng thái", Value: t.Status.Label()},
		{Label: "Mã tham chiếu", Value: common.OrDash(t.Reference)},
		{Label: "Thời gian", Value: common.OrDash(t.TransactionAt)},
		{Label: "Thu ngân", Value: common.OrDash(t.Cashier)},
		{Label: "Ghi chú", Value: common.OrDash(t.Note)},
	}
}

// AdvanceRequest records an advance payment by a patient.
type AdvanceRequest struct {
	PatientID int64           `json:"patientId" validate:"gt=0"`
	Amount    decimal.Decimal `json:"amount"`
	Method    invoice.Method  `json:"paymentMethod" validate:"required,oneof=CASH CARD BANK_TRANSFER E_WALLET"`
	Reference string          `json:"referenceNumber,omitempty"`
	Note      string          `json:"note,omitempty"`
}

// RefundRequest refunds part or all of a completed transaction.
type RefundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// CheckRefund rejects amounts outside (0, original amount].
func CheckRefund(t Transaction, r RefundRequest) error {
	if !r.Amount.IsPositive() {
		return action.Invalid("Số tiền hoàn phải lớn hơn 0")
	}
	if r.Amount.GreaterThan(t.Amount) {
		return action.Invalid("Số tiền hoàn (%s) vượt quá số tiền giao dịch (%s)", invoice.Money(r.Amount), invoice.Money(t.Amount))
	}
	return nil
}

type CancelRequest struct {
	Reason string `json:"reason"`
}
