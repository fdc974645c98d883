package prescription

import (
	"strconv"

	"github.com/hospital/staffportal/internal/domain/common"
	"github.com/hospital/staffportal/internal/portal/action"
	"github.com/hospital/staffportal/internal/portal/detail"
)

// Kind selects between doctor prescriptions and nursing individual orders.
// Both share one model and one lifecycle.
type Kind string

const (
	KindPrescription    Kind = "prescriptions"
	KindIndividualOrder Kind = "individual-orders"
)

func (k Kind) Label() string {
	if k == KindIndividualOrder {
		return "Y lệnh"
	}
	return "Đơn thuốc"
}

type Priority string

const (
	PriorityRoutine Priority = "ROUTINE"
	PriorityUrgent  Priority = "URGENT"
	PriorityStat    Priority = "STAT"
)

func (p Priority) Label() string {
	switch p {
	case PriorityRoutine:
		return "Thường quy"
	case PriorityUrgent:
		return "Khẩn"
	case PriorityStat:
		return "Cấp cứu"
	default:
		return string(p)
	}
}

type Status string

const (
	StatusDraft        Status = "DRAFT"
	StatusOrdered      Status = "ORDERED"
	StatusVerified     Status = "VERIFIED"
	StatusPrepared     Status = "PREPARED"
	StatusDispensed    Status = "DISPENSED"
	StatusAdministered Status = "ADMINISTERED"
	StatusCompleted    Status = "COMPLETED"
	StatusCancelled    Status = "CANCELLED"
	StatusDiscontinued Status = "DISCONTINUED"
)

func (s Status) Label() string {
	switch s {
	case StatusDraft:
		return "Nháp"
	case StatusOrdered:
		return "Đã chỉ định"
	case StatusVerified:
		return "Đã duyệt"
	case StatusPrepared:
		return "Đã soạn"
	case StatusDispensed:
		return "Đã cấp phát"
	case StatusAdministered:
		return "Đã dùng thuốc"
	case StatusCompleted:
		return "Hoàn thành"
	case StatusCancelled:
		return "Đã hủy"
	case StatusDiscontinued:
		return "Ngừng thuốc"
	default:
		return string(s)
	}
}

// Terminal reports whether no further action exists for s.
func (s Status) Terminal() bool {
	switch s {
	case StatusAdministered, StatusCompleted, StatusCancelled, StatusDiscontinued:
		return true
	default:
		return false
	}
}

// Order is a prescription or individual order line.
type Order struct {
	ID                int64       `json:"id"`
	Code              string      `json:"code"`
	Patient           *common.Ref `json:"patient,omitempty"`
	Medicine          *common.Ref `json:"medicine,omitempty"`
	Quantity          int         `json:"quantity"`
	DispensedQuantity int         `json:"dispensedQuantity,omitempty"`
	DispensingID      int64       `json:"dispensingId,omitempty"`
	Unit              string      `json:"unit,omitempty"`
	Dosage            string      `json:"dosage,omitempty"`
	Frequency         string      `json:"frequency,omitempty"`
	Route             string      `json:"route,omitempty"`
	Priority          Priority    `json:"priority"`
	Status            Status      `json:"status"`
	OrderedBy         *common.Ref `json:"orderedBy,omitempty"`
	OrderedAt         string      `json:"orderedAt,omitempty"`
	Note              string      `json:"note,omitempty"`
}

func (o Order) AllowedActions() []action.Name {
	switch o.Status {
	case StatusDraft, StatusOrdered:
		return []action.Name{action.Verify, action.Reject}
	case StatusVerified:
		return []action.Name{action.Prepare, action.Cancel}
	case StatusPrepared:
		return []action.Name{action.Dispense, action.Cancel}
	case StatusDispensed:
		return []action.Name{action.Administer, action.Return, action.Discontinue}
	case StatusAdministered, StatusCompleted, StatusCancelled, StatusDiscontinued:
		return nil
	default:
		return nil
	}
}

func (o Order) Fields() []detail.Field {
	return []detail.Field{
		{Label: "Mã", Value: o.Code},
		{Label: "Bệnh nhân", Value: o.Patient.Display()},
		{Label: "Thuốc", Value: o.Medicine.Display()},
		{Label: "Số lượng", Value: strconv.Itoa(o.Quantity) + " " + o.Unit},
		{Label: "Đã cấp phát", Value: strconv.Itoa(o.DispensedQuantity)},
		{Label: "Liều dùng", Value: common.OrDash(o.Dosage)},
		{Label: "Tần suất", Value: common.OrDash(o.Frequency)},
		{Label: "Đường dùng", Value: common.OrDash(o.Route)},
		{Label: "Mức ưu tiên", Value: o.Priority.Label()},
		{Label: "Trạng thái", Value: o.Status.Label()},
		{Label: "Người chỉ định", Value: o.OrderedBy.Display()},
		{Label: "Thời gian", Value: common.OrDash(o.OrderedAt)},
		{Label: "Ghi chú", Value: common.OrDash(o.Note)},
	}
}

// NoteRequest is the body of transitions that carry free text.
type NoteRequest struct {
	Note string `json:"note,omitempty"`
}

// DispenseRequest hands the prepared quantity to the ward.
type DispenseRequest struct {
	Quantity  int    `json:"quantity" validate:"gt=0"`
	CabinetID int64  `json:"cabinetId,omitempty" validate:"gte=0"`
	Note      string `json:"note,omitempty"`
}

// Dispensing is a record of medication handed out against an order.
type Dispensing struct {
	ID               int64       `json:"id"`
	Code             string      `json:"code,omitempty"`
	OrderID          int64       `json:"orderId"`
	Patient          *common.Ref `json:"patient,omitempty"`
	Medicine         *common.Ref `json:"medicine,omitempty"`
	Quantity         int         `json:"quantity"`
	ReturnedQuantity int         `json:"returnedQuantity"`
	DispensedAt      string      `json:"dispensedAt,omitempty"`
}

// Returnable is how many units can still be returned.
func (d Dispensing) Returnable() int {
	if n := d.Quantity - d.ReturnedQuantity; n > 0 {
		return n
	}
	return 0
}

// AllowedActions offers a return while anything is left to return.
func (d Dispensing) AllowedActions() []action.Name {
	if d.Returnable() > 0 {
		return []action.Name{action.Return}
	}
	return nil
}

func (d Dispensing) Fields() []detail.Field {
	return []detail.Field{
		{Label: "Mã phiếu", Value: common.OrDash(d.Code)},
		{Label: "Mã đơn", Value: "#" + strconv.FormatInt(d.OrderID, 10)},
		{Label: "Bệnh nhân", Value: d.Patient.Display()},
		{Label: "Thuốc", Value: d.Medicine.Display()},
		{Label: "Đã cấp phát", Value: strconv.Itoa(d.Quantity)},
		{Label: "Đã trả", Value: strconv.Itoa(d.ReturnedQuantity)},
		{Label: "Thời gian", Value: common.OrDash(d.DispensedAt)},
	}
}

// ReturnRequest sends unused medication back to the pharmacy.
type ReturnRequest struct {
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
	Note     string `json:"note,omitempty"`
}

// MedicationReturn is a stored return.
type MedicationReturn struct {
	ID           int64       `json:"id"`
	DispensingID int64       `json:"dispensingId"`
	Medicine     *common.Ref `json:"medicine,omitempty"`
	Quantity     int         `json:"quantity"`
	Reason       string      `json:"reason"`
	ReturnedAt   string      `json:"returnedAt,omitempty"`
}

// CheckReturn rejects quantities outside (0, returnable]. It runs before any
// request is made.
func CheckReturn(d Dispensing, r ReturnRequest) error {
	if r.Quantity <= 0 {
		return action.Invalid("Số lượng trả phải lớn hơn 0")
	}
	if r.Quantity > d.Returnable() {
		return action.Invalid("Số lượng trả (%d) vượt quá số lượng đã cấp phát (%d)", r.Quantity, d.Returnable())
	}
	return nil
}
