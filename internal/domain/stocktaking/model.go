package stocktaking

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hospital/staffportal/internal/domain/common"
	"github.com/hospital/staffportal/internal/portal/action"
	"github.com/hospital/staffportal/internal/portal/detail"
)

// DateLayout is the wire format of scheduled dates.
const DateLayout = "2006-01-02"

type Type string

const (
	TypeFullCount  Type = "FULL_COUNT"
	TypeCycleCount Type = "CYCLE_COUNT"
	TypeSpotCheck  Type = "SPOT_CHECK"
)

func (t Type) Label() string {
	switch t {
	case TypeFullCount:
		return "Kiểm kê toàn bộ"
	case TypeCycleCount:
		return "Kiểm kê định kỳ"
	case TypeSpotCheck:
		return "Kiểm tra đột xuất"
	default:
		return string(t)
	}
}

// NeedsCabinet reports whether a stock-taking of this type must target one
// cabinet. Only a full count may span the whole pharmacy.
func (t Type) NeedsCabinet() bool {
	return t != TypeFullCount
}

type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

func (s Status) Label() string {
	switch s {
	case StatusDraft:
		return "Nháp"
	case StatusInProgress:
		return "Đang kiểm kê"
	case StatusCompleted:
		return "Hoàn thành"
	case StatusCancelled:
		return "Đã hủy"
	default:
		return string(s)
	}
}

// StockTaking is one inventory count session.
type StockTaking struct {
	ID                 int64            `json:"id"`
	Code               string           `json:"code"`
	Type               Type             `json:"type"`
	Cabinet            *common.Ref      `json:"cabinet,omitempty"`
	ScheduledDate      string           `json:"scheduledDate"`
	Status             Status           `json:"status"`
	Note               string           `json:"note,omitempty"`
	CreatedBy          string           `json:"createdBy,omitempty"`
	StartedAt          string           `json:"startedAt,omitempty"`
	CompletedAt        string           `json:"completedAt,omitempty"`
	AdjustmentsApplied bool             `json:"adjustmentsApplied,omitempty"`
	TotalItems         int              `json:"totalItems,omitempty"`
	VarianceItems      int              `json:"varianceItems,omitempty"`
	TotalVarianceValue *decimal.Decimal `json:"totalVarianceValue,omitempty"`
}

// AllowedActions is the status to action table of the stock-taking screen.
func (s StockTaking) AllowedActions() []action.Name {
	switch s.Status {
	case StatusDraft:
		return []action.Name{action.Edit, action.Delete, action.Start, action.Cancel}
	case StatusInProgress:
		return []action.Name{action.Complete, action.Cancel}
	case StatusCompleted:
		return []action.Name{action.Variance, action.Adjust}
	case StatusCancelled:
		return nil
	default:
		return nil
	}
}

func (s StockTaking) Fields() []detail.Field {
	fields := []detail.Field{
		{Label: "Mã phiếu", Value: s.Code},
		{Label: "Loại", Value: s.Type.Label()},
		{Label: "Tủ thuốc", Value: s.Cabinet.Display()},
		{Label: "Ngày kiểm kê", Value: common.OrDash(s.ScheduledDate)},
		{Label: "Trạng thái", Value: s.Status.Label()},
		{Label: "Người tạo", Value: common.OrDash(s.CreatedBy)},
		{Label: "Ghi chú", Value: common.OrDash(s.Note)},
	}
	if s.Status == StatusCompleted {
		value := "-"
		if s.TotalVarianceValue != nil {
			value = s.TotalVarianceValue.StringFixed(0)
		}
		fields = append(fields,
			detail.Field{Label: "Số mặt hàng", Value: strconv.Itoa(s.TotalItems)},
			detail.Field{Label: "Mặt hàng chênh lệch", Value: strconv.Itoa(s.VarianceItems)},
			detail.Field{Label: "Giá trị chênh lệch", Value: value},
			detail.Field{Label: "Đã điều chỉnh", Value: common.YesNo(s.AdjustmentsApplied)},
		)
	}
	return fields
}

// FormInput is the create/edit form as typed by the user.
type FormInput struct {
	Type          string
	CabinetID     string
	ScheduledDate string
	Note          string
}

// Request is the create/update payload.
type Request struct {
	Type          Type   `json:"type" validate:"required,oneof=FULL_COUNT CYCLE_COUNT SPOT_CHECK"`
	CabinetID     *int64 `json:"cabinetId,omitempty"`
	ScheduledDate string `json:"scheduledDate" validate:"required"`
	Note          string `json:"note,omitempty"`
}

// Build checks the form and coerces it into a Request. Every rule here runs
// before any request is made.
func (f FormInput) Build() (Request, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(f.Type)))
	if t == "" {
		t = TypeFullCount
	}
	req := Request{Type: t, ScheduledDate: strings.TrimSpace(f.ScheduledDate), Note: strings.TrimSpace(f.Note)}

	id, err := common.ParseID(f.CabinetID)
	if err != nil {
		return Request{}, action.Invalid("Mã tủ thuốc không hợp lệ: %s", f.CabinetID)
	}
	if id > 0 {
		req.CabinetID = &id
	}
	if t.NeedsCabinet() && req.CabinetID == nil {
		return Request{}, action.Invalid("Loại %s yêu cầu phải chọn tủ thuốc", t)
	}
	if req.ScheduledDate == "" {
		return Request{}, action.Invalid("Vui lòng chọn ngày kiểm kê")
	}
	if _, err := time.Parse(DateLayout, req.ScheduledDate); err != nil {
		return Request{}, action.Invalid("Ngày kiểm kê không hợp lệ: %s", req.ScheduledDate)
	}
	return req, nil
}

// Count is one counted line submitted on completion.
type Count struct {
	MedicineID      int64  `json:"medicineId" validate:"gt=0"`
	CountedQuantity int    `json:"countedQuantity" validate:"gte=0"`
	Note            string `json:"note,omitempty"`
}

// CompleteRequest closes a count with the quantities found.
type CompleteRequest struct {
	Items []Count `json:"items" validate:"required,min=1,dive"`
	Note  string  `json:"note,omitempty"`
}

// CancelRequest carries the cancellation reason.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// VarianceLine compares system and counted stock for one medicine.
type VarianceLine struct {
	MedicineID      int64           `json:"medicineId"`
	MedicineCode    string          `json:"medicineCode,omitempty"`
	MedicineName    string          `json:"medicineName"`
	SystemQuantity  int             `json:"systemQuantity"`
	CountedQuantity int             `json:"countedQuantity"`
	Variance        int             `json:"variance"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	VarianceValue   decimal.Decimal `json:"varianceValue"`
}

// Shortage reports whether fewer items were counted than recorded.
func (l VarianceLine) Shortage() bool {
	return l.Variance < 0
}

// VarianceAnalysis is the post-count report.
type VarianceAnalysis struct {
	StockTakingID      int64           `json:"stockTakingId"`
	Code               string          `json:"code,omitempty"`
	TotalItems         int             `json:"totalItems"`
	ItemsWithVariance  int             `json:"itemsWithVariance"`
	TotalVarianceValue decimal.Decimal `json:"totalVarianceValue"`
	Items              []VarianceLine  `json:"items"`
}

// AdjustmentResult reports what apply-adjustments changed.
type AdjustmentResult struct {
	StockTakingID int64 `json:"stockTakingId"`
	AdjustedItems int   `json:"adjustedItems"`
}
