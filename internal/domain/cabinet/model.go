package cabinet

import (
	"fmt"
	"strconv"

	"github.com/hospital/staffportal/internal/domain/common"
	"github.com/hospital/staffportal/internal/portal/action"
	"github.com/hospital/staffportal/internal/portal/detail"
)

// Type is what a cabinet stores.
type Type string

const (
	TypeMedication Type = "MEDICATION"
	TypeMaterial   Type = "MATERIAL"
	TypeEquipment  Type = "EQUIPMENT"
)

// Label is the Vietnamese display name.
func (t Type) Label() string {
	switch t {
	case TypeMedication:
		return "Thuốc"
	case TypeMaterial:
		return "Vật tư"
	case TypeEquipment:
		return "Thiết bị"
	default:
		return string(t)
	}
}

// State is derived from the isActive/isLocked flags.
type State int

const (
	StateInactive State = iota
	StateLocked
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "Ngừng hoạt động"
	case StateLocked:
		return "Đang khóa"
	case StateOpen:
		return "Đang hoạt động"
	default:
		return "unknown"
	}
}

// Cabinet is a medicine, material or equipment cabinet in a department.
type Cabinet struct {
	ID                  int64       `json:"id"`
	Code                string      `json:"code"`
	Location            string      `json:"location"`
	Type                Type        `json:"type"`
	Department          *common.Ref `json:"department,omitempty"`
	ResponsibleEmployee *common.Ref `json:"responsibleEmployee,omitempty"`
	Capacity            int         `json:"capacity"`
	OccupancyRate       float64     `json:"occupancyRate"`
	IsActive            bool        `json:"isActive"`
	IsLocked            bool        `json:"isLocked"`
	Description         string      `json:"description,omitempty"`
	UpdatedAt           string      `json:"updatedAt,omitempty"`
}

// State folds the two flags into one state. An inactive cabinet counts as
// inactive whether or not it is locked.
func (c Cabinet) State() State {
	switch {
	case !c.IsActive:
		return StateInactive
	case c.IsLocked:
		return StateLocked
	default:
		return StateOpen
	}
}

// AllowedActions maps the cabinet state to the actions offered for it.
func (c Cabinet) AllowedActions() []action.Name {
	switch c.State() {
	case StateInactive:
		return []action.Name{action.Activate}
	case StateLocked:
		return []action.Name{action.Unlock, action.Deactivate}
	case StateOpen:
		return []action.Name{action.Edit, action.Lock, action.Restock, action.Deactivate}
	default:
		return nil
	}
}

func (c Cabinet) Fields() []detail.Field {
	return []detail.Field{
		{Label: "Mã tủ", Value: c.Code},
		{Label: "Vị trí", Value: common.OrDash(c.Location)},
		{Label: "Loại", Value: c.Type.Label()},
		{Label: "Khoa", Value: c.Department.Display()},
		{Label: "Người phụ trách", Value: c.ResponsibleEmployee.Display()},
		{Label: "Sức chứa", Value: strconv.Itoa(c.Capacity)},
		{Label: "Tỷ lệ lấp đầy", Value: fmt.Sprintf("%.1f%%", c.OccupancyRate)},
		{Label: "Trạng thái", Value: c.State().String()},
		{Label: "Mô tả", Value: common.OrDash(c.Description)},
	}
}

// Form is the create/update payload.
type Form struct {
	Code                  string `json:"code" validate:"required"`
	Location              string `json:"location" validate:"required"`
	Type                  Type   `json:"type" validate:"required,oneof=MEDICATION MATERIAL EQUIPMENT"`
	DepartmentID          int64  `json:"departmentId" validate:"gt=0"`
	ResponsibleEmployeeID int64  `json:"responsibleEmployeeId,omitempty" validate:"gte=0"`
	Capacity              int    `json:"capacity" validate:"gt=0"`
	Description           string `json:"description,omitempty"`
}

// RestockRequest adds stock of one medicine to a cabinet.
type RestockRequest struct {
	MedicineID  int64  `json:"medicineId" validate:"gt=0"`
	Quantity    int    `json:"quantity" validate:"gt=0"`
	BatchNumber string `json:"batchNumber,omitempty"`
	ExpiryDate  string `json:"expiryDate,omitempty"`
	Note        string `json:"note,omitempty"`
}

// InventoryItem is one line of a cabinet's current stock.
type InventoryItem struct {
	MedicineID   int64  `json:"medicineId"`
	MedicineCode string `json:"medicineCode,omitempty"`
	MedicineName string `json:"medicineName"`
	Unit         string `json:"unit,omitempty"`
	Quantity     int    `json:"quantity"`
	MinQuantity  int    `json:"minQuantity,omitempty"`
	BatchNumber  string `json:"batchNumber,omitempty"`
	ExpiryDate   string `json:"expiryDate,omitempty"`
}

// LowStock reports whether the item is at or under its minimum.
func (i InventoryItem) LowStock() bool {
	return i.MinQuantity > 0 && i.Quantity <= i.MinQuantity
}
