package prescription

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/hospital/staffportal/internal/platform/apiclient"
	"github.com/hospital/staffportal/internal/platform/validation"
	"github.com/hospital/staffportal/internal/portal/action"
	"github.com/hospital/staffportal/internal/portal/detail"
	"github.com/hospital/staffportal/pkg/pagination"
)

const (
	pharmacistPrefix = "/api/v1/pharmacist/"
	dispensingPath   = pharmacistPrefix + "dispensing"
)

// API wraps the endpoints of one order kind.
type API struct {
	c    *apiclient.Client
	kind Kind
}

func NewAPI(c *apiclient.Client, kind Kind) *API {
	return &API{c: c, kind: kind}
}

func (a *API) Kind() Kind {
	return a.kind
}

func (a *API) path(id int64, suffix string) string {
	p := pharmacistPrefix + string(a.kind)
	if id > 0 {
		p += "/" + strconv.FormatInt(id, 10)
	}
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}

func (a *API) List(ctx context.Context, q pagination.Query) (*pagination.Page[Order], error) {
	return apiclient.Get[*pagination.Page[Order]](ctx, a.c, a.path(0, ""), q.Values())
}

func (a *API) Get(ctx context.Context, id int64) (*Order, error) {
	return apiclient.Call[*Order](ctx, a.c, apiclient.Request{
		Path:     a.path(id, ""),
		Fallback: fmt.Sprintf("Không thể tải %s", a.kind.Label()),
	})
}

// transition is the endpoint segment of each lifecycle action.
var transition = map[action.Name]string{
	action.Verify:      "verify",
	action.Reject:      "reject",
	action.Prepare:     "prepare",
	action.Dispense:    "dispense",
	action.Administer:  "administer",
	action.Cancel:      "cancel",
	action.Discontinue: "discontinue",
}

// Transition posts one lifecycle action with an optional body.
func (a *API) Transition(ctx context.Context, id int64, name action.Name, body any) error {
	seg, ok := transition[name]
	if !ok {
		return fmt.Errorf("%s is not an order transition", name)
	}
	return a.c.Do(ctx, apiclient.Request{Method: http.MethodPost, Path: a.path(id, seg), Body: body}, nil)
}

type wording struct {
	verb         string
	prompt       string
	noteRequired bool
}

var wordings = map[action.Name]wording{
	action.Verify:      {verb: "duyệt", prompt: "Ghi chú duyệt"},
	action.Reject:      {verb: "từ chối", prompt: "Lý do từ chối", noteRequired: true},
	action.Prepare:     {verb: "soạn thuốc cho"},
	action.Administer:  {verb: "xác nhận dùng thuốc cho", prompt: "Ghi chú dùng thuốc"},
	action.Cancel:      {verb: "hủy", prompt: "Lý do hủy", noteRequired: true},
	action.Discontinue: {verb: "ngừng", prompt: "Lý do ngừng thuốc", noteRequired: true},
}

// TransitionSpec builds the action for every transition except dispense,
// which needs a quantity (see DispenseSpec).
func (a *API) TransitionSpec(o *Order, name action.Name) (action.Spec, error) {
	w, ok := wordings[name]
	if !ok {
		return action.Spec{}, fmt.Errorf("no transition spec for %s", name)
	}
	label := a.kind.Label()
	spec := action.Spec{
		Name:         name,
		Validate:     func() error { return detail.Allowed(o, name) },
		Prompt:       w.prompt,
		NoteRequired: w.noteRequired,
		Call: func(ctx context.Context, in action.Input) error {
			return a.Transition(ctx, o.ID, name, NoteRequest{Note: in.Note})
		},
		Success: fmt.Sprintf("Đã %s %s %s", w.verb, label, o.Code),
		Failure: fmt.Sprintf("Không thể %s %s", w.verb, label),
	}
	if w.prompt == "" {
		spec.Confirm = fmt.Sprintf("Bạn có chắc muốn %s %s %s?", w.verb, label, o.Code)
	}
	return spec, nil
}

// DispenseSpec builds the dispense action for o.
func (a *API) DispenseSpec(o *Order, r DispenseRequest) action.Spec {
	if r.Quantity == 0 {
		r.Quantity = o.Quantity
	}
	return action.Spec{
		Name: action.Dispense,
		Validate: func() error {
			if err := detail.Allowed(o, action.Dispense); err != nil {
				return err
			}
			if err := validation.Struct(r); err != nil {
				return action.Invalid("%s", err.Error())
			}
			if r.Quantity > o.Quantity {
				return action.Invalid("Số lượng cấp phát (%d) vượt quá số lượng chỉ định (%d)", r.Quantity, o.Quantity)
			}
			return nil
		},
		Confirm: fmt.Sprintf("Cấp phát %d %s cho %s?", r.Quantity, o.Unit, o.Code),
		Call: func(ctx context.Context, _ action.Input) error {
			return a.Transition(ctx, o.ID, action.Dispense, r)
		},
		Success: fmt.Sprintf("Đã cấp phát %s", o.Code),
		Failure: "Cấp phát thất bại",
	}
}

// ReturnsAPI wraps dispensing records and medication returns.
type ReturnsAPI struct {
	c *apiclient.Client
}

func NewReturnsAPI(c *apiclient.Client) *ReturnsAPI {
	return &ReturnsAPI{c: c}
}

func (a *ReturnsAPI) ListDispensings(ctx context.Context, q pagination.Query) (*pagination.Page[Dispensing], error) {
	return apiclient.Get[*pagination.Page[Dispensing]](ctx, a.c, dispensingPath, q.Values())
}

func (a *ReturnsAPI) GetDispensing(ctx context.Context, id int64) (*Dispensing, error) {
	return apiclient.Call[*Dispensing](ctx, a.c, apiclient.Request{
		Path:     dispensingPath + "/" + strconv.FormatInt(id, 10),
		Fallback: "Không thể tải phiếu cấp phát",
	})
}

// Return records a medication return against d. Quantities outside
// (0, returnable] are rejected without a request.
func (a *ReturnsAPI) Return(ctx context.Context, d Dispensing, r ReturnRequest) (*MedicationReturn, error) {
	if err := CheckReturn(d, r); err != nil {
		return nil, err
	}
	return apiclient.Call[*MedicationReturn](ctx, a.c, apiclient.Request{
		Method:   http.MethodPost,
		Path:     dispensingPath + "/" + strconv.FormatInt(d.ID, 10) + "/returns",
		Body:     r,
		Fallback: "Trả thuốc thất bại",
	})
}

// ReturnSpec builds the return action. The reason is asked for when r has
// none.
func (a *ReturnsAPI) ReturnSpec(d *Dispensing, r ReturnRequest) action.Spec {
	spec := action.Spec{
		Name:     action.Return,
		Validate: func() error { return CheckReturn(*d, r) },
		Call: func(ctx context.Context, in action.Input) error {
			req := r
			if in.Note != "" {
				req.Reason = in.Note
			}
			_, err := a.Return(ctx, *d, req)
			return err
		},
		Success: fmt.Sprintf("Đã trả %d đơn vị thuốc", r.Quantity),
		Failure: "Trả thuốc thất bại",
	}
	if r.Reason == "" {
		spec.Prompt = "Lý do trả thuốc"
		spec.NoteRequired = true
	} else {
		spec.Confirm = fmt.Sprintf("Trả %d đơn vị thuốc của phiếu %s?", r.Quantity, d.Code)
	}
	return spec
}

// OrderDispensing builds the dispensing record implied by a dispensed order,
// for screens that start from the order rather than the dispensing list.
func OrderDispensing(o *Order) (*Dispensing, error) {
	if err := detail.Allowed(o, action.Return); err != nil {
		return nil, err
	}
	if o.DispensingID == 0 {
		return nil, action.Invalid("Đơn %s chưa có phiếu cấp phát", o.Code)
	}
	return &Dispensing{
		ID:       o.DispensingID,
		OrderID:  o.ID,
		Patient:  o.Patient,
		Medicine: o.Medicine,
		Quantity: o.DispensedQuantity,
	}, nil
}
