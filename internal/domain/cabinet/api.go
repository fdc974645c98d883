package cabinet

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

const basePath = "/api/v1/pharmacist/cabinets"

// API wraps the cabinet endpoints.
type API struct {
	c *apiclient.Client
}

func NewAPI(c *apiclient.Client) *API {
	return &API{c: c}
}

func itemPath(id int64, suffix ...string) string {
	p := basePath + "/" + strconv.FormatInt(id, 10)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

func (a *API) List(ctx context.Context, q pagination.Query) (*pagination.Page[Cabinet], error) {
	return apiclient.Get[*pagination.Page[Cabinet]](ctx, a.c, basePath, q.Values())
}

func (a *API) Get(ctx context.Context, id int64) (*Cabinet, error) {
	return apiclient.Call[*Cabinet](ctx, a.c, apiclient.Request{
		Path:     itemPath(id),
		Fallback: "Không thể tải thông tin tủ thuốc",
	})
}

func (a *API) Create(ctx context.Context, f Form) (*Cabinet, error) {
	if err := validation.Struct(f); err != nil {
		return nil, action.Invalid("%s", err.Error())
	}
	return apiclient.Call[*Cabinet](ctx, a.c, apiclient.Request{
		Method:   http.MethodPost,
		Path:     basePath,
		Body:     f,
		Fallback: "Không thể tạo tủ thuốc",
	})
}

func (a *API) Update(ctx context.Context, id int64, f Form) (*Cabinet, error) {
	if err := validation.Struct(f); err != nil {
		return nil, action.Invalid("%s", err.Error())
	}
	return apiclient.Call[*Cabinet](ctx, a.c, apiclient.Request{
		Method:   http.MethodPut,
		Path:     itemPath(id),
		Body:     f,
		Fallback: "Không thể cập nhật tủ thuốc",
	})
}

func (a *API) toggle(ctx context.Context, id int64, op string) error {
	return a.c.Do(ctx, apiclient.Request{Method: http.MethodPatch, Path: itemPath(id, op)}, nil)
}

func (a *API) Lock(ctx context.Context, id int64) error       { return a.toggle(ctx, id, "lock") }
func (a *API) Unlock(ctx context.Context, id int64) error     { return a.toggle(ctx, id, "unlock") }
func (a *API) Activate(ctx context.Context, id int64) error   { return a.toggle(ctx, id, "activate") }
func (a *API) Deactivate(ctx context.Context, id int64) error { return a.toggle(ctx, id, "deactivate") }

func (a *API) Restock(ctx context.Context, id int64, r RestockRequest) error {
	if err := validation.Struct(r); err != nil {
		return action.Invalid("%s", err.Error())
	}
	return a.c.Do(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Path:     itemPath(id, "restock"),
		Body:     r,
		Fallback: "Nhập bổ sung thất bại",
	}, nil)
}

func (a *API) Inventory(ctx context.Context, id int64) ([]InventoryItem, error) {
	return apiclient.Get[[]InventoryItem](ctx, a.c, itemPath(id, "inventory"), nil)
}

// ToggleSpec builds the lock/unlock/activate/deactivate action for c.
func (a *API) ToggleSpec(c *Cabinet, name action.Name) (action.Spec, error) {
	var call func(context.Context, int64) error
	var verb string
	switch name {
	case action.Lock:
		call, verb = a.Lock, "khóa"
	case action.Unlock:
		call, verb = a.Unlock, "mở khóa"
	case action.Activate:
		call, verb = a.Activate, "kích hoạt"
	case action.Deactivate:
		call, verb = a.Deactivate, "ngừng hoạt động"
	default:
		return action.Spec{}, fmt.Errorf("%s is not a cabinet toggle", name)
	}
	return action.Spec{
		Name:     name,
		Validate: func() error { return detail.Allowed(c, name) },
		Confirm:  fmt.Sprintf("Bạn có chắc muốn %s tủ %s?", verb, c.Code),
		Call:     func(ctx context.Context, _ action.Input) error { return call(ctx, c.ID) },
		Success:  fmt.Sprintf("Đã %s tủ %s", verb, c.Code),
		Failure:  fmt.Sprintf("Không thể %s tủ %s", verb, c.Code),
	}, nil
}

// RestockSpec builds the restock action for c.
func (a *API) RestockSpec(c *Cabinet, r RestockRequest) action.Spec {
	return action.Spec{
		Name: action.Restock,
		Validate: func() error {
			if err := detail.Allowed(c, action.Restock); err != nil {
				return err
			}
			if err := validation.Struct(r); err != nil {
				return action.Invalid("%s", err.Error())
			}
			return nil
		},
		Prompt: "Ghi chú nhập bổ sung",
		Call: func(ctx context.Context, in action.Input) error {
			req := r
			if in.Note != "" {
				req.Note = in.Note
			}
			return a.Restock(ctx, c.ID, req)
		},
		Success: fmt.Sprintf("Đã nhập bổ sung %d vào tủ %s", r.Quantity, c.Code),
		Failure: "Nhập bổ sung thất bại",
	}
}
