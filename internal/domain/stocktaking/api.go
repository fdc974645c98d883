package stocktaking

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

const basePath = "/api/v1/pharmacist/stock-takings"

type API struct {
	c *apiclient.Client
}

func NewAPI(c *apiclient.Client) *API {
	return &API{c: c}
}

func itemPath(id int64, suffix string) string {
	p := basePath + "/" + strconv.FormatInt(id, 10)
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}

func (a *API) List(ctx context.Context, q pagination.Query) (*pagination.Page[StockTaking], error) {
	return apiclient.Get[*pagination.Page[StockTaking]](ctx, a.c, basePath, q.Values())
}

func (a *API) Get(ctx context.Context, id int64) (*StockTaking, error) {
	return apiclient.Call[*StockTaking](ctx, a.c, apiclient.Request{
		Path:     itemPath(id, ""),
		Fallback: "Không thể tải phiếu kiểm kê",
	})
}

// Create validates f and posts it. Nothing is sent when f is invalid.
func (a *API) Create(ctx context.Context, f FormInput) (*StockTaking, error) {
	req, err := f.Build()
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, action.Invalid("%s", err.Error())
	}
	return apiclient.Call[*StockTaking](ctx, a.c, apiclient.Request{
		Method:   http.MethodPost,
		Path:     basePath,
		Body:     req,
		Fallback: "Không thể tạo phiếu kiểm kê",
	})
}

func (a *API) Update(ctx context.Context, id int64, f FormInput) (*StockTaking, error) {
	req, err := f.Build()
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, action.Invalid("%s", err.Error())
	}
	return apiclient.Call[*StockTaking](ctx, a.c, apiclient.Request{
		Method:   http.MethodPut,
		Path:     itemPath(id, ""),
		Body:     req,
		Fallback: "Không thể cập nhật phiếu kiểm kê",
	})
}

func (a *API) Delete(ctx context.Context, id int64) error {
	return a.c.Do(ctx, apiclient.Request{Method: http.MethodDelete, Path: itemPath(id, "")}, nil)
}

func (a *API) Start(ctx context.Context, id int64) error {
	return a.c.Do(ctx, apiclient.Request{Method: http.MethodPost, Path: itemPath(id, "start")}, nil)
}

func (a *API) Complete(ctx context.Context, id int64, r CompleteRequest) error {
	return a.c.Do(ctx, apiclient.Request{Method: http.MethodPost, Path: itemPath(id, "complete"), Body: r}, nil)
}

func (a *API) Cancel(ctx context.Context, id int64, reason string) error {
	return a.c.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   itemPath(id, "cancel"),
		Body:   CancelRequest{Reason: reason},
	}, nil)
}

func (a *API) Variance(ctx context.Context, id int64) (*VarianceAnalysis, error) {
	return apiclient.Call[*VarianceAnalysis](ctx, a.c, apiclient.Request{
		Path:     itemPath(id, "variance"),
		Fallback: "Không thể tải phân tích chênh lệch",
	})
}

func (a *API) ApplyAdjustments(ctx context.Context, id int64) (*AdjustmentResult, error) {
	return apiclient.Call[*AdjustmentResult](ctx, a.c, apiclient.Request{
		Method: http.MethodPost,
		Path:   itemPath(id, "apply-adjustments"),
	})
}

// VarianceFor loads the variance analysis when s allows it.
func (a *API) VarianceFor(ctx context.Context, s *StockTaking) (*VarianceAnalysis, error) {
	if err := detail.Allowed(s, action.Variance); err != nil {
		return nil, err
	}
	return a.Variance(ctx, s.ID)
}

func gate(s *StockTaking, name action.Name) func() error {
	return func() error { return detail.Allowed(s, name) }
}

func (a *API) DeleteSpec(s *StockTaking) action.Spec {
	return action.Spec{
		Name:     action.Delete,
		Validate: gate(s, action.Delete),
		Confirm:  fmt.Sprintf("Xóa phiếu kiểm kê %s?", s.Code),
		Call:     func(ctx context.Context, _ action.Input) error { return a.Delete(ctx, s.ID) },
		Success:  "Đã xóa phiếu kiểm kê",
		Failure:  "Không thể xóa phiếu kiểm kê",
	}
}

func (a *API) StartSpec(s *StockTaking) action.Spec {
	return action.Spec{
		Name:     action.Start,
		Validate: gate(s, action.Start),
		Confirm:  fmt.Sprintf("Bắt đầu kiểm kê %s?", s.Code),
		Call:     func(ctx context.Context, _ action.Input) error { return a.Start(ctx, s.ID) },
		Success:  "Đã bắt đầu kiểm kê",
		Failure:  "Không thể bắt đầu kiểm kê",
	}
}

func (a *API) CompleteSpec(s *StockTaking, r CompleteRequest) action.Spec {
	return action.Spec{
		Name: action.Complete,
		Validate: func() error {
			if err := detail.Allowed(s, action.Complete); err != nil {
				return err
			}
			if err := validation.Struct(r); err != nil {
				return action.Invalid("%s", err.Error())
			}
			return nil
		},
		Confirm: fmt.Sprintf("Hoàn thành kiểm kê %s với %d mặt hàng?", s.Code, len(r.Items)),
		Call:    func(ctx context.Context, _ action.Input) error { return a.Complete(ctx, s.ID, r) },
		Success: "Đã hoàn thành kiểm kê",
		Failure: "Không thể hoàn thành kiểm kê",
	}
}

func (a *API) CancelSpec(s *StockTaking) action.Spec {
	return action.Spec{
		Name:         action.Cancel,
		Validate:     gate(s, action.Cancel),
		Prompt:       "Lý do hủy",
		NoteRequired: true,
		Call:         func(ctx context.Context, in action.Input) error { return a.Cancel(ctx, s.ID, in.Note) },
		Success:      "Đã hủy phiếu kiểm kê",
		Failure:      "Không thể hủy phiếu kiểm kê",
	}
}

func (a *API) AdjustSpec(s *StockTaking) action.Spec {
	return action.Spec{
		Name:     action.Adjust,
		Validate: gate(s, action.Adjust),
		Confirm:  fmt.Sprintf("Áp dụng điều chỉnh tồn kho theo kết quả kiểm kê %s?", s.Code),
		Call: func(ctx context.Context, _ action.Input) error {
			_, err := a.ApplyAdjustments(ctx, s.ID)
			return err
		},
		Success: "Đã áp dụng điều chỉnh tồn kho",
		Failure: "Không thể áp dụng điều chỉnh",
	}
}
