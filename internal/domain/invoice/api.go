package invoice

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

const basePath = "/api/v1/finance/invoices"

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

func (a *API) List(ctx context.Context, q pagination.Query) (*pagination.Page[Invoice], error) {
	return apiclient.Get[*pagination.Page[Invoice]](ctx, a.c, basePath, q.Values())
}

func (a *API) Get(ctx context.Context, id int64) (*Invoice, error) {
	return apiclient.Call[*Invoice](ctx, a.c, apiclient.Request{
		Path:     itemPath(id, ""),
		Fallback: "Không thể tải hóa đơn",
	})
}

// Pay records a payment against inv. The amount is checked locally first.
func (a *API) Pay(ctx context.Context, inv Invoice, r PaymentRequest) (*Invoice, error) {
	if err := CheckPayment(inv, r); err != nil {
		return nil, err
	}
	if err := validation.Struct(r); err != nil {
		return nil, action.Invalid("%s", err.Error())
	}
	return apiclient.Call[*Invoice](ctx, a.c, apiclient.Request{
		Method:   http.MethodPost,
		Path:     itemPath(inv.ID, "payments"),
		Body:     r,
		Fallback: "Thanh toán thất bại",
	})
}

func (a *API) Cancel(ctx context.Context, id int64, reason string) error {
	return a.c.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   itemPath(id, "cancel"),
		Body:   CancelRequest{Reason: reason},
	}, nil)
}

func (a *API) PaySpec(inv *Invoice, r PaymentRequest) action.Spec {
	return action.Spec{
		Name: action.Pay,
		Validate: func() error {
			if err := detail.Allowed(inv, action.Pay); err != nil {
				return err
			}
			if err := CheckPayment(*inv, r); err != nil {
				return err
			}
			if err := validation.Struct(r); err != nil {
				return action.Invalid("%s", err.Error())
			}
			return nil
		},
		Confirm: fmt.Sprintf("Thanh toán %s cho hóa đơn %s bằng %s?", Money(r.Amount), inv.Code, r.Method.Label()),
		Call: func(ctx context.Context, _ action.Input) error {
			_, err := a.Pay(ctx, *inv, r)
			return err
		},
		Success: fmt.Sprintf("Đã thanh toán %s cho hóa đơn %s", Money(r.Amount), inv.Code),
		Failure: "Thanh toán thất bại",
	}
}

func (a *API) CancelSpec(inv *Invoice) action.Spec {
	return action.Spec{
		Name:         action.Cancel,
		Validate:     func() error { return detail.Allowed(inv, action.Cancel) },
		Prompt:       "Lý do hủy hóa đơn",
		NoteRequired: true,
		Call:         func(ctx context.Context, in action.Input) error { return a.Cancel(ctx, inv.ID, in.Note) },
		Success:      fmt.Sprintf("Đã hủy hóa đơn %s", inv.Code),
		Failure:      "Không thể hủy hóa đơn",
	}
}
