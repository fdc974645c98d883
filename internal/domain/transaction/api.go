package transaction

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/hospital/staffportal/internal/domain/invoice"
	"github.com/hospital/staffportal/internal/platform/apiclient"
	"github.com/hospital/staffportal/internal/platform/validation"
	"github.com/hospital/staffportal/internal/portal/action"
	"github.com/hospital/staffportal/internal/portal/detail"
	"github.com/hospital/staffportal/pkg/pagination"
)

const basePath = "/api/v1/finance/transactions"

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

func (a *API) List(ctx context.Context, q pagination.Query) (*pagination.Page[Transaction], error) {
	return apiclient.Get[*pagination.Page[Transaction]](ctx, a.c, basePath, q.Values())
}

func (a *API) Get(ctx context.Context, id int64) (*Transaction, error) {
	return apiclient.Call[*Transaction](ctx, a.c, apiclient.Request{
		Path:     itemPath(id, ""),
		Fallback: "Không thể tải giao dịch",
	})
}

// Advance records an advance payment.
func (a *API) Advance(ctx context.Context, r AdvanceRequest) (*Transaction, error) {
	if !r.Amount.IsPositive() {
		return nil, action.Invalid("Số tiền tạm ứng phải lớn hơn 0")
	}
	if err := validation.Struct(r); err != nil {
		return nil, action.Invalid("%s", err.Error())
	}
	return apiclient.Call[*Transaction](ctx, a.c, apiclient.Request{
		Method:   http.MethodPost,
		Path:     basePath + "/advance-payments",
		Body:     r,
		Fallback: "Tạm ứng thất bại",
	})
}

func (a *API) Refund(ctx context.Context, t Transaction, r RefundRequest) (*Transaction, error) {
	if err := CheckRefund(t, r); err != nil {
		return nil, err
	}
	return apiclient.Call[*Transaction](ctx, a.c, apiclient.Request{
		Method:   http.MethodPost,
		Path:     itemPath(t.ID, "refund"),
		Body:     r,
		Fallback: "Hoàn tiền thất bại",
	})
}

func (a *API) Cancel(ctx context.Context, id int64, reason string) error {
	return a.c.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   itemPath(id, "cancel"),
		Body:   CancelRequest{Reason: reason},
	}, nil)
}

// RefundSpec builds the refund action. A zero amount refunds the whole
// transaction; the reason is always asked.
func (a *API) RefundSpec(t *Transaction, r RefundRequest) action.Spec {
	if r.Amount.IsZero() {
		r.Amount = t.Amount
	}
	return action.Spec{
		Name: action.Refund,
		Validate: func() error {
			if err := detail.Allowed(t, action.Refund); err != nil {
				return err
			}
			return CheckRefund(*t, r)
		},
		Prompt:       "Lý do hoàn tiền",
		NoteRequired: true,
		Call: func(ctx context.Context, in action.Input) error {
			req := r
			req.Reason = in.Note
			_, err := a.Refund(ctx, *t, req)
			return err
		},
		Success: fmt.Sprintf("Đã hoàn %s cho giao dịch %s", invoice.Money(r.Amount), t.Code),
		Failure: "Hoàn tiền thất bại",
	}
}

func (a *API) CancelSpec(t *Transaction) action.Spec {
	return action.Spec{
		Name:     action.Cancel,
		Validate: func() error { return detail.Allowed(t, action.Cancel) },
		Confirm:  fmt.Sprintf("Hủy giao dịch %s?", t.Code),
		Call:     func(ctx context.Context, in action.Input) error { return a.Cancel(ctx, t.ID, in.Note) },
		Success:  fmt.Sprintf("Đã hủy giao dịch %s", t.Code),
		Failure:  "Không thể hủy giao dịch",
	}
}
