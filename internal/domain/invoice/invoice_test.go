package invoice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hospital/staffportal/internal/platform/apiclient"
	"github.com/hospital/staffportal/internal/platform/dialog"
	"github.com/hospital/staffportal/internal/portal/action"
	"github.com/hospital/staffportal/internal/portal/listing"
	"github.com/hospital/staffportal/pkg/pagination"
)

func newAPI(t *testing.T, register func(e *echo.Echo)) *API {
	t.Helper()
	e := echo.New()
	register(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	c, err := apiclient.New(srv.URL)
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	return NewAPI(c)
}

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "OK", "code": 200, "data": data})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAllowedActions(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusIssued, "pay, cancel"},
		{StatusPartialPaid, "pay"},
		{StatusPaid, "-"},
		{StatusCancelled, "-"},
	}
	for _, tt := range tests {
		if got := action.Join(Invoice{Status: tt.status}.AllowedActions()); got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestInvoiceList_FirstOfThreePages(t *testing.T) {
	api := newAPI(t, func(e *echo.Echo) {
		e.GET(basePath, func(c echo.Context) error {
			items := make([]Invoice, 20)
			for i := range items {
				items[i] = Invoice{ID: int64(i + 1), Code: "HD-" + strconv.Itoa(i+1), Status: StatusIssued}
			}
			return ok(c, map[string]any{
				"content": items, "number": 0, "size": 20, "totalPages": 3, "totalElements": 57,
			})
		})
	})

	view := listing.New[Invoice](api.List, pagination.NewQuery(20))
	if err := view.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	st := view.State()
	if len(st.Items) != 20 || st.TotalElements != 57 {
		t.Errorf("items=%d total=%d", len(st.Items), st.TotalElements)
	}
	if st.Label() != "Trang 1 / 3" {
		t.Errorf("label = %q", st.Label())
	}
	if !st.HasNext() || st.HasPrevious() {
		t.Errorf("next=%v previous=%v, want next enabled and previous disabled", st.HasNext(), st.HasPrevious())
	}
}

func TestCheckPayment(t *testing.T) {
	inv := Invoice{UnpaidAmount: dec("500000")}
	tests := []struct {
		amount string
		ok     bool
	}{
		{"0", false},
		{"-1", false},
		{"500000.01", false},
		{"500000", true},
		{"1", true},
	}
	for _, tt := range tests {
		err := CheckPayment(inv, PaymentRequest{Amount: dec(tt.amount), Method: MethodCash})
		if (err == nil) != tt.ok {
			t.Errorf("amount %s: err = %v", tt.amount, err)
		}
	}
}

func TestPaySpec_OverpaymentSendsNothing(t *testing.T) {
	var hits int32
	api := newAPI(t, func(e *echo.Echo) {
		e.POST(basePath+"/:id/payments", func(c echo.Context) error {
			atomic.AddInt32(&hits, 1)
			return ok(c, nil)
		})
	})
	inv := &Invoice{ID: 1, Code: "HD-1", Status: StatusPartialPaid, UnpaidAmount: dec("100000")}
	rec := &dialog.Recorder{}
	outcome, _ := action.NewDispatcher(rec, nil, zerolog.Nop()).Run(context.Background(),
		api.PaySpec(inv, PaymentRequest{Amount: dec("150000"), Method: MethodCash}))
	if outcome != action.Rejected {
		t.Errorf("outcome = %v", outcome)
	}
	if hits != 0 || len(rec.Questions) != 0 {
		t.Errorf("hits=%d questions=%v", hits, rec.Questions)
	}
}

func TestPaySpec_Success(t *testing.T) {
	var body map[string]any
	api := newAPI(t, func(e *echo.Echo) {
		e.POST(basePath+"/:id/payments", func(c echo.Context) error {
			json.NewDecoder(c.Request().Body).Decode(&body)
			return ok(c, Invoice{ID: 1, Status: StatusPaid})
		})
	})
	inv := &Invoice{ID: 1, Code: "HD-1", Status: StatusIssued, UnpaidAmount: dec("100000")}
	refreshes := 0
	d := action.NewDispatcher(&dialog.Recorder{Confirms: []bool{true}}, func(context.Context) error {
		refreshes++
		return nil
	}, zerolog.Nop())

	outcome, err := d.Run(context.Background(), api.PaySpec(inv, PaymentRequest{Amount: dec("100000"), Method: MethodBankTransfer}))
	if outcome != action.Succeeded {
		t.Fatalf("Run = %v, %v", outcome, err)
	}
	if body["amount"] != "100000" || body["paymentMethod"] != "BANK_TRANSFER" {
		t.Errorf("body = %v", body)
	}
	if refreshes != 1 {
		t.Errorf("refreshes = %d", refreshes)
	}
}

func TestPaySpec_RequiresMethod(t *testing.T) {
	api := newAPI(t, func(e *echo.Echo) {})
	inv := &Invoice{ID: 1, Status: StatusIssued, UnpaidAmount: dec("10")}
	d := action.NewDispatcher(&dialog.Recorder{}, nil, zerolog.Nop())
	if outcome, _ := d.Run(context.Background(), api.PaySpec(inv, PaymentRequest{Amount: dec("5")})); outcome != action.Rejected {
		t.Errorf("outcome = %v", outcome)
	}
}

func TestCancelSpec_PaidInvoice(t *testing.T) {
	api := newAPI(t, func(e *echo.Echo) {})
	d := action.NewDispatcher(&dialog.Recorder{}, nil, zerolog.Nop())
	if outcome, _ := d.Run(context.Background(), api.CancelSpec(&Invoice{Status: StatusPaid})); outcome != action.Rejected {
		t.Errorf("outcome = %v", outcome)
	}
}

func TestMoney(t *testing.T) {
	if got := Money(dec("1250000.4")); got != "1250000 ₫" {
		t.Errorf("Money = %q", got)
	}
}
