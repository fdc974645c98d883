package cabinet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hospital/staffportal/internal/platform/apiclient"
	"github.com/hospital/staffportal/internal/platform/dialog"
	"github.com/hospital/staffportal/internal/portal/action"
	"github.com/hospital/staffportal/internal/portal/detail"
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

func TestAllowedActions(t *testing.T) {
	tests := []struct {
		name string
		c    Cabinet
		want []action.Name
	}{
		{"inactive", Cabinet{IsActive: false}, []action.Name{action.Activate}},
		{"inactive and locked", Cabinet{IsActive: false, IsLocked: true}, []action.Name{action.Activate}},
		{"locked", Cabinet{IsActive: true, IsLocked: true}, []action.Name{action.Unlock, action.Deactivate}},
		{"open", Cabinet{IsActive: true}, []action.Name{action.Edit, action.Lock, action.Restock, action.Deactivate}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.c.AllowedActions()
			if action.Join(got) != action.Join(tt.want) {
				t.Errorf("AllowedActions() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFields(t *testing.T) {
	c := Cabinet{Code: "TT-01", Type: TypeMedication, Capacity: 200, OccupancyRate: 37.5, IsActive: true}
	fields := c.Fields()
	values := map[string]string{}
	for _, f := range fields {
		values[f.Label] = f.Value
	}
	if values["Loại"] != "Thuốc" {
		t.Errorf("type label = %q", values["Loại"])
	}
	if values["Tỷ lệ lấp đầy"] != "37.5%" {
		t.Errorf("occupancy = %q", values["Tỷ lệ lấp đầy"])
	}
	if values["Khoa"] != "-" {
		t.Errorf("missing department should render dash, got %q", values["Khoa"])
	}
}

func TestList_SendsQuery(t *testing.T) {
	var gotStatus, gotPage string
	api := newAPI(t, func(e *echo.Echo) {
		e.GET(basePath, func(c echo.Context) error {
			gotStatus = c.QueryParam("status")
			gotPage = c.QueryParam("page")
			return ok(c, map[string]any{
				"content":       []Cabinet{{ID: 1, Code: "TT-01"}},
				"number":        1,
				"size":          20,
				"totalPages":    2,
				"totalElements": 21,
			})
		})
	})

	q := pagination.NewQuery(20).WithPage(1).Merge(map[string]string{pagination.KeyStatus: "ACTIVE"})
	page, err := api.List(context.Background(), q)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if gotStatus != "ACTIVE" || gotPage != "1" {
		t.Errorf("query status=%q page=%q", gotStatus, gotPage)
	}
	if len(page.Content) != 1 || page.TotalElements != 21 || page.Label() != "Trang 2 / 2" {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestCreate_ValidatesBeforeRequest(t *testing.T) {
	var hits int32
	api := newAPI(t, func(e *echo.Echo) {
		e.POST(basePath, func(c echo.Context) error {
			atomic.AddInt32(&hits, 1)
			return ok(c, Cabinet{ID: 9})
		})
	})

	_, err := api.Create(context.Background(), Form{Code: "TT-09", Type: "FRIDGE"})
	var verr *action.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Error("request sent despite invalid form")
	}

	got, err := api.Create(context.Background(), Form{
		Code: "TT-09", Location: "Tầng 2", Type: TypeMaterial, DepartmentID: 3, Capacity: 50,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.ID != 9 || atomic.LoadInt32(&hits) != 1 {
		t.Errorf("got %+v after %d hits", got, hits)
	}
}

func TestToggleSpec_LockRunsPatchAndRefreshes(t *testing.T) {
	var method, path string
	api := newAPI(t, func(e *echo.Echo) {
		e.PATCH(basePath+"/:id/lock", func(c echo.Context) error {
			method, path = c.Request().Method, c.Request().URL.Path
			return ok(c, nil)
		})
	})

	cab := &Cabinet{ID: 4, Code: "TT-04", IsActive: true}
	spec, err := api.ToggleSpec(cab, action.Lock)
	if err != nil {
		t.Fatalf("ToggleSpec: %v", err)
	}

	refreshes := 0
	rec := &dialog.Recorder{Confirms: []bool{true}}
	d := action.NewDispatcher(rec, func(context.Context) error { refreshes++; return nil }, zerolog.Nop())
	if outcome, err := d.Run(context.Background(), spec); outcome != action.Succeeded {
		t.Fatalf("Run = %v, %v", outcome, err)
	}
	if method != http.MethodPatch || path != basePath+"/4/lock" {
		t.Errorf("request %s %s", method, path)
	}
	if refreshes != 1 {
		t.Errorf("refreshes = %d", refreshes)
	}
	if rec.Last().Message != "Đã khóa tủ TT-04" {
		t.Errorf("notice = %+v", rec.Last())
	}
}

func TestToggleSpec_NotAllowedForState(t *testing.T) {
	api := newAPI(t, func(e *echo.Echo) {})
	cab := &Cabinet{ID: 4, Code: "TT-04", IsActive: true, IsLocked: true}
	spec, _ := api.ToggleSpec(cab, action.Lock)

	rec := &dialog.Recorder{}
	d := action.NewDispatcher(rec, nil, zerolog.Nop())
	_, err := d.Run(context.Background(), spec)
	var nae *detail.NotAllowedError
	if !errors.As(err, &nae) {
		t.Fatalf("expected NotAllowedError, got %v", err)
	}
	if len(rec.Questions) != 0 {
		t.Error("confirmation asked for a disallowed action")
	}
}

func TestToggleSpec_UnknownAction(t *testing.T) {
	api := newAPI(t, func(e *echo.Echo) {})
	if _, err := api.ToggleSpec(&Cabinet{}, action.Pay); err == nil {
		t.Error("expected error for non-toggle action")
	}
}

func TestRestockSpec_SendsNote(t *testing.T) {
	var body RestockRequest
	api := newAPI(t, func(e *echo.Echo) {
		e.POST(basePath+"/:id/restock", func(c echo.Context) error {
			json.NewDecoder(c.Request().Body).Decode(&body)
			return ok(c, nil)
		})
	})

	cab := &Cabinet{ID: 2, Code: "TT-02", IsActive: true}
	rec := &dialog.Recorder{Prompts: []*string{dialog.Answer("Bổ sung cuối tuần")}}
	d := action.NewDispatcher(rec, nil, zerolog.Nop())
	outcome, err := d.Run(context.Background(), api.RestockSpec(cab, RestockRequest{MedicineID: 11, Quantity: 30}))
	if outcome != action.Succeeded {
		t.Fatalf("Run = %v, %v", outcome, err)
	}
	if body.MedicineID != 11 || body.Quantity != 30 || body.Note != "Bổ sung cuối tuần" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestRestockSpec_RejectsZeroQuantity(t *testing.T) {
	var hits int32
	api := newAPI(t, func(e *echo.Echo) {
		e.POST(basePath+"/:id/restock", func(c echo.Context) error {
			atomic.AddInt32(&hits, 1)
			return ok(c, nil)
		})
	})
	cab := &Cabinet{ID: 2, IsActive: true}
	d := action.NewDispatcher(&dialog.Recorder{}, nil, zerolog.Nop())
	if outcome, _ := d.Run(context.Background(), api.RestockSpec(cab, RestockRequest{MedicineID: 11})); outcome != action.Rejected {
		t.Errorf("outcome = %v", outcome)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Error("request sent for zero quantity")
	}
}

func TestInventory(t *testing.T) {
	api := newAPI(t, func(e *echo.Echo) {
		e.GET(basePath+"/:id/inventory", func(c echo.Context) error {
			return ok(c, []InventoryItem{
				{MedicineID: 1, MedicineName: "Paracetamol", Quantity: 5, MinQuantity: 10},
				{MedicineID: 2, MedicineName: "Amoxicillin", Quantity: 50, MinQuantity: 10},
			})
		})
	})
	items, err := api.Inventory(context.Background(), 3)
	if err != nil {
		t.Fatalf("Inventory: %v", err)
	}
	if len(items) != 2 || !items[0].LowStock() || items[1].LowStock() {
		t.Errorf("unexpected items %+v", items)
	}
}
