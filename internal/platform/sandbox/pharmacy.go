package sandbox

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/hospital/staffportal/internal/domain/cabinet"
	"github.com/hospital/staffportal/internal/domain/common"
	"github.com/hospital/staffportal/internal/domain/prescription"
	"github.com/hospital/staffportal/internal/domain/stocktaking"
	"github.com/hospital/staffportal/internal/platform/validation"
)

func (s *Server) registerPharmacy(g *echo.Group) {
	cab := g.Group("/cabinets")
	cab.GET("", s.listCabinets)
	cab.POST("", s.createCabinet)
	cab.GET("/:id", s.getCabinet)
	cab.PUT("/:id", s.updateCabinet)
	cab.PATCH("/:id/:op", s.toggleCabinet)
	cab.POST("/:id/restock", s.restockCabinet)
	cab.GET("/:id/inventory", s.cabinetInventory)

	st := g.Group("/stock-takings")
	st.GET("", s.listStockTakings)
	st.POST("", s.createStockTaking)
	st.GET("/:id", s.getStockTaking)
	st.PUT("/:id", s.updateStockTaking)
	st.DELETE("/:id", s.deleteStockTaking)
	st.POST("/:id/start", s.startStockTaking)
	st.POST("/:id/complete", s.completeStockTaking)
	st.POST("/:id/cancel", s.cancelStockTaking)
	st.GET("/:id/variance", s.stockTakingVariance)
	st.POST("/:id/apply-adjustments", s.applyAdjustments)

	for _, kind := range []prescription.Kind{prescription.KindPrescription, prescription.KindIndividualOrder} {
		og := g.Group("/" + string(kind))
		og.GET("", s.listOrders(kind))
		og.GET("/:id", s.getOrder(kind))
		og.POST("/:id/:action", s.orderAction(kind))
	}

	dg := g.Group("/dispensing")
	dg.GET("", s.listDispensings)
	dg.GET("/:id", s.getDispensing)
	dg.POST("/:id/returns", s.returnMedication)
}

func username(c echo.Context) string {
	u, _ := c.Get("username").(string)
	return u
}

// --- cabinets ---

func occupancy(items []cabinet.InventoryItem, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	total := 0
	for _, it := range items {
		total += it.Quantity
	}
	rate := float64(total) * 100 / float64(capacity)
	if rate > 100 {
		rate = 100
	}
	return math.Round(rate*10) / 10
}

func stockTotal(items []cabinet.InventoryItem) int {
	total := 0
	for _, it := range items {
		total += it.Quantity
	}
	return total
}

func (d *dataset) refreshOccupancy(c *cabinet.Cabinet) {
	c.OccupancyRate = occupancy(d.inventory[c.ID], c.Capacity)
}

func matchCabinetStatus(status string, c *cabinet.Cabinet) bool {
	switch strings.ToUpper(status) {
	case "":
		return true
	case "ACTIVE":
		return c.IsActive
	case "INACTIVE":
		return !c.IsActive
	case "LOCKED":
		return c.IsLocked
	case "UNLOCKED":
		return !c.IsLocked
	default:
		return false
	}
}

func (s *Server) listCabinets(c echo.Context) error {
	f := readFilters(c)
	var out any
	s.store.read(func(d *dataset) error {
		out = listPage(c, d.cabinets, func(x *cabinet.Cabinet) bool {
			return f.matchKeyword(x.Code, x.Location, refName(x.Department)) &&
				matchCabinetStatus(f.status, x) &&
				f.matchType(string(x.Type))
		})
		return nil
	})
	return success(c, out)
}

func (s *Server) getCabinet(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var out cabinet.Cabinet
	err = s.store.read(func(d *dataset) error {
		x := d.cabinet(id)
		if x == nil {
			return notFound("tủ thuốc", id)
		}
		out = *x
		return nil
	})
	if err != nil {
		return err
	}
	return success(c, out)
}

func bindForm(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return badRequest("Dữ liệu gửi lên không hợp lệ")
	}
	if err := validation.Struct(v); err != nil {
		return badRequest("%s", err.Error())
	}
	return nil
}

func (d *dataset) applyCabinetForm(x *cabinet.Cabinet, f cabinet.Form) error {
	for _, other := range d.cabinets {
		if other.ID != x.ID && strings.EqualFold(other.Code, f.Code) {
			return conflict("Mã tủ %s đã tồn tại", f.Code)
		}
	}
	dep, found := d.department(f.DepartmentID)
	if !found {
		return notFound("khoa", f.DepartmentID)
	}
	var resp *common.Ref
	if f.ResponsibleEmployeeID > 0 {
		if resp, found = d.employee(f.ResponsibleEmployeeID); !found {
			return notFound("nhân viên", f.ResponsibleEmployeeID)
		}
	}
	if used := stockTotal(d.inventory[x.ID]); f.Capacity < used {
		return badRequest("Sức chứa (%d) nhỏ hơn số lượng đang lưu trữ (%d)", f.Capacity, used)
	}

	x.Code = f.Code
	x.Location = f.Location
	x.Type = f.Type
	x.Department = dep
	x.ResponsibleEmployee = resp
	x.Capacity = f.Capacity
	x.Description = f.Description
	d.refreshOccupancy(x)
	return nil
}

func (s *Server) createCabinet(c echo.Context) error {
	var f cabinet.Form
	if err := bindForm(c, &f); err != nil {
		return err
	}
	var out cabinet.Cabinet
	err := s.store.write(func(d *dataset) error {
		x := &cabinet.Cabinet{IsActive: true}
		if err := d.applyCabinetForm(x, f); err != nil {
			return err
		}
		x.ID = d.nextID("cabinet")
		x.UpdatedAt = s.store.timestamp()
		d.cabinets = append(d.cabinets, x)
		out = *x
		return nil
	})
	if err != nil {
		return err
	}
	return created(c, out)
}

func requireOpen(x *cabinet.Cabinet) error {
	switch x.State() {
	case cabinet.StateInactive:
		return conflict("Tủ %s đang ngừng hoạt động", x.Code)
	case cabinet.StateLocked:
		return conflict("Tủ %s đang bị khóa", x.Code)
	}
	return nil
}

func (s *Server) updateCabinet(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var f cabinet.Form
	if err := bindForm(c, &f); err != nil {
		return err
	}
	var out cabinet.Cabinet
	err = s.store.write(func(d *dataset) error {
		x := d.cabinet(id)
		if x == nil {
			return notFound("tủ thuốc", id)
		}
		if err := requireOpen(x); err != nil {
			return err
		}
		next := *x
		if err := d.applyCabinetForm(&next, f); err != nil {
			return err
		}
		next.UpdatedAt = s.store.timestamp()
		*x = next
		out = next
		return nil
	})
	if err != nil {
		return err
	}
	return success(c, out)
}

var toggleVerbs = map[string]string{
	"lock":       "khóa",
	"unlock":     "mở khóa",
	"activate":   "kích hoạt",
	"deactivate": "ngừng hoạt động",
}

func (s *Server) toggleCabinet(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	op := c.Param("op")
	verb, known := toggleVerbs[op]
	if !known {
		return echo.ErrNotFound
	}
	var out cabinet.Cabinet
	err = s.store.write(func(d *dataset) error {
		x := d.cabinet(id)
		if x == nil {
			return notFound("tủ thuốc", id)
		}
		state := x.State()
		allowed := false
		switch op {
		case "lock":
			if allowed = state == cabinet.StateOpen; allowed {
				x.IsLocked = true
			}
		case "unlock":
			if allowed = state == cabinet.StateLocked; allowed {
				x.IsLocked = false
			}
		case "activate":
			if allowed = state == cabinet.StateInactive; allowed {
				x.IsActive = true
			}
		case "deactivate":
			if allowed = state != cabinet.StateInactive; allowed {
				x.IsActive = false
			}
		}
		if !allowed {
			return conflict("Không thể %s tủ %s ở trạng thái %s", verb, x.Code, strings.ToLower(state.String()))
		}
		x.UpdatedAt = s.store.timestamp()
		out = *x
		return nil
	})
	if err != nil {
		return err
	}
	return success(c, out)
}

func (s *Server) restockCabinet(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var r cabinet.RestockRequest
	if err := bindForm(c, &r); err != nil {
		return err
	}
	var out cabinet.Cabinet
	err = s.store.write(func(d *dataset) error {
		x := d.cabinet(id)
		if x == nil {
			return notFound("tủ thuốc", id)
		}
		if err := requireOpen(x); err != nil {
			return err
		}
		m, found := d.medicine(r.MedicineID)
		if !found {
			return notFound("thuốc", r.MedicineID)
		}
		items := d.inventory[x.ID]
		if used := stockTotal(items); used+r.Quantity > x.Capacity {
			return conflict("Vượt quá sức chứa của tủ %s (còn trống %d)", x.Code, x.Capacity-used)
		}

		merged := false
		for i := range items {
			if items[i].MedicineID == m.ID && items[i].BatchNumber == r.BatchNumber {
				items[i].Quantity += r.Quantity
				if r.ExpiryDate != "" {
					items[i].ExpiryDate = r.ExpiryDate
				}
				merged = true
				break
			}
		}
		if !merged {
			items = append(items, cabinet.InventoryItem{
				MedicineID:   m.ID,
				MedicineCode: m.Code,
				MedicineName: m.Name,
				Unit:         m.Unit,
				Quantity:     r.Quantity,
				MinQuantity:  defaultMinQuantity,
				BatchNumber:  r.BatchNumber,
				ExpiryDate:   r.ExpiryDate,
			})
		}
		d.inventory[x.ID] = items
		d.refreshOccupancy(x)
		x.UpdatedAt = s.store.timestamp()
		out = *x
		return nil
	})
	if err != nil {
		return err
	}
	return success(c, out)
}

func (s *Server) cabinetInventory(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	out := []cabinet.InventoryItem{}
	err = s.store.read(func(d *dataset) error {
		if d.cabinet(id) == nil {
			return notFound("tủ thuốc", id)
		}
		out = append(out, d.inventory[id]...)
		return nil
	})
	if err != nil {
		return err
	}
	return success(c, out)
}

// adjustStock moves the stock of one medicine across the given cabinets by
// delta. Shortages drain lines in order; surpluses go to the first line.
func (d *dataset) adjustStock(cabinetIDs []int64, medicineID int64, delta int) bool {
	changed := false
	for _, cid := range cabinetIDs {
		items := d.inventory[cid]
		for i := range items {
			if delta == 0 {
				break
			}
			if items[i].MedicineID != medicineID {
				continue
			}
			if delta > 0 {
				items[i].Quantity += delta
				delta = 0
			} else {
				take := -delta
				if take > items[i].Quantity {
					take = items[i].Quantity
				}
				items[i].Quantity -= take
				delta += take
			}
			changed = true
		}
		if x := d.cabinet(cid); x != nil {
			d.refreshOccupancy(x)
		}
	}
	return changed
}

// --- stock-takings ---

func (s *Server) listStockTakings(c echo.Context) error {
	f := readFilters(c)
	var out any
	s.store.read(func(d *dataset) error {
		out = listPage(c, d.stockTakings, func(x *stocktaking.StockTaking) bool {
			return f.matchKeyword(x.Code, refName(x.Cabinet), x.Note) &&
				f.matchStatus(string(x.Status)) &&
				f.matchType(string(x.Type)) &&
				f.matchDate(x.ScheduledDate)
		})
		return nil
	})
	return success(c, out)
}

func (s *Server) getStockTaking(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var out stocktaking.StockTaking
	err = s.store.read(func(d *dataset) error {
		x := d.stockTaking(id)
		if x == nil {
			return notFound("phiếu kiểm kê", id)
		}
		out = *x
		return nil
	})
	if err != nil {
		return err
	}
	return success(c, out)
}

func (d *dataset) applyStockTakingRequest(x *stocktaking.StockTaking, r stocktaking.Request) error {
	if _, err := time.Parse(stocktaking.DateLayout, r.ScheduledDate); err != nil {
		return badRequest("Ngày kiểm kê không hợp lệ: %s", r.ScheduledDate)
	}
	if r.Type.NeedsCabinet() && r.CabinetID == nil {
		return badRequest("Loại %s yêu cầu phải chọn tủ thuốc", r.Type)
	}
	var ref *common.Ref
	if r.CabinetID != nil {
		cab := d.cabinet(*r.CabinetID)
		if cab == nil {
			return notFound("tủ thuốc", *r.CabinetID)
		}
		ref = &common.Ref{ID: cab.ID, Code: cab.Code, Name: cab.Location}
	}
	x.Type = r.Type
	x.Cabinet = ref
	x.ScheduledDate = r.ScheduledDate
	x.Note = r.Note
	return nil
}

func (s *Server) createStockTaking(c echo.Context) error {
	var r stocktaking.Request
	if err := bindForm(c, &r); err != nil {
		return err
	}
	var out stocktaking.StockTaking
	err := s.store.write(func(d *dataset) error {
		x := &stocktaking.StockTaking{Status: stocktaking.StatusDraft, CreatedBy: username(c)}
		if err := d.applyStockTakingRequest(x, r); err != nil {
			return err
		}
		x.ID = d.nextID("stocktaking")
		x.Code = fmt.Sprintf("KK%05d", x.ID)
		d.stockTakings = append(d.stockTakings, x)
		out = *x
		return nil
	})
	if err != nil {
		return err
	}
	return created(c, out)
}

func requireStatus(x *stocktaking.StockTaking, verb string, allowed ...stocktaking.Status) error {
	for _, st := range allowed {
		if x.Status == st {
			return nil
		}
	}
	return conflict("Không thể %s phiếu kiểm kê %s ở trạng thái %s", verb, x.Code, x.Status.Label())
}

func (s *Server) updateStockTaking(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var r stocktaking.Request
	if err := bindForm(c, &r); err != nil {
		return err
	}
	var out stocktaking.StockTaking
	err = s.store.write(func(d *dataset) error {
		x := d.stockTaking(id)
		if x == nil {
			return notFound("phiếu kiểm kê", id)
		}
		if err := requireStatus(x, "sửa", stocktaking.StatusDraft); err != nil {
			return err
		}
		next := *x
		if err := d.applyStockTakingRequest(&next, r); err != nil {
			return err
		}
		*x = next
		out = next
		return nil
	})
	if err != nil {
		return err
	}
	return success(c, out)
}

func (s *Server) deleteStockTaking(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	err = s.store.write(func(d *dataset) error {
		for i, x := range d.stockTakings {
			if x.ID != id {
				continue
			}
			if err := requireStatus(x, "xóa", stocktaking.StatusDraft); err != nil {
				return err
			}
			d.stockTakings = append(d.stockTakings[:i], d.stockTakings[i+1:]...)
			return nil
		}
		return notFound("phiếu kiểm kê", id)
	})
	if err != nil {
		return err
	}
	return done(c, "Đã xóa phiếu kiểm kê")
}

// scope lists the cabinets a stock-taking counts: its own cabinet, or every
// active medication cabinet for a full count.
func (d *dataset) scope(x *stocktaking.StockTaking) []int64 {
	if x.Cabinet != nil {
		return []int64{x.Cabinet.ID}
	}
	var ids []int64
	for _, c := range d.cabinets {
		if c.IsActive && c.Type == cabinet.TypeMedication {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func (d *dataset) systemQuantities(cabinetIDs []int64) map[int64]int {
	out := map[int64]int{}
	for _, cid := range cabinetIDs {
		for _, it := range d.inventory[cid] {
			out[it.MedicineID] += it.Quantity
		}
	}
	return out
}

func (d *dataset) start(x *stocktaking.StockTaking, at string) {
	snap := d.systemQuantities(d.scope(x))
	d.snapshots[x.ID] = snap
	x.Status = stocktaking.StatusInProgress
	x.StartedAt = at
	x.TotalItems = len(snap)
}

func (s *Server) startStockTaking(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var out stocktaking.StockTaking
	err = s.store.write(func(d *dataset) error {
		x := d.stockTaking(id)
		if x == nil {
			return notFound("phiếu kiểm kê", id)
		}
		if err := requireStatus(x, "bắt đầu", stocktaking.StatusDraft); err != nil {
			return err
		}
		d.start(x, s.store.timestamp())
		out = *x
		return nil
	})
	if err != nil {
		return err
	}
	return success(c, out)
}

// complete records the counts and computes the variance against the
// quantities captured at start. Medicines that were not counted keep their
// system quantity.
func (d *dataset) complete(x *stocktaking.StockTaking, counted map[int64]int, at string) *stocktaking.VarianceAnalysis {
	snap := d.snapshots[x.ID]
	ids := make([]int64, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	a := &stocktaking.VarianceAnalysis{StockTakingID: x.ID, Code: x.Code, Items: []stocktaking.VarianceLine{}}
	for _, id := range ids {
		sys := snap[id]
		cnt, found := counted[id]
		if !found {
			cnt = sys
		}
		m, _ := d.medicine(id)
		v := cnt - sys
		line := stocktaking.VarianceLine{
			MedicineID:      id,
			MedicineCode:    m.Code,
			MedicineName:    m.Name,
			SystemQuantity:  sys,
			CountedQuantity: cnt,
			Variance:        v,
			UnitPrice:       m.UnitPrice,
			VarianceValue:   m.UnitPrice.Mul(decimal.NewFromInt(int64(v))),
		}
		a.Items = append(a.Items, line)
		a.TotalItems++
		if v != 0 {
			a.ItemsWithVariance++
		}
		a.TotalVarianceValue = a.TotalVarianceValue.Add(line.VarianceValue)
	}

	d.variance[x.ID] = a
	total := a.TotalVarianceValue
	x.Status = stocktaking.StatusCompleted
	x.CompletedAt = at
	x.TotalItems = a.TotalItems
	x.VarianceItems = a.ItemsWithVariance
	x.TotalVarianceValue = &total
	return a
}

func (s *Server) completeStockTaking(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var r stocktaking.CompleteRequest
	if err := bindForm(c, &r); err != nil {
		return err
	}
	var out stocktaking.StockTaking
	err = s.store.write(func(d *dataset) error {
		x := d.stockTaking(id)
		if x == nil {
			return notFound("phiếu kiểm kê", id)
		}
		if err := requireStatus(x, "hoàn thành", stocktaking.StatusInProgress); err != nil {
			return err
		}
		snap := d.snapshots[x.ID]
		counted := make(map[int64]int, len(r.Items))
		for _, it := range r.Items {
			if _, found := snap[it.MedicineID]; !found {
				return badRequest("Thuốc #%d không thuộc phạm vi kiểm kê %s", it.MedicineID, x.Code)
			}
			counted[it.MedicineID] = it.CountedQuantity
		}
		d.complete(x, counted, s.store.timestamp())
		if r.Note != "" {
			x.Note = strings.TrimSpace(x.Note + "\n" + r.Note)
		}
		out = *x
		return nil
	})
	if err != nil {
		return err
	}
	return success(c, out)
}

func (s *Server) cancelStockTaking(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var r stocktaking.CancelRequest
	if err := c.Bind(&r); err != nil {
		return badRequest("Dữ liệu gửi lên không hợp lệ")
	}
	if strings.TrimSpace(r.Reason) == "" {
		return badRequest("Vui lòng nhập lý do hủy")
	}
	var out stocktaking.StockTaking
	err = s.store.write(func(d *dataset) error {
		x := d.stockTaking(id)
		if x == nil {
			return notFound("phiếu kiểm kê", id)
		}
		if err := requireStatus(x, "hủy", stocktaking.StatusDraft, stocktaking.StatusInProgress); err != nil {
			return err
		}
		x.Status = stocktaking.StatusCancelled
		x.Note = strings.TrimSpace(x.Note + "\nLý do hủy: " + r.Reason)
		delete(d.snapshots, x.ID)
		out = *x
		return nil
	})
	if err != nil {
		return err
	}
	return success(c, out)
}

func (s *Server) stockTakingVariance(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var out stocktaking.VarianceAnalysis
	err = s.store.read(func(d *dataset) error {
		x := d.stockTaking(id)
		if x == nil {
			return notFound("phiếu kiểm kê", id)
		}
		a, found := d.variance[x.ID]
		if x.Status != stocktaking.StatusCompleted || !found {
			return conflict("Phiếu kiểm kê %s chưa hoàn thành", x.Code)
		}
		out = *a
		out.Items = append([]stocktaking.VarianceLine(nil), a.Items...)
		return nil
	})
	if err != nil {
		return err
	}
	return success(c, out)
}

func (s *Server) applyAdjustments(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var out stocktaking.AdjustmentResult
	err = s.store.write(func(d *dataset) error {
		x := d.stockTaking(id)
		if x == nil {
			return notFound("phiếu kiểm kê", id)
		}
		if err := requireStatus(x, "điều chỉnh tồn kho theo", stocktaking.StatusCompleted); err != nil {
			return err
		}
		if x.AdjustmentsApplied {
			return conflict("Phiếu kiểm kê %s đã được điều chỉnh tồn kho", x.Code)
		}
		out = stocktaking.AdjustmentResult{StockTakingID: x.ID}
		scope := d.scope(x)
		for _, line := range d.variance[x.ID].Items {
			if line.Variance != 0 && d.adjustStock(scope, line.MedicineID, line.Variance) {
				out.AdjustedItems++
			}
		}
		x.AdjustmentsApplied = true
		return nil
	})
	if err != nil {
		return err
	}
	return success(c, out)
}

// --- orders and dispensing ---

type orderTransition struct {
	verb string
	from []prescription.Status
	to   prescription.Status
}

var orderTransitions = map[string]orderTransition{
	"verify":      {"duyệt", []prescription.Status{prescription.StatusDraft, prescription.StatusOrdered}, prescription.StatusVerified},
	"reject":      {"từ chối", []prescription.Status{prescription.StatusDraft, prescription.StatusOrdered}, prescription.StatusCancelled},
	"prepare":     {"chuẩn bị", []prescription.Status{prescription.StatusVerified}, prescription.StatusPrepared},
	"dispense":    {"cấp phát", []prescription.Status{prescription.StatusPrepared}, prescription.StatusDispensed},
	"administer":  {"xác nhận dùng thuốc", []prescription.Status{prescription.StatusDispensed}, prescription.StatusAdministered},
	"cancel":      {"hủy", []prescription.Status{prescription.StatusVerified, prescription.StatusPrepared}, prescription.StatusCancelled},
	"discontinue": {"ngừng", []prescription.Status{prescription.StatusDispensed}, prescription.StatusDiscontinued},
}

func (s *Server) listOrders(kind prescription.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		f := readFilters(c)
		var out any
		s.store.read(func(d *dataset) error {
			out = listPage(c, d.orders[kind], func(o *prescription.Order) bool {
				return f.matchKeyword(o.Code, refName(o.Patient), refName(o.Medicine)) &&
					f.matchStatus(string(o.Status)) &&
					f.matchType(string(o.Priority)) &&
					f.matchDate(o.OrderedAt)
			})
			return nil
		})
		return success(c, out)
	}
}

func (s *Server) getOrder(kind prescription.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return err
		}
		var out prescription.Order
		err = s.store.read(func(d *dataset) error {
			o := d.order(kind, id)
			if o == nil {
				return notFound(strings.ToLower(kind.Label()), id)
			}
			out = *o
			return nil
		})
		if err != nil {
			return err
		}
		return success(c, out)
	}
}

func (s *Server) orderAction(kind prescription.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return err
		}
		name := c.Param("action")
		t, known := orderTransitions[name]
		if !known {
			return echo.ErrNotFound
		}
		var r prescription.DispenseRequest
		if err := c.Bind(&r); err != nil {
			return badRequest("Dữ liệu gửi lên không hợp lệ")
		}

		var out prescription.Order
		err = s.store.write(func(d *dataset) error {
			o := d.order(kind, id)
			if o == nil {
				return notFound(strings.ToLower(kind.Label()), id)
			}
			allowed := false
			for _, st := range t.from {
				allowed = allowed || o.Status == st
			}
			if !allowed {
				return conflict("Không thể %s %s %s ở trạng thái %s", t.verb, strings.ToLower(kind.Label()), o.Code, o.Status.Label())
			}
			if name == "dispense" {
				if err := d.dispense(o, r, s.store.timestamp()); err != nil {
					return err
				}
			}
			o.Status = t.to
			if r.Note != "" {
				o.Note = strings.TrimSpace(o.Note + "\n" + r.Note)
			}
			out = *o
			return nil
		})
		if err != nil {
			return err
		}
		return success(c, out)
	}
}

// dispense records a dispensing for o, taking the stock from the cabinet
// when one is named.
func (d *dataset) dispense(o *prescription.Order, r prescription.DispenseRequest, at string) error {
	qty := r.Quantity
	if qty == 0 {
		qty = o.Quantity
	}
	if qty < 0 || qty > o.Quantity {
		return badRequest("Số lượng cấp phát (%d) vượt quá số lượng chỉ định (%d)", qty, o.Quantity)
	}
	if r.CabinetID > 0 {
		x := d.cabinet(r.CabinetID)
		if x == nil {
			return notFound("tủ thuốc", r.CabinetID)
		}
		if err := requireOpen(x); err != nil {
			return err
		}
		var medID int64
		if o.Medicine != nil {
			medID = o.Medicine.ID
		}
		if d.systemQuantities([]int64{x.ID})[medID] < qty {
			return conflict("Tủ %s không đủ tồn kho để cấp phát %d %s", x.Code, qty, o.Unit)
		}
		d.adjustStock([]int64{x.ID}, medID, -qty)
	}

	disp := &prescription.Dispensing{
		ID:          d.nextID("dispensing"),
		OrderID:     o.ID,
		Patient:     o.Patient,
		Medicine:    o.Medicine,
		Quantity:    qty,
		DispensedAt: at,
	}
	disp.Code = fmt.Sprintf("CP%05d", disp.ID)
	d.dispensings = append(d.dispensings, disp)
	d.dispensedFrom[disp.ID] = r.CabinetID
	o.DispensedQuantity = qty
	o.DispensingID = disp.ID
	return nil
}

func (s *Server) listDispensings(c echo.Context) error {
	f := readFilters(c)
	var out any
	s.store.read(func(d *dataset) error {
		out = listPage(c, d.dispensings, func(x *prescription.Dispensing) bool {
			return f.matchKeyword(x.Code, refName(x.Patient), refName(x.Medicine)) &&
				f.matchDate(x.DispensedAt)
		})
		return nil
	})
	return success(c, out)
}

func (s *Server) getDispensing(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var out prescription.Dispensing
	err = s.store.read(func(d *dataset) error {
		x := d.dispensing(id)
		if x == nil {
			return notFound("phiếu cấp phát", id)
		}
		out = *x
		return nil
	})
	if err != nil {
		return err
	}
	return success(c, out)
}

func (s *Server) returnMedication(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var r prescription.ReturnRequest
	if err := c.Bind(&r); err != nil {
		return badRequest("Dữ liệu gửi lên không hợp lệ")
	}
	if strings.TrimSpace(r.Reason) == "" {
		return badRequest("Vui lòng nhập lý do trả thuốc")
	}
	var out prescription.MedicationReturn
	err = s.store.write(func(d *dataset) error {
		x := d.dispensing(id)
		if x == nil {
			return notFound("phiếu cấp phát", id)
		}
		if err := prescription.CheckReturn(*x, r); err != nil {
			return fail(http.StatusBadRequest, "%s", err.Error())
		}
		x.ReturnedQuantity += r.Quantity
		if cid := d.dispensedFrom[x.ID]; cid > 0 && x.Medicine != nil {
			if !d.adjustStock([]int64{cid}, x.Medicine.ID, r.Quantity) {
				d.restockLine(cid, x.Medicine.ID, r.Quantity)
			}
		}
		ret := &prescription.MedicationReturn{
			ID:           d.nextID("return"),
			DispensingID: x.ID,
			Medicine:     x.Medicine,
			Quantity:     r.Quantity,
			Reason:       r.Reason,
			ReturnedAt:   s.store.timestamp(),
		}
		d.returns = append(d.returns, ret)
		out = *ret
		return nil
	})
	if err != nil {
		return err
	}
	return created(c, out)
}

// restockLine appends a fresh inventory line when the cabinet has none for
// the medicine.
func (d *dataset) restockLine(cabinetID, medicineID int64, qty int) {
	m, found := d.medicine(medicineID)
	if !found {
		return
	}
	d.inventory[cabinetID] = append(d.inventory[cabinetID], cabinet.InventoryItem{
		MedicineID:   m.ID,
		MedicineCode: m.Code,
		MedicineName: m.Name,
		Unit:         m.Unit,
		Quantity:     qty,
		MinQuantity:  defaultMinQuantity,
	})
	if x := d.cabinet(cabinetID); x != nil {
		d.refreshOccupancy(x)
	}
}
