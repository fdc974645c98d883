package sandbox

import (
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/hospital/staffportal/internal/domain/cabinet"
	"github.com/hospital/staffportal/internal/domain/common"
	"github.com/hospital/staffportal/internal/domain/invoice"
	"github.com/hospital/staffportal/internal/domain/prescription"
	"github.com/hospital/staffportal/internal/domain/stocktaking"
	"github.com/hospital/staffportal/internal/domain/transaction"
	"github.com/hospital/staffportal/internal/platform/auth"
)

// DefaultSeed makes the generated data reproducible unless a seed is given.
const DefaultSeed int64 = 20240501

const defaultMinQuantity = 10

// SeedConfig controls the volume of generated data.
type SeedConfig struct {
	Seed            int64 `json:"seed"`
	Patients        int   `json:"patients"`
	Cabinets        int   `json:"cabinets"`
	StockTakings    int   `json:"stockTakings"`
	OrdersPerKind   int   `json:"ordersPerKind"`
	Invoices        int   `json:"invoices"`
	AdvancePayments int   `json:"advancePayments"`
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Seed:            DefaultSeed,
		Patients:        30,
		Cabinets:        8,
		StockTakings:    6,
		OrdersPerKind:   27,
		Invoices:        57,
		AdvancePayments: 10,
	}
}

// withDefaults fills zero counts from DefaultSeedConfig. A negative count
// generates none.
func (c SeedConfig) withDefaults() SeedConfig {
	def := DefaultSeedConfig()
	if c.Seed == 0 {
		c.Seed = def.Seed
	}
	if c.Patients <= 0 {
		c.Patients = def.Patients
	}
	count := func(v, fallback int) int {
		switch {
		case v < 0:
			return 0
		case v == 0:
			return fallback
		default:
			return v
		}
	}
	c.Cabinets = count(c.Cabinets, def.Cabinets)
	c.StockTakings = count(c.StockTakings, def.StockTakings)
	c.OrdersPerKind = count(c.OrdersPerKind, def.OrdersPerKind)
	c.Invoices = count(c.Invoices, def.Invoices)
	c.AdvancePayments = count(c.AdvancePayments, def.AdvancePayments)
	return c
}

// Account is a seeded login.
type Account struct {
	Realm    auth.Realm `json:"realm"`
	Username string     `json:"username"`
	Password string     `json:"password"`
	FullName string     `json:"fullName"`
	Role     string     `json:"role"`
}

// DefaultAccounts are the logins every seeded dataset carries.
var DefaultAccounts = []Account{
	{Realm: auth.RealmPharmacist, Username: "duocsi01", Password: "duocsi@123", FullName: "Nguyễn Thị Lan", Role: "PHARMACIST"},
	{Realm: auth.RealmPharmacist, Username: "duocsi02", Password: "duocsi@123", FullName: "Trần Văn Minh", Role: "PHARMACIST"},
	{Realm: auth.RealmFinance, Username: "ketoan01", Password: "ketoan@123", FullName: "Lê Thu Hà", Role: "CASHIER"},
	{Realm: auth.RealmFinance, Username: "ketoan02", Password: "ketoan@123", FullName: "Phạm Quốc Bảo", Role: "ACCOUNTANT"},
}

// SeedResult summarizes a generated dataset.
type SeedResult struct {
	Seed         int64         `json:"seed"`
	Accounts     int           `json:"accounts"`
	Patients     int           `json:"patients"`
	Medicines    int           `json:"medicines"`
	Cabinets     int           `json:"cabinets"`
	StockTakings int           `json:"stockTakings"`
	Orders       int           `json:"orders"`
	Dispensings  int           `json:"dispensings"`
	Invoices     int           `json:"invoices"`
	Transactions int           `json:"transactions"`
	Duration     time.Duration `json:"duration"`
}

var (
	familyNames = []string{"Nguyễn", "Trần", "Lê", "Phạm", "Hoàng", "Huỳnh", "Phan", "Vũ", "Võ", "Đặng", "Bùi", "Đỗ"}
	middleNames = []string{"Văn", "Thị", "Hữu", "Minh", "Ngọc", "Thanh", "Quốc", "Thu", "Đức", "Gia"}
	givenNames  = []string{"An", "Bình", "Chi", "Dũng", "Giang", "Hà", "Hải", "Hạnh", "Hùng", "Khoa", "Linh", "Long", "Mai", "Nam", "Phúc", "Quân", "Sơn", "Trang", "Tuấn", "Yến"}

	departments = []common.Ref{
		{ID: 1, Code: "K-NOI", Name: "Khoa Nội tổng hợp"},
		{ID: 2, Code: "K-NGOAI", Name: "Khoa Ngoại"},
		{ID: 3, Code: "K-NHI", Name: "Khoa Nhi"},
		{ID: 4, Code: "K-CC", Name: "Khoa Cấp cứu"},
		{ID: 5, Code: "K-DUOC", Name: "Khoa Dược"},
	}

	floors = []string{"Tầng 1", "Tầng 2", "Tầng 3", "Tầng 4"}

	medicineCatalog = []Medicine{
		{Code: "PARA500", Name: "Paracetamol 500mg", Unit: "viên", UnitPrice: decimal.NewFromInt(500)},
		{Code: "AMOX500", Name: "Amoxicillin 500mg", Unit: "viên", UnitPrice: decimal.NewFromInt(1200)},
		{Code: "OME20", Name: "Omeprazol 20mg", Unit: "viên", UnitPrice: decimal.NewFromInt(900)},
		{Code: "MET850", Name: "Metformin 850mg", Unit: "viên", UnitPrice: decimal.NewFromInt(700)},
		{Code: "AML5", Name: "Amlodipin 5mg", Unit: "viên", UnitPrice: decimal.NewFromInt(600)},
		{Code: "VITC500", Name: "Vitamin C 500mg", Unit: "viên", UnitPrice: decimal.NewFromInt(300)},
		{Code: "NACL09", Name: "Natri clorid 0,9% 500ml", Unit: "chai", UnitPrice: decimal.NewFromInt(12000)},
		{Code: "CEF1G", Name: "Ceftriaxon 1g", Unit: "lọ", UnitPrice: decimal.NewFromInt(25000)},
		{Code: "SAL100", Name: "Salbutamol 100mcg", Unit: "bình", UnitPrice: decimal.NewFromInt(65000)},
		{Code: "DIC75", Name: "Diclofenac 75mg/3ml", Unit: "ống", UnitPrice: decimal.NewFromInt(4500)},
		{Code: "LOR10", Name: "Loratadin 10mg", Unit: "viên", UnitPrice: decimal.NewFromInt(400)},
		{Code: "INS100", Name: "Insulin 100IU/ml", Unit: "lọ", UnitPrice: decimal.NewFromInt(150000)},
	}

	dosages     = []string{"1 viên", "2 viên", "1 lọ", "1 ống", "500ml"}
	frequencies = []string{"Ngày 1 lần", "Ngày 2 lần", "Ngày 3 lần", "Khi cần"}
	routes      = []string{"Uống", "Tiêm tĩnh mạch", "Tiêm bắp", "Truyền tĩnh mạch", "Xịt họng"}

	orderStatuses = []prescription.Status{
		prescription.StatusDraft, prescription.StatusOrdered, prescription.StatusVerified,
		prescription.StatusPrepared, prescription.StatusDispensed, prescription.StatusAdministered,
		prescription.StatusCompleted, prescription.StatusCancelled, prescription.StatusDiscontinued,
	}
	stockTakingStatuses = []stocktaking.Status{
		stocktaking.StatusDraft, stocktaking.StatusInProgress, stocktaking.StatusCompleted,
		stocktaking.StatusCancelled, stocktaking.StatusDraft, stocktaking.StatusCompleted,
	}
	stockTakingTypes = []stocktaking.Type{stocktaking.TypeFullCount, stocktaking.TypeCycleCount, stocktaking.TypeSpotCheck}
	methods          = []invoice.Method{invoice.MethodCash, invoice.MethodCard, invoice.MethodBankTransfer, invoice.MethodEWallet}
)

// DataGenerator produces deterministic hospital data.
type DataGenerator struct {
	rng  *rand.Rand
	base time.Time
}

// NewDataGenerator returns a generator seeded for reproducibility. Dates are
// spread over the weeks before base.
func NewDataGenerator(seed int64, base time.Time) *DataGenerator {
	if seed == 0 {
		seed = DefaultSeed
	}
	return &DataGenerator{rng: rand.New(rand.NewSource(seed)), base: base}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) between(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}

func (g *DataGenerator) personName() string {
	return g.pick(familyNames) + " " + g.pick(middleNames) + " " + g.pick(givenNames)
}

// daysAgo returns a timestamp within the last days days.
func (g *DataGenerator) daysAgo(days int) time.Time {
	return g.base.
		AddDate(0, 0, -g.rng.Intn(days+1)).
		Add(time.Duration(g.between(7, 17))*time.Hour + time.Duration(g.rng.Intn(60))*time.Minute)
}

// thousands returns a VND amount between lo and hi thousand.
func (g *DataGenerator) thousands(lo, hi int) decimal.Decimal {
	return decimal.NewFromInt(int64(g.between(lo, hi)) * 1000)
}

// Seeder builds a complete dataset from a SeedConfig.
type Seeder struct {
	config SeedConfig
	now    func() time.Time
}

func NewSeeder(config SeedConfig) *Seeder {
	return &Seeder{config: config.withDefaults(), now: time.Now}
}

func (s *Seeder) Config() SeedConfig {
	return s.config
}

func (s *Seeder) build() (*dataset, *SeedResult, error) {
	start := s.now()
	today := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	g := NewDataGenerator(s.config.Seed, today)
	d := newDataset()

	for i, a := range DefaultAccounts {
		u := Staff{ID: int64(i + 1), Username: a.Username, FullName: a.FullName, Role: a.Role, Realm: a.Realm}
		if err := d.addStaff(u, a.Password); err != nil {
			return nil, nil, fmt.Errorf("seed account %s: %w", a.Username, err)
		}
	}

	d.departments = append(d.departments, departments...)
	for i := 0; i < 6; i++ {
		id := d.nextID("employee")
		d.employees = append(d.employees, common.Ref{ID: id, Code: fmt.Sprintf("NV%03d", id), Name: g.personName()})
	}
	for i := 0; i < s.config.Patients; i++ {
		id := d.nextID("patient")
		d.patients = append(d.patients, common.Ref{ID: id, Code: fmt.Sprintf("BN%05d", id), Name: g.personName()})
	}
	for _, m := range medicineCatalog {
		m.ID = d.nextID("medicine")
		d.medicines = append(d.medicines, m)
	}

	s.seedCabinets(g, d)
	s.seedStockTakings(g, d)
	for _, kind := range []prescription.Kind{prescription.KindPrescription, prescription.KindIndividualOrder} {
		s.seedOrders(g, d, kind)
	}
	s.seedInvoices(g, d)
	s.seedAdvancePayments(g, d)

	res := &SeedResult{
		Seed:         s.config.Seed,
		Accounts:     len(DefaultAccounts),
		Patients:     len(d.patients),
		Medicines:    len(d.medicines),
		Cabinets:     len(d.cabinets),
		StockTakings: len(d.stockTakings),
		Orders:       len(d.orders[prescription.KindPrescription]) + len(d.orders[prescription.KindIndividualOrder]),
		Dispensings:  len(d.dispensings),
		Invoices:     len(d.invoices),
		Transactions: len(d.transactions),
		Duration:     s.now().Sub(start),
	}
	return d, res, nil
}

// seedCabinets creates mostly open medication cabinets; the sixth is locked
// and the eighth inactive so every state is represented.
func (s *Seeder) seedCabinets(g *DataGenerator, d *dataset) {
	for i := 0; i < s.config.Cabinets; i++ {
		typ := cabinet.TypeMedication
		switch i % 6 {
		case 3:
			typ = cabinet.TypeMaterial
		case 4:
			typ = cabinet.TypeEquipment
		}
		dep := d.departments[i%len(d.departments)]
		emp := d.employees[i%len(d.employees)]
		x := &cabinet.Cabinet{
			ID:                  d.nextID("cabinet"),
			Location:            fmt.Sprintf("%s - %s", g.pick(floors), dep.Name),
			Type:                typ,
			Department:          &dep,
			ResponsibleEmployee: &emp,
			Capacity:            g.between(10, 20) * 100,
			IsActive:            i%8 != 7,
			IsLocked:            i%8 == 5,
			UpdatedAt:           g.daysAgo(30).Format(timestampLayout),
		}
		x.Code = fmt.Sprintf("TT-%02d", x.ID)
		if typ == cabinet.TypeMedication {
			perm := g.rng.Perm(len(d.medicines))
			for _, idx := range perm[:g.between(4, 7)] {
				m := d.medicines[idx]
				d.inventory[x.ID] = append(d.inventory[x.ID], cabinet.InventoryItem{
					MedicineID:   m.ID,
					MedicineCode: m.Code,
					MedicineName: m.Name,
					Unit:         m.Unit,
					Quantity:     g.between(5, 150),
					MinQuantity:  defaultMinQuantity,
					BatchNumber:  fmt.Sprintf("LO%04d", g.between(1, 9999)),
					ExpiryDate:   g.base.AddDate(0, g.between(3, 30), 0).Format(stocktaking.DateLayout),
				})
			}
		}
		d.refreshOccupancy(x)
		d.cabinets = append(d.cabinets, x)
	}
}

func (d *dataset) medicationCabinets() []*cabinet.Cabinet {
	var out []*cabinet.Cabinet
	for _, c := range d.cabinets {
		if c.IsActive && c.Type == cabinet.TypeMedication {
			out = append(out, c)
		}
	}
	return out
}

func (s *Seeder) seedStockTakings(g *DataGenerator, d *dataset) {
	cabs := d.medicationCabinets()
	for i := 0; i < s.config.StockTakings; i++ {
		typ := stockTakingTypes[i%len(stockTakingTypes)]
		x := &stocktaking.StockTaking{
			ID:            d.nextID("stocktaking"),
			Type:          typ,
			Status:        stocktaking.StatusDraft,
			ScheduledDate: g.daysAgo(20).Format(stocktaking.DateLayout),
			CreatedBy:     DefaultAccounts[i%2].Username,
		}
		x.Code = fmt.Sprintf("KK%05d", x.ID)
		if typ.NeedsCabinet() {
			if len(cabs) > 0 {
				cab := cabs[i%len(cabs)]
				x.Cabinet = &common.Ref{ID: cab.ID, Code: cab.Code, Name: cab.Location}
			} else {
				x.Type = stocktaking.TypeFullCount
			}
		}
		d.stockTakings = append(d.stockTakings, x)

		status := stockTakingStatuses[i%len(stockTakingStatuses)]
		at := g.daysAgo(10).Format(timestampLayout)
		switch status {
		case stocktaking.StatusInProgress:
			d.start(x, at)
		case stocktaking.StatusCompleted:
			d.start(x, at)
			snap := d.snapshots[x.ID]
			counted := map[int64]int{}
			for _, m := range d.medicines {
				qty, found := snap[m.ID]
				if !found {
					continue
				}
				if g.rng.Intn(3) == 0 {
					qty += g.between(-5, 3)
					if qty < 0 {
						qty = 0
					}
				}
				counted[m.ID] = qty
			}
			d.complete(x, counted, at)
		case stocktaking.StatusCancelled:
			x.Status = stocktaking.StatusCancelled
			x.Note = "Lý do hủy: Trùng lịch kiểm kê"
		}
	}
}

func (s *Seeder) seedOrders(g *DataGenerator, d *dataset, kind prescription.Kind) {
	prefix := "DT"
	if kind == prescription.KindIndividualOrder {
		prefix = "YL"
	}
	cabs := d.medicationCabinets()
	for i := 0; i < s.config.OrdersPerKind; i++ {
		m := d.medicines[g.rng.Intn(len(d.medicines))]
		p := d.patients[g.rng.Intn(len(d.patients))]
		doctor := d.employees[g.rng.Intn(len(d.employees))]
		priority := prescription.PriorityRoutine
		switch n := g.rng.Intn(10); {
		case n == 0:
			priority = prescription.PriorityStat
		case n < 3:
			priority = prescription.PriorityUrgent
		}
		o := &prescription.Order{
			ID:        d.nextID(string(kind)),
			Patient:   &p,
			Medicine:  m.ref(),
			Quantity:  g.between(1, 30),
			Unit:      m.Unit,
			Dosage:    g.pick(dosages),
			Frequency: g.pick(frequencies),
			Route:     g.pick(routes),
			Priority:  priority,
			Status:    orderStatuses[i%len(orderStatuses)],
			OrderedBy: &doctor,
			OrderedAt: g.daysAgo(14).Format(timestampLayout),
		}
		o.Code = fmt.Sprintf("%s%05d", prefix, o.ID)

		switch o.Status {
		case prescription.StatusDispensed, prescription.StatusAdministered, prescription.StatusCompleted, prescription.StatusDiscontinued:
			var cabID int64
			if len(cabs) > 0 {
				cabID = cabs[i%len(cabs)].ID
			}
			disp := &prescription.Dispensing{
				ID:          d.nextID("dispensing"),
				OrderID:     o.ID,
				Patient:     o.Patient,
				Medicine:    o.Medicine,
				Quantity:    o.Quantity,
				DispensedAt: g.daysAgo(7).Format(timestampLayout),
			}
			disp.Code = fmt.Sprintf("CP%05d", disp.ID)
			d.dispensings = append(d.dispensings, disp)
			d.dispensedFrom[disp.ID] = cabID
			o.DispensedQuantity = o.Quantity
			o.DispensingID = disp.ID
		}
		d.orders[kind] = append(d.orders[kind], o)
	}
}

// seedInvoices issues invoices of which about a third are paid, a fifth
// partially paid and one in ten cancelled. Every payment gets a completed
// transaction.
func (s *Seeder) seedInvoices(g *DataGenerator, d *dataset) {
	for i := 0; i < s.config.Invoices; i++ {
		p := d.patients[g.rng.Intn(len(d.patients))]
		issued := g.daysAgo(45)
		total := g.thousands(150, 6000)
		insured := decimal.Zero
		if g.rng.Intn(2) == 0 {
			insured = total.Mul(decimal.NewFromInt(int64(g.between(2, 8)))).Div(decimal.NewFromInt(10)).Round(-3)
		}
		inv := &invoice.Invoice{
			ID:                     d.nextID("invoice"),
			Patient:                &p,
			TotalAmount:            total,
			InsuranceCoveredAmount: insured,
			Status:                 invoice.StatusIssued,
			IssuedAt:               issued.Format(timestampLayout),
			DueDate:                issued.AddDate(0, 0, 30).Format(stocktaking.DateLayout),
		}
		inv.Code = fmt.Sprintf("HD%06d", inv.ID)
		due := total.Sub(insured)

		var paid decimal.Decimal
		switch n := g.rng.Intn(10); {
		case n < 3:
			paid = due
		case n < 5:
			paid = due.Div(decimal.NewFromInt(2)).Round(-3)
		case n == 9:
			inv.Status = invoice.StatusCancelled
			inv.PaymentStatus = invoice.PaymentUnpaid
			inv.UnpaidAmount = due
			inv.Note = "Lý do hủy: Bệnh nhân chuyển viện"
		}
		settle(inv)
		if paid.IsPositive() {
			inv.PaidAmount = paid
			settle(inv)
			d.record(&transaction.Transaction{
				Patient:       inv.Patient,
				Invoice:       invoiceRef(inv),
				Type:          transaction.TypeInvoicePayment,
				Amount:        paid,
				Method:        methods[g.rng.Intn(len(methods))],
				Status:        transaction.StatusCompleted,
				TransactionAt: issued.Add(time.Duration(g.between(1, 48)) * time.Hour).Format(timestampLayout),
				Cashier:       DefaultAccounts[2].Username,
			})
		}
		d.invoices = append(d.invoices, inv)
	}
}

// seedAdvancePayments adds advance payments in every status plus one
// advance consumption and one refund.
func (s *Seeder) seedAdvancePayments(g *DataGenerator, d *dataset) {
	statuses := []transaction.Status{
		transaction.StatusCompleted, transaction.StatusCompleted, transaction.StatusPending,
		transaction.StatusCompleted, transaction.StatusFailed,
	}
	for i := 0; i < s.config.AdvancePayments; i++ {
		p := d.patients[g.rng.Intn(len(d.patients))]
		t := d.record(&transaction.Transaction{
			Patient:       &p,
			Type:          transaction.TypeAdvancePayment,
			Amount:        g.thousands(500, 5000),
			Method:        methods[g.rng.Intn(len(methods))],
			Status:        statuses[i%len(statuses)],
			Reference:     fmt.Sprintf("TU%06d", g.between(1, 999999)),
			TransactionAt: g.daysAgo(30).Format(timestampLayout),
			Cashier:       DefaultAccounts[2+i%2].Username,
		})
		switch i {
		case 0:
			used := t.Amount.Div(decimal.NewFromInt(2)).Round(-3)
			d.record(&transaction.Transaction{
				Patient: t.Patient, Type: transaction.TypeAdvanceUsed, Amount: used, Method: t.Method,
				Status: transaction.StatusCompleted, Reference: t.Code, TransactionAt: t.TransactionAt, Cashier: t.Cashier,
			})
		case 1:
			back := t.Amount.Div(decimal.NewFromInt(4)).Round(-3)
			d.refunded[t.ID] = back
			d.record(&transaction.Transaction{
				Patient: t.Patient, Type: transaction.TypeRefund, Amount: back, Method: t.Method,
				Status: transaction.StatusCompleted, Reference: t.Code, TransactionAt: t.TransactionAt, Cashier: t.Cashier,
				Note: "Hoàn một phần tạm ứng",
			})
		}
	}
}

// SeedHandler exposes reseeding over HTTP.
type SeedHandler struct {
	mu     sync.Mutex
	store  *Store
	config SeedConfig
}

func NewSeedHandler(store *Store, config SeedConfig) *SeedHandler {
	return &SeedHandler{store: store, config: config.withDefaults()}
}

// RegisterRoutes registers the sandbox data routes on g.
func (h *SeedHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/seed", h.handleSeed)
	g.POST("/reset", h.handleReset)
	g.GET("/accounts", h.handleAccounts)
}

func (h *SeedHandler) reseed(cfg SeedConfig) (*SeedResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	seeder := NewSeeder(cfg)
	d, res, err := seeder.build()
	if err != nil {
		return nil, err
	}
	h.store.replace(d)
	h.config = seeder.Config()
	return res, nil
}

func (h *SeedHandler) handleSeed(c echo.Context) error {
	var cfg SeedConfig
	if err := c.Bind(&cfg); err != nil {
		return badRequest("Cấu hình dữ liệu mẫu không hợp lệ")
	}
	res, err := h.reseed(cfg)
	if err != nil {
		return err
	}
	return success(c, res)
}

// handleReset regenerates the last seeded dataset, discarding changes.
func (h *SeedHandler) handleReset(c echo.Context) error {
	h.mu.Lock()
	cfg := h.config
	h.mu.Unlock()

	res, err := h.reseed(cfg)
	if err != nil {
		return err
	}
	return success(c, res)
}

func (h *SeedHandler) handleAccounts(c echo.Context) error {
	return c.JSON(http.StatusOK, envelope{Status: "OK", Code: http.StatusOK, Data: DefaultAccounts})
}
