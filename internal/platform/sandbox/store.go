package sandbox

import (
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/hospital/staffportal/internal/domain/cabinet"
	"github.com/hospital/staffportal/internal/domain/common"
	"github.com/hospital/staffportal/internal/domain/invoice"
	"github.com/hospital/staffportal/internal/domain/prescription"
	"github.com/hospital/staffportal/internal/domain/stocktaking"
	"github.com/hospital/staffportal/internal/domain/transaction"
	"github.com/hospital/staffportal/internal/platform/auth"
	"github.com/hospital/staffportal/pkg/pagination"
)

const timestampLayout = "2006-01-02T15:04:05"

// Staff is a sandbox login.
type Staff struct {
	ID           int64
	Username     string
	FullName     string
	Role         string
	Realm        auth.Realm
	passwordHash []byte
}

// Medicine is a catalog entry that cabinets stock.
type Medicine struct {
	ID        int64
	Code      string
	Name      string
	Unit      string
	UnitPrice decimal.Decimal
}

func (m Medicine) ref() *common.Ref {
	return &common.Ref{ID: m.ID, Code: m.Code, Name: m.Name}
}

// dataset is everything the sandbox serves. It is only touched under the
// Store lock.
type dataset struct {
	staff       map[auth.Realm]map[string]Staff
	departments []common.Ref
	employees   []common.Ref
	patients    []common.Ref
	medicines   []Medicine

	cabinets     []*cabinet.Cabinet
	inventory    map[int64][]cabinet.InventoryItem
	stockTakings []*stocktaking.StockTaking
	snapshots    map[int64]map[int64]int
	variance     map[int64]*stocktaking.VarianceAnalysis

	orders        map[prescription.Kind][]*prescription.Order
	dispensings   []*prescription.Dispensing
	dispensedFrom map[int64]int64
	returns       []*prescription.MedicationReturn

	invoices     []*invoice.Invoice
	transactions []*transaction.Transaction
	refunded     map[int64]decimal.Decimal

	ids map[string]int64
}

func newDataset() *dataset {
	return &dataset{
		staff:         map[auth.Realm]map[string]Staff{},
		inventory:     map[int64][]cabinet.InventoryItem{},
		snapshots:     map[int64]map[int64]int{},
		variance:      map[int64]*stocktaking.VarianceAnalysis{},
		orders:        map[prescription.Kind][]*prescription.Order{},
		dispensedFrom: map[int64]int64{},
		refunded:      map[int64]decimal.Decimal{},
		ids:           map[string]int64{},
	}
}

func (d *dataset) nextID(kind string) int64 {
	d.ids[kind]++
	return d.ids[kind]
}

func (d *dataset) addStaff(u Staff, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	u.passwordHash = hash
	if d.staff[u.Realm] == nil {
		d.staff[u.Realm] = map[string]Staff{}
	}
	d.staff[u.Realm][u.Username] = u
	return nil
}

func (d *dataset) medicine(id int64) (Medicine, bool) {
	for _, m := range d.medicines {
		if m.ID == id {
			return m, true
		}
	}
	return Medicine{}, false
}

func (d *dataset) patient(id int64) (*common.Ref, bool) {
	for i := range d.patients {
		if d.patients[i].ID == id {
			p := d.patients[i]
			return &p, true
		}
	}
	return nil, false
}

func (d *dataset) department(id int64) (*common.Ref, bool) {
	for i := range d.departments {
		if d.departments[i].ID == id {
			r := d.departments[i]
			return &r, true
		}
	}
	return nil, false
}

func (d *dataset) employee(id int64) (*common.Ref, bool) {
	for i := range d.employees {
		if d.employees[i].ID == id {
			r := d.employees[i]
			return &r, true
		}
	}
	return nil, false
}

func (d *dataset) cabinet(id int64) *cabinet.Cabinet {
	for _, c := range d.cabinets {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (d *dataset) stockTaking(id int64) *stocktaking.StockTaking {
	for _, s := range d.stockTakings {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (d *dataset) order(kind prescription.Kind, id int64) *prescription.Order {
	for _, o := range d.orders[kind] {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (d *dataset) dispensing(id int64) *prescription.Dispensing {
	for _, x := range d.dispensings {
		if x.ID == id {
			return x
		}
	}
	return nil
}

func (d *dataset) invoice(id int64) *invoice.Invoice {
	for _, i := range d.invoices {
		if i.ID == id {
			return i
		}
	}
	return nil
}

func (d *dataset) transaction(id int64) *transaction.Transaction {
	for _, t := range d.transactions {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Store guards the dataset. Reseeding swaps the whole dataset.
type Store struct {
	mu  sync.RWMutex
	d   *dataset
	now func() time.Time
}

func newStore(d *dataset) *Store {
	return &Store{d: d, now: time.Now}
}

func (s *Store) replace(d *dataset) {
	s.mu.Lock()
	s.d = d
	s.mu.Unlock()
}

func (s *Store) read(fn func(d *dataset) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.d)
}

func (s *Store) write(fn func(d *dataset) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.d)
}

func (s *Store) timestamp() string {
	return s.now().Format(timestampLayout)
}

func (s *Store) staffMember(realm auth.Realm, username string) (Staff, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, found := s.d.staff[realm][username]
	return u, found
}

func (s *Store) authenticate(realm auth.Realm, username, password string) (Staff, bool) {
	u, found := s.staffMember(realm, username)
	if !found {
		return Staff{}, false
	}
	if bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)) != nil {
		return Staff{}, false
	}
	return u, true
}

// filters are the list query parameters shared by every list endpoint.
type filters struct {
	keyword string
	status  string
	typ     string
	from    string
	to      string
}

func readFilters(c echo.Context) filters {
	return filters{
		keyword: strings.ToLower(strings.TrimSpace(c.QueryParam(pagination.KeyKeyword))),
		status:  strings.TrimSpace(c.QueryParam(pagination.KeyStatus)),
		typ:     strings.TrimSpace(c.QueryParam(pagination.KeyType)),
		from:    strings.TrimSpace(c.QueryParam(pagination.KeyFromDate)),
		to:      strings.TrimSpace(c.QueryParam(pagination.KeyToDate)),
	}
}

func (f filters) matchKeyword(fields ...string) bool {
	if f.keyword == "" {
		return true
	}
	for _, v := range fields {
		if strings.Contains(strings.ToLower(v), f.keyword) {
			return true
		}
	}
	return false
}

func (f filters) matchStatus(v string) bool {
	return f.status == "" || strings.EqualFold(f.status, v)
}

func (f filters) matchType(v string) bool {
	return f.typ == "" || strings.EqualFold(f.typ, v)
}

// matchDate compares the date part of an ISO timestamp with the range.
func (f filters) matchDate(ts string) bool {
	if f.from == "" && f.to == "" {
		return true
	}
	day := ts
	if len(day) > 10 {
		day = day[:10]
	}
	if day == "" {
		return false
	}
	if f.from != "" && day < f.from {
		return false
	}
	if f.to != "" && day > f.to {
		return false
	}
	return true
}

func refName(r *common.Ref) string {
	if r == nil {
		return ""
	}
	return r.Code + " " + r.Name
}

// listPage copies the matching items, newest first unless sort asks for
// ascending order, and cuts the requested page.
func listPage[T any](c echo.Context, items []*T, match func(*T) bool) *pagination.Page[T] {
	p := pagination.FromContext(c)
	asc := strings.HasSuffix(strings.ToLower(c.QueryParam("sort")), ",asc")

	matched := make([]T, 0, len(items))
	for i := range items {
		it := items[i]
		if !asc {
			it = items[len(items)-1-i]
		}
		if match(it) {
			matched = append(matched, *it)
		}
	}
	return pagination.NewPage(pagination.Slice(matched, p), len(matched), p.Page, p.Size)
}
