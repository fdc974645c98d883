package sandbox

import (
	"testing"
	"time"

	"github.com/hospital/staffportal/internal/domain/cabinet"
	"github.com/hospital/staffportal/internal/domain/invoice"
	"github.com/hospital/staffportal/internal/domain/prescription"
	"github.com/hospital/staffportal/internal/domain/stocktaking"
	"github.com/hospital/staffportal/internal/domain/transaction"
)

func buildDataset(t *testing.T, cfg SeedConfig) (*dataset, *SeedResult) {
	t.Helper()
	s := NewSeeder(cfg)
	fixed := time.Date(2024, 10, 15, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	d, res, err := s.build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return d, res
}

func TestSeeder_DefaultVolumes(t *testing.T) {
	d, res := buildDataset(t, SeedConfig{})

	if res.Seed != DefaultSeed {
		t.Errorf("seed = %d", res.Seed)
	}
	if len(d.invoices) != 57 || res.Invoices != 57 {
		t.Errorf("invoices = %d", len(d.invoices))
	}
	if len(d.cabinets) != 8 {
		t.Errorf("cabinets = %d", len(d.cabinets))
	}
	if len(d.orders[prescription.KindPrescription]) != 27 || len(d.orders[prescription.KindIndividualOrder]) != 27 {
		t.Errorf("orders = %d/%d", len(d.orders[prescription.KindPrescription]), len(d.orders[prescription.KindIndividualOrder]))
	}
	if res.Transactions != len(d.transactions) || res.Transactions == 0 {
		t.Errorf("transactions = %d", res.Transactions)
	}
	for _, a := range DefaultAccounts {
		if _, found := d.staff[a.Realm][a.Username]; !found {
			t.Errorf("account %s/%s not seeded", a.Realm, a.Username)
		}
	}
}

func TestSeeder_Deterministic(t *testing.T) {
	a, _ := buildDataset(t, SeedConfig{Seed: 7})
	b, _ := buildDataset(t, SeedConfig{Seed: 7})

	for i := range a.invoices {
		x, y := a.invoices[i], b.invoices[i]
		if x.Code != y.Code || !x.TotalAmount.Equal(y.TotalAmount) || x.Status != y.Status || x.Patient.Name != y.Patient.Name {
			t.Fatalf("invoice %d differs: %+v vs %+v", i, x, y)
		}
	}
	for i := range a.stockTakings {
		x, y := a.stockTakings[i], b.stockTakings[i]
		if x.VarianceItems != y.VarianceItems || x.Status != y.Status {
			t.Fatalf("stock-taking %d differs", i)
		}
	}

	c, _ := buildDataset(t, SeedConfig{Seed: 8})
	same := true
	for i := range a.invoices {
		if !a.invoices[i].TotalAmount.Equal(c.invoices[i].TotalAmount) {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical invoices")
	}
}

func TestSeeder_CoversEveryState(t *testing.T) {
	d, _ := buildDataset(t, SeedConfig{})

	states := map[cabinet.State]bool{}
	for _, c := range d.cabinets {
		states[c.State()] = true
		if c.OccupancyRate < 0 || c.OccupancyRate > 100 {
			t.Errorf("%s occupancy %.1f", c.Code, c.OccupancyRate)
		}
	}
	for _, st := range []cabinet.State{cabinet.StateInactive, cabinet.StateLocked, cabinet.StateOpen} {
		if !states[st] {
			t.Errorf("no cabinet in state %s", st)
		}
	}

	orderStates := map[prescription.Status]bool{}
	for _, o := range d.orders[prescription.KindPrescription] {
		orderStates[o.Status] = true
		if o.Status == prescription.StatusDispensed && d.dispensing(o.DispensingID) == nil {
			t.Errorf("%s dispensed without a dispensing record", o.Code)
		}
	}
	if len(orderStates) != len(orderStatuses) {
		t.Errorf("order statuses = %v", orderStates)
	}

	stStates := map[stocktaking.Status]bool{}
	for _, s := range d.stockTakings {
		stStates[s.Status] = true
		if s.Type.NeedsCabinet() && s.Cabinet == nil {
			t.Errorf("%s (%s) has no cabinet", s.Code, s.Type)
		}
		if s.Status == stocktaking.StatusCompleted && (d.variance[s.ID] == nil || s.TotalVarianceValue == nil) {
			t.Errorf("%s completed without variance", s.Code)
		}
	}
	if len(stStates) != 4 {
		t.Errorf("stock-taking statuses = %v", stStates)
	}

	txTypes := map[transaction.Type]bool{}
	for _, tx := range d.transactions {
		txTypes[tx.Type] = true
	}
	if len(txTypes) != 4 {
		t.Errorf("transaction types = %v", txTypes)
	}
}

func TestSeeder_InvoiceAmountsAddUp(t *testing.T) {
	d, _ := buildDataset(t, SeedConfig{})
	for _, inv := range d.invoices {
		if inv.Status == invoice.StatusCancelled {
			continue
		}
		due := inv.TotalAmount.Sub(inv.InsuranceCoveredAmount)
		if !inv.PaidAmount.Add(inv.UnpaidAmount).Equal(due) {
			t.Errorf("%s: paid %s + unpaid %s != due %s", inv.Code, inv.PaidAmount, inv.UnpaidAmount, due)
		}
		switch inv.Status {
		case invoice.StatusPaid:
			if !inv.UnpaidAmount.IsZero() {
				t.Errorf("%s paid with %s outstanding", inv.Code, inv.UnpaidAmount)
			}
		case invoice.StatusIssued:
			if !inv.PaidAmount.IsZero() {
				t.Errorf("%s issued with %s paid", inv.Code, inv.PaidAmount)
			}
		}
	}
}

func TestSeedConfig_WithDefaults(t *testing.T) {
	cfg := SeedConfig{Invoices: -1, Cabinets: 3}.withDefaults()
	if cfg.Invoices != 0 || cfg.Cabinets != 3 || cfg.Patients != 30 || cfg.Seed != DefaultSeed {
		t.Errorf("cfg = %+v", cfg)
	}
}
