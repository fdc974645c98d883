package main

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/hospital/staffportal/internal/platform/auth"
	"github.com/hospital/staffportal/internal/platform/sandbox"
)

// cli runs commands against one sandbox with a shared in-memory session
// store, the way consecutive invocations share the session file.
type cli struct {
	t     *testing.T
	url   string
	store auth.Store
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv("PORTAL_BASE_URL", "")
	t.Setenv("REACT_APP_BASE_URL", "")
	t.Setenv("PORTAL_ENV", "test")
	t.Setenv("PORTAL_LOG_LEVEL", "error")
	cfg := sandbox.DefaultConfig()
	cfg.SigningKey = "cli-test-signing-key"
	s, err := sandbox.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &cli{t: t, url: srv.URL, store: auth.NewMemoryStore()}
}

func (c *cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	a := newApp(strings.NewReader(stdin), &out, &errOut)
	a.store = c.store
	cmd := newRootCmd(a)
	cmd.SetArgs(append([]string{"--base-url", c.url}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run("", args...)
	if err != nil {
		c.t.Fatalf("%s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func (c *cli) login(realm, username, password string) {
	c.t.Helper()
	out := c.mustRun("login", "--realm", realm, "-u", username, "-p", password)
	if !strings.Contains(out, "Đăng nhập thành công: "+username) {
		c.t.Fatalf("login output = %q", out)
	}
}

func TestLogin_PromptsForCredentials(t *testing.T) {
	c := newCLI(t)
	out, err := c.run("ketoan01\nketoan@123\n", "login", "--realm", "finance")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "Tên đăng nhập") || !strings.Contains(out, "Mật khẩu") {
		t.Errorf("expected prompts, got %q", out)
	}
	if s, err := c.store.Load(auth.RealmFinance); err != nil || s.Username != "ketoan01" {
		t.Errorf("stored session = %+v, %v", s, err)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	c := newCLI(t)
	if _, err := c.run("", "login", "--realm", "finance", "-u", "ketoan01", "-p", "sai"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := c.store.Load(auth.RealmFinance); !errors.Is(err, auth.ErrNotLoggedIn) {
		t.Errorf("session kept after failed login: %v", err)
	}
}

func TestLogin_UnknownRealm(t *testing.T) {
	c := newCLI(t)
	if _, err := c.run("", "login", "--realm", "doctor", "-u", "x", "-p", "y"); err == nil {
		t.Fatal("expected error for unknown realm")
	}
}

func TestList_RequiresLogin(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("", "cabinets", "list")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "staff-portal login --realm pharmacist") {
		t.Errorf("error = %q", err)
	}
}

func TestInvoices_ListAndPages(t *testing.T) {
	c := newCLI(t)
	c.login("finance", "ketoan01", "ketoan@123")

	out := c.mustRun("invoices", "list")
	if !strings.Contains(out, "Trang 1 / 3 (57 bản ghi)") {
		t.Errorf("page label missing: %q", out)
	}
	if !strings.Contains(out, "HD000057") {
		t.Errorf("newest invoice missing: %q", out)
	}

	out = c.mustRun("invoices", "list", "--page", "3")
	if !strings.Contains(out, "Trang 3 / 3") {
		t.Errorf("page 3 label missing: %q", out)
	}

	for _, page := range []string{"4", "99", "0"} {
		if out, err := c.run("", "invoices", "list", "--page", page); err == nil {
			t.Errorf("--page %s: expected error, got %q", page, out)
		}
	}

	out = c.mustRun("invoices", "list", "--keyword", "no-such-invoice")
	if !strings.Contains(out, "Không có dữ liệu") {
		t.Errorf("empty result = %q", out)
	}
}

func TestInvoices_Export(t *testing.T) {
	c := newCLI(t)
	c.login("finance", "ketoan01", "ketoan@123")

	path := filepath.Join(t.TempDir(), "invoices.xlsx")
	out := c.mustRun("invoices", "list", "--size", "5", "--export", path)
	if !strings.Contains(out, "Đã xuất 5 dòng") {
		t.Errorf("output = %q", out)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Hóa đơn")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 6 {
		t.Fatalf("rows = %d, want header + 5", len(rows))
	}
	if rows[0][0] != "Mã hóa đơn" || rows[1][0] != "HD000057" {
		t.Errorf("first rows = %v / %v", rows[0], rows[1])
	}
}

func TestCabinets_LockWithYes(t *testing.T) {
	c := newCLI(t)
	c.login("pharmacist", "duocsi01", "duocsi@123")

	out := c.mustRun("cabinets", "lock", "1", "--yes")
	if !strings.Contains(out, "Đã khóa tủ TT-01") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "Thao tác:") {
		t.Errorf("entity not reprinted after action: %q", out)
	}

	// A locked cabinet no longer offers lock; the dialog already showed why.
	_, err := c.run("", "cabinets", "lock", "1", "--yes")
	var reported *reportedError
	if !errors.As(err, &reported) {
		t.Errorf("second lock error = %v", err)
	}
}

func TestCabinets_DeclinedConfirmation(t *testing.T) {
	c := newCLI(t)
	c.login("pharmacist", "duocsi01", "duocsi@123")

	out, err := c.run("n\n", "cabinets", "lock", "1")
	if err != nil {
		t.Fatalf("declined action returned %v", err)
	}
	if !strings.Contains(out, "Đã hủy thao tác") {
		t.Errorf("output = %q", out)
	}
	out = c.mustRun("cabinets", "lock", "1", "--yes")
	if !strings.Contains(out, "Đã khóa tủ TT-01") {
		t.Errorf("cabinet changed by declined action: %q", out)
	}
}

func TestTransactions_AdvanceValidation(t *testing.T) {
	c := newCLI(t)
	c.login("finance", "ketoan02", "ketoan@123")

	if _, err := c.run("", "transactions", "advance", "--patient", "1", "--amount", "abc"); err == nil {
		t.Error("expected error for bad amount")
	}
	out := c.mustRun("transactions", "advance", "--patient", "1", "--amount", "500000", "--method", "cash")
	if !strings.Contains(out, "Đã tạm ứng 500000 ₫") {
		t.Errorf("output = %q", out)
	}
}

func TestWhoamiAndLogout(t *testing.T) {
	c := newCLI(t)
	c.login("finance", "ketoan01", "ketoan@123")

	out := c.mustRun("whoami")
	if !strings.Contains(out, "ketoan01") || !strings.Contains(out, "chưa đăng nhập") {
		t.Errorf("whoami = %q", out)
	}

	out = c.mustRun("logout")
	if !strings.Contains(out, "Đã đăng xuất finance") {
		t.Errorf("logout = %q", out)
	}
	if _, err := c.run("", "invoices", "list"); err == nil || !strings.Contains(err.Error(), "login --realm finance") {
		t.Errorf("list after logout = %v", err)
	}
}

func TestSandbox_AccountsAndReset(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("sandbox", "accounts")
	for _, acc := range sandbox.DefaultAccounts {
		if !strings.Contains(out, acc.Username) {
			t.Errorf("account %s missing", acc.Username)
		}
	}

	out = c.mustRun("sandbox", "reset")
	if !strings.Contains(out, "Hóa đơn:") {
		t.Errorf("reset output = %q", out)
	}
}
