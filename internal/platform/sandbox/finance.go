package sandbox

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/hospital/staffportal/internal/domain/common"
	"github.com/hospital/staffportal/internal/domain/invoice"
	"github.com/hospital/staffportal/internal/domain/transaction"
)

func (s *Server) registerFinance(g *echo.Group) {
	ig := g.Group("/invoices")
	ig.GET("", s.listInvoices)
	ig.GET("/:id", s.getInvoice)
	ig.POST("/:id/payments", s.payInvoice)
	ig.POST("/:id/cancel", s.cancelInvoice)

	tg := g.Group("/transactions")
	tg.GET("", s.listTransactions)
	tg.POST("/advance-payments", s.advancePayment)
	tg.GET("/:id", s.getTransaction)
	tg.POST("/:id/refund", s.refundTransaction)
	tg.POST("/:id/cancel", s.cancelTransaction)
}

// settle derives the outstanding amount and both statuses from the paid
// amount. Cancelled invoices are left alone.
func settle(inv *invoice.Invoice) {
	if inv.Status == invoice.StatusCancelled {
		return
	}
	due := inv.TotalAmount.Sub(inv.InsuranceCoveredAmount)
	inv.UnpaidAmount = due.Sub(inv.PaidAmount)
	switch {
	case !inv.UnpaidAmount.IsPositive():
		inv.UnpaidAmount = decimal.Zero
		inv.Status = invoice.StatusPaid
		inv.PaymentStatus = invoice.PaymentPaid
	case inv.PaidAmount.IsPositive():
		inv.Status = invoice.StatusPartialPaid
		inv.PaymentStatus = invoice.PaymentPartial
	default:
		inv.Status = invoice.StatusIssued
		inv.PaymentStatus = invoice.PaymentUnpaid
	}
}

func invoiceRef(inv *invoice.Invoice) *common.Ref {
	return &common.Ref{ID: inv.ID, Code: inv.Code}
}

func (d *dataset) record(t *transaction.Transaction) *transaction.Transaction {
	t.ID = d.nextID("transaction")
	t.Code = fmt.Sprintf("GD%06d", t.ID)
	d.transactions = append(d.transactions, t)
	return t
}

func (s *Server) listInvoices(c echo.Context) error {
	f := readFilters(c)
	var out any
	s.store.read(func(d *dataset) error {
		out = listPage(c, d.invoices, func(x *invoice.Invoice) bool {
			return f.matchKeyword(x.Code, refName(x.Patient)) &&
				f.matchStatus(string(x.Status)) &&
				f.matchType(string(x.PaymentStatus)) &&
				f.matchDate(x.IssuedAt)
		})
		return nil
	})
	return success(c, out)
}

func (s *Server) getInvoice(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var out invoice.Invoice
	err = s.store.read(func(d *dataset) error {
		x := d.invoice(id)
		if x == nil {
			return notFound("hóa đơn", id)
		}
		out = *x
		return nil
	})
	if err != nil {
		return err
	}
	return success(c, out)
}

func (s *Server) payInvoice(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var r invoice.PaymentRequest
	if err := bindForm(c, &r); err != nil {
		return err
	}
	var out invoice.Invoice
	err = s.store.write(func(d *dataset) error {
		x := d.invoice(id)
		if x == nil {
			return notFound("hóa đơn", id)
		}
		if x.Status != invoice.StatusIssued && x.Status != invoice.StatusPartialPaid {
			return conflict("Hóa đơn %s không thể thanh toán ở trạng thái %s", x.Code, x.Status.Label())
		}
		if err := invoice.CheckPayment(*x, r); err != nil {
			return badRequest("%s", err.Error())
		}
		x.PaidAmount = x.PaidAmount.Add(r.Amount)
		settle(x)
		d.record(&transaction.Transaction{
			Patient:       x.Patient,
			Invoice:       invoiceRef(x),
			Type:          transaction.TypeInvoicePayment,
			Amount:        r.Amount,
			Method:        r.Method,
			Status:        transaction.StatusCompleted,
			Reference:     r.Reference,
			TransactionAt: s.store.timestamp(),
			Cashier:       username(c),
			Note:          r.Note,
		})
		out = *x
		return nil
	})
	if err != nil {
		return err
	}
	return success(c, out)
}

func (s *Server) cancelInvoice(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var r invoice.CancelRequest
	if err := c.Bind(&r); err != nil {
		return badRequest("Dữ liệu gửi lên không hợp lệ")
	}
	if strings.TrimSpace(r.Reason) == "" {
		return badRequest("Vui lòng nhập lý do hủy")
	}
	var out invoice.Invoice
	err = s.store.write(func(d *dataset) error {
		x := d.invoice(id)
		if x == nil {
			return notFound("hóa đơn", id)
		}
		if x.Status != invoice.StatusIssued || x.PaidAmount.IsPositive() {
			return conflict("Hóa đơn %s không thể hủy ở trạng thái %s", x.Code, x.Status.Label())
		}
		x.Status = invoice.StatusCancelled
		x.Note = strings.TrimSpace(x.Note + "\nLý do hủy: " + r.Reason)
		out = *x
		return nil
	})
	if err != nil {
		return err
	}
	return success(c, out)
}

func (s *Server) listTransactions(c echo.Context) error {
	f := readFilters(c)
	var out any
	s.store.read(func(d *dataset) error {
		out = listPage(c, d.transactions, func(x *transaction.Transaction) bool {
			return f.matchKeyword(x.Code, refName(x.Patient), refName(x.Invoice), x.Reference) &&
				f.matchStatus(string(x.Status)) &&
				f.matchType(string(x.Type)) &&
				f.matchDate(x.TransactionAt)
		})
		return nil
	})
	return success(c, out)
}

func (s *Server) getTransaction(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var out transaction.Transaction
	err = s.store.read(func(d *dataset) error {
		x := d.transaction(id)
		if x == nil {
			return notFound("giao dịch", id)
		}
		out = *x
		return nil
	})
	if err != nil {
		return err
	}
	return success(c, out)
}

func (s *Server) advancePayment(c echo.Context) error {
	var r transaction.AdvanceRequest
	if err := bindForm(c, &r); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return badRequest("Số tiền tạm ứng phải lớn hơn 0")
	}
	var out transaction.Transaction
	err := s.store.write(func(d *dataset) error {
		p, found := d.patient(r.PatientID)
		if !found {
			return notFound("bệnh nhân", r.PatientID)
		}
		t := d.record(&transaction.Transaction{
			Patient:       p,
			Type:          transaction.TypeAdvancePayment,
			Amount:        r.Amount,
			Method:        r.Method,
			Status:        transaction.StatusCompleted,
			Reference:     r.Reference,
			TransactionAt: s.store.timestamp(),
			Cashier:       username(c),
			Note:          r.Note,
		})
		out = *t
		return nil
	})
	if err != nil {
		return err
	}
	return created(c, out)
}

// refundTransaction refunds part or all of what is left of a completed
// payment. A zero amount refunds the remainder.
func (s *Server) refundTransaction(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var r transaction.RefundRequest
	if err := c.Bind(&r); err != nil {
		return badRequest("Dữ liệu gửi lên không hợp lệ")
	}
	if strings.TrimSpace(r.Reason) == "" {
		return badRequest("Vui lòng nhập lý do hoàn tiền")
	}
	if r.Amount.IsNegative() {
		return badRequest("Số tiền hoàn phải lớn hơn 0")
	}
	var out transaction.Transaction
	err = s.store.write(func(d *dataset) error {
		x := d.transaction(id)
		if x == nil {
			return notFound("giao dịch", id)
		}
		if x.Status != transaction.StatusCompleted || !x.Type.Refundable() {
			return conflict("Giao dịch %s (%s, %s) không thể hoàn tiền", x.Code, x.Type.Label(), x.Status.Label())
		}
		remaining := x.Amount.Sub(d.refunded[x.ID])
		amount := r.Amount
		if amount.IsZero() {
			amount = remaining
		}
		if !remaining.IsPositive() {
			return conflict("Giao dịch %s đã được hoàn tiền toàn bộ", x.Code)
		}
		if amount.GreaterThan(remaining) {
			return badRequest("Số tiền hoàn (%s) vượt quá số tiền có thể hoàn (%s)", invoice.Money(amount), invoice.Money(remaining))
		}
		d.refunded[x.ID] = d.refunded[x.ID].Add(amount)

		if x.Invoice != nil {
			if inv := d.invoice(x.Invoice.ID); inv != nil {
				inv.PaidAmount = inv.PaidAmount.Sub(amount)
				settle(inv)
			}
		}
		t := d.record(&transaction.Transaction{
			Patient:       x.Patient,
			Invoice:       x.Invoice,
			Type:          transaction.TypeRefund,
			Amount:        amount,
			Method:        x.Method,
			Status:        transaction.StatusCompleted,
			Reference:     x.Code,
			TransactionAt: s.store.timestamp(),
			Cashier:       username(c),
			Note:          r.Reason,
		})
		out = *t
		return nil
	})
	if err != nil {
		return err
	}
	return success(c, out)
}

func (s *Server) cancelTransaction(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var r transaction.CancelRequest
	if err := c.Bind(&r); err != nil {
		return badRequest("Dữ liệu gửi lên không hợp lệ")
	}
	var out transaction.Transaction
	err = s.store.write(func(d *dataset) error {
		x := d.transaction(id)
		if x == nil {
			return notFound("giao dịch", id)
		}
		if x.Status != transaction.StatusPending {
			return conflict("Không thể hủy giao dịch %s ở trạng thái %s", x.Code, x.Status.Label())
		}
		x.Status = transaction.StatusCancelled
		if r.Reason != "" {
			x.Note = strings.TrimSpace(x.Note + "\nLý do hủy: " + r.Reason)
		}
		out = *x
		return nil
	})
	if err != nil {
		return err
	}
	return success(c, out)
}

