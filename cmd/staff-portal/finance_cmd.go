package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/hospital/staffportal/internal/domain/invoice"
	"github.com/hospital/staffportal/internal/domain/transaction"
	"github.com/hospital/staffportal/internal/platform/apiclient"
	"github.com/hospital/staffportal/internal/platform/auth"
	"github.com/hospital/staffportal/internal/portal/action"
	"github.com/hospital/staffportal/internal/portal/detail"
	"github.com/hospital/staffportal/internal/portal/listing"
)

var invoices = resource[invoice.Invoice, *invoice.Invoice]{
	realm: auth.RealmFinance,
	sheet: "Hóa đơn",
	columns: []column[invoice.Invoice]{
		{"ID", func(i invoice.Invoice) string { return strconv.FormatInt(i.ID, 10) }},
		{"MÃ", func(i invoice.Invoice) string { return i.Code }},
		{"BỆNH NHÂN", func(i invoice.Invoice) string { return i.Patient.Display() }},
		{"TỔNG", func(i invoice.Invoice) string { return invoice.Money(i.TotalAmount) }},
		{"CÒN NỢ", func(i invoice.Invoice) string { return invoice.Money(i.UnpaidAmount) }},
		{"THANH TOÁN", func(i invoice.Invoice) string { return i.PaymentStatus.Label() }},
		{"TRẠNG THÁI", func(i invoice.Invoice) string { return i.Status.Label() }},
	},
	list: func(c *apiclient.Client) listing.Fetcher[invoice.Invoice] { return invoice.NewAPI(c).List },
	get:  func(c *apiclient.Client) detail.Getter[*invoice.Invoice] { return invoice.NewAPI(c).Get },
}

// moneyFlag parses an amount given on the command line. Empty means zero.
func moneyFlag(name, v string) (decimal.Decimal, error) {
	if strings.TrimSpace(v) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(v, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s %q", name, v)
	}
	return d, nil
}

func invoicesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "invoices",
		Aliases: []string{"invoice"},
		Short:   "Patient invoices (finance realm)",
	}
	cmd.AddCommand(invoices.listCmd(a))
	cmd.AddCommand(invoices.showCmd(a))

	var amount, method string
	var r invoice.PaymentRequest
	pay := invoices.actionCmd(a, "pay", "Record a payment; the amount defaults to the unpaid balance", func(ctx context.Context, c *apiclient.Client, inv *invoice.Invoice) (action.Spec, error) {
		req := r
		amt, err := moneyFlag("amount", amount)
		if err != nil {
			return action.Spec{}, err
		}
		if amt.IsZero() {
			amt = inv.UnpaidAmount
		}
		req.Amount = amt
		req.Method = invoice.Method(strings.ToUpper(method))
		return invoice.NewAPI(c).PaySpec(inv, req), nil
	})
	pay.Flags().StringVar(&amount, "amount", "", "amount to pay")
	pay.Flags().StringVar(&method, "method", string(invoice.MethodCash), "CASH | CARD | BANK_TRANSFER | E_WALLET")
	pay.Flags().StringVar(&r.Reference, "reference", "", "reference number")
	cmd.AddCommand(pay)

	cmd.AddCommand(invoices.actionCmd(a, "cancel", "Cancel an invoice with a reason", func(ctx context.Context, c *apiclient.Client, inv *invoice.Invoice) (action.Spec, error) {
		return invoice.NewAPI(c).CancelSpec(inv), nil
	}))
	return cmd
}

var transactions = resource[transaction.Transaction, *transaction.Transaction]{
	realm: auth.RealmFinance,
	sheet: "Giao dịch",
	columns: []column[transaction.Transaction]{
		{"ID", func(t transaction.Transaction) string { return strconv.FormatInt(t.ID, 10) }},
		{"MÃ", func(t transaction.Transaction) string { return t.Code }},
		{"LOẠI", func(t transaction.Transaction) string { return t.Type.Label() }},
		{"BỆNH NHÂN", func(t transaction.Transaction) string { return t.Patient.Display() }},
		{"SỐ TIỀN", func(t transaction.Transaction) string { return invoice.Money(t.Amount) }},
		{"HÌNH THỨC", func(t transaction.Transaction) string { return t.Method.Label() }},
		{"TRẠNG THÁI", func(t transaction.Transaction) string { return t.Status.Label() }},
	},
	list: func(c *apiclient.Client) listing.Fetcher[transaction.Transaction] { return transaction.NewAPI(c).List },
	get:  func(c *apiclient.Client) detail.Getter[*transaction.Transaction] { return transaction.NewAPI(c).Get },
}

func transactionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"transaction"},
		Short:   "Payments, advances and refunds (finance realm)",
	}
	cmd.AddCommand(transactions.listCmd(a))
	cmd.AddCommand(transactions.showCmd(a))
	cmd.AddCommand(advanceCmd(a))

	var amount string
	refund := transactions.actionCmd(a, "refund", "Refund a transaction; the amount defaults to all of it", func(ctx context.Context, c *apiclient.Client, t *transaction.Transaction) (action.Spec, error) {
		amt, err := moneyFlag("amount", amount)
		if err != nil {
			return action.Spec{}, err
		}
		return transaction.NewAPI(c).RefundSpec(t, transaction.RefundRequest{Amount: amt}), nil
	})
	refund.Flags().StringVar(&amount, "amount", "", "amount to refund")
	cmd.AddCommand(refund)

	cmd.AddCommand(transactions.actionCmd(a, "cancel", "Cancel a pending transaction", func(ctx context.Context, c *apiclient.Client, t *transaction.Transaction) (action.Spec, error) {
		return transaction.NewAPI(c).CancelSpec(t), nil
	}))
	return cmd
}

func advanceCmd(a *app) *cobra.Command {
	var amount, method string
	var r transaction.AdvanceRequest
	cmd := &cobra.Command{
		Use:   "advance",
		Short: "Record an advance payment for a patient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := moneyFlag("amount", amount)
			if err != nil {
				return err
			}
			r.Amount = amt
			r.Method = invoice.Method(strings.ToUpper(method))

			c, err := a.client(auth.RealmFinance)
			if err != nil {
				return err
			}
			t, err := transaction.NewAPI(c).Advance(cmd.Context(), r)
			if err != nil {
				return a.authHint(auth.RealmFinance, err)
			}
			fmt.Fprintf(a.out, "Đã tạm ứng %s\n", invoice.Money(t.Amount))
			printEntity(a.out, t)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.Int64Var(&r.PatientID, "patient", 0, "patient id")
	fs.StringVar(&amount, "amount", "", "amount")
	fs.StringVar(&method, "method", string(invoice.MethodCash), "CASH | CARD | BANK_TRANSFER | E_WALLET")
	fs.StringVar(&r.Reference, "reference", "", "reference number")
	fs.StringVar(&r.Note, "note", "", "note")
	cmd.MarkFlagRequired("patient")
	cmd.MarkFlagRequired("amount")
	return cmd
}
