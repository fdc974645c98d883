package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hospital/staffportal/internal/domain/prescription"
	"github.com/hospital/staffportal/internal/platform/apiclient"
	"github.com/hospital/staffportal/internal/platform/auth"
	"github.com/hospital/staffportal/internal/portal/action"
	"github.com/hospital/staffportal/internal/portal/detail"
	"github.com/hospital/staffportal/internal/portal/listing"
)

func orderResource(kind prescription.Kind) resource[prescription.Order, *prescription.Order] {
	return resource[prescription.Order, *prescription.Order]{
		realm: auth.RealmPharmacist,
		sheet: kind.Label(),
		columns: []column[prescription.Order]{
			{"ID", func(o prescription.Order) string { return strconv.FormatInt(o.ID, 10) }},
			{"MÃ", func(o prescription.Order) string { return o.Code }},
			{"BỆNH NHÂN", func(o prescription.Order) string { return o.Patient.Display() }},
			{"THUỐC", func(o prescription.Order) string { return o.Medicine.Display() }},
			{"SỐ LƯỢNG", func(o prescription.Order) string { return strconv.Itoa(o.Quantity) + " " + o.Unit }},
			{"ƯU TIÊN", func(o prescription.Order) string { return o.Priority.Label() }},
			{"TRẠNG THÁI", func(o prescription.Order) string { return o.Status.Label() }},
		},
		list: func(c *apiclient.Client) listing.Fetcher[prescription.Order] {
			return prescription.NewAPI(c, kind).List
		},
		get: func(c *apiclient.Client) detail.Getter[*prescription.Order] {
			return prescription.NewAPI(c, kind).Get
		},
	}
}

// ordersCmd serves both prescriptions and individual orders; they share a
// lifecycle and differ only in the endpoint.
func ordersCmd(a *app, use string, kind prescription.Kind) *cobra.Command {
	res := orderResource(kind)
	cmd := &cobra.Command{
		Use:   use,
		Short: kind.Label() + " (pharmacist realm)",
	}
	cmd.AddCommand(res.listCmd(a))
	cmd.AddCommand(res.showCmd(a))

	for _, t := range []struct {
		name  action.Name
		short string
	}{
		{action.Verify, "Verify"},
		{action.Reject, "Reject with a reason"},
		{action.Prepare, "Mark as prepared"},
		{action.Administer, "Confirm administration"},
		{action.Cancel, "Cancel with a reason"},
		{action.Discontinue, "Discontinue with a reason"},
	} {
		name := t.name
		cmd.AddCommand(res.actionCmd(a, string(name), t.short, func(ctx context.Context, c *apiclient.Client, o *prescription.Order) (action.Spec, error) {
			return prescription.NewAPI(c, kind).TransitionSpec(o, name)
		}))
	}

	var r prescription.DispenseRequest
	dispense := res.actionCmd(a, "dispense", "Dispense the prepared quantity", func(ctx context.Context, c *apiclient.Client, o *prescription.Order) (action.Spec, error) {
		return prescription.NewAPI(c, kind).DispenseSpec(o, r), nil
	})
	dispense.Flags().IntVar(&r.Quantity, "quantity", 0, "quantity (default: the ordered quantity)")
	dispense.Flags().Int64Var(&r.CabinetID, "cabinet", 0, "cabinet to take stock from")
	cmd.AddCommand(dispense)

	var ret prescription.ReturnRequest
	returnCmd := res.actionCmd(a, "return", "Return unused medication of a dispensed order", func(ctx context.Context, c *apiclient.Client, o *prescription.Order) (action.Spec, error) {
		d, err := prescription.OrderDispensing(o)
		if err != nil {
			return action.Spec{}, err
		}
		returns := prescription.NewReturnsAPI(c)
		if full, err := returns.GetDispensing(ctx, d.ID); err == nil {
			d = full
		}
		return returns.ReturnSpec(d, ret), nil
	})
	returnCmd.Flags().IntVar(&ret.Quantity, "quantity", 0, "quantity to return")
	returnCmd.Flags().StringVar(&ret.Reason, "reason", "", "reason (asked when empty)")
	cmd.AddCommand(returnCmd)
	return cmd
}

var dispensings = resource[prescription.Dispensing, *prescription.Dispensing]{
	realm: auth.RealmPharmacist,
	sheet: "Cấp phát",
	columns: []column[prescription.Dispensing]{
		{"ID", func(d prescription.Dispensing) string { return strconv.FormatInt(d.ID, 10) }},
		{"MÃ", func(d prescription.Dispensing) string { return d.Code }},
		{"BỆNH NHÂN", func(d prescription.Dispensing) string { return d.Patient.Display() }},
		{"THUỐC", func(d prescription.Dispensing) string { return d.Medicine.Display() }},
		{"ĐÃ CẤP", func(d prescription.Dispensing) string { return strconv.Itoa(d.Quantity) }},
		{"ĐÃ TRẢ", func(d prescription.Dispensing) string { return strconv.Itoa(d.ReturnedQuantity) }},
		{"THỜI GIAN", func(d prescription.Dispensing) string { return d.DispensedAt }},
	},
	list: func(c *apiclient.Client) listing.Fetcher[prescription.Dispensing] {
		return prescription.NewReturnsAPI(c).ListDispensings
	},
	get: func(c *apiclient.Client) detail.Getter[*prescription.Dispensing] {
		return prescription.NewReturnsAPI(c).GetDispensing
	},
}

func returnsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "returns",
		Short: "Dispensing records and medication returns (pharmacist realm)",
	}
	cmd.AddCommand(dispensings.listCmd(a))
	cmd.AddCommand(dispensings.showCmd(a))

	var r prescription.ReturnRequest
	create := dispensings.actionCmd(a, "create", "Return medication against a dispensing record", func(ctx context.Context, c *apiclient.Client, d *prescription.Dispensing) (action.Spec, error) {
		if r.Quantity == 0 {
			return action.Spec{}, fmt.Errorf("--quantity is required (returnable: %d)", d.Returnable())
		}
		return prescription.NewReturnsAPI(c).ReturnSpec(d, r), nil
	})
	create.Flags().IntVar(&r.Quantity, "quantity", 0, "quantity to return")
	create.Flags().StringVar(&r.Reason, "reason", "", "reason (asked when empty)")
	cmd.AddCommand(create)
	return cmd
}
