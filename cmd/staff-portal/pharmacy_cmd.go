package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/hospital/staffportal/internal/domain/cabinet"
	"github.com/hospital/staffportal/internal/domain/invoice"
	"github.com/hospital/staffportal/internal/domain/stocktaking"
	"github.com/hospital/staffportal/internal/platform/apiclient"
	"github.com/hospital/staffportal/internal/platform/auth"
	"github.com/hospital/staffportal/internal/platform/export"
	"github.com/hospital/staffportal/internal/portal/action"
	"github.com/hospital/staffportal/internal/portal/detail"
	"github.com/hospital/staffportal/internal/portal/listing"
)

var cabinets = resource[cabinet.Cabinet, *cabinet.Cabinet]{
	realm: auth.RealmPharmacist,
	sheet: "Tủ thuốc",
	columns: []column[cabinet.Cabinet]{
		{"ID", func(c cabinet.Cabinet) string { return strconv.FormatInt(c.ID, 10) }},
		{"MÃ", func(c cabinet.Cabinet) string { return c.Code }},
		{"VỊ TRÍ", func(c cabinet.Cabinet) string { return c.Location }},
		{"LOẠI", func(c cabinet.Cabinet) string { return c.Type.Label() }},
		{"KHOA", func(c cabinet.Cabinet) string { return c.Department.Display() }},
		{"LẤP ĐẦY", func(c cabinet.Cabinet) string { return fmt.Sprintf("%.1f%%", c.OccupancyRate) }},
		{"TRẠNG THÁI", func(c cabinet.Cabinet) string { return c.State().String() }},
	},
	list: func(c *apiclient.Client) listing.Fetcher[cabinet.Cabinet] { return cabinet.NewAPI(c).List },
	get:  func(c *apiclient.Client) detail.Getter[*cabinet.Cabinet] { return cabinet.NewAPI(c).Get },
}

func cabinetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cabinets",
		Aliases: []string{"cabinet"},
		Short:   "Medicine cabinets (pharmacist realm)",
	}
	cmd.AddCommand(cabinets.listCmd(a))
	cmd.AddCommand(cabinets.showCmd(a))
	cmd.AddCommand(cabinetInventoryCmd(a))
	cmd.AddCommand(cabinetFormCmd(a, false))
	cmd.AddCommand(cabinetFormCmd(a, true))

	for _, t := range []struct {
		name  action.Name
		short string
	}{
		{action.Lock, "Lock a cabinet"},
		{action.Unlock, "Unlock a cabinet"},
		{action.Activate, "Activate a cabinet"},
		{action.Deactivate, "Deactivate a cabinet"},
	} {
		name := t.name
		cmd.AddCommand(cabinets.actionCmd(a, string(name), t.short, func(ctx context.Context, c *apiclient.Client, cab *cabinet.Cabinet) (action.Spec, error) {
			return cabinet.NewAPI(c).ToggleSpec(cab, name)
		}))
	}

	var r cabinet.RestockRequest
	restock := cabinets.actionCmd(a, "restock", "Add stock of one medicine", func(ctx context.Context, c *apiclient.Client, cab *cabinet.Cabinet) (action.Spec, error) {
		return cabinet.NewAPI(c).RestockSpec(cab, r), nil
	})
	restock.Flags().Int64Var(&r.MedicineID, "medicine", 0, "medicine id")
	restock.Flags().IntVar(&r.Quantity, "quantity", 0, "quantity to add")
	restock.Flags().StringVar(&r.BatchNumber, "batch", "", "batch number")
	restock.Flags().StringVar(&r.ExpiryDate, "expiry", "", "expiry date (YYYY-MM-DD)")
	cmd.AddCommand(restock)
	return cmd
}

func cabinetInventoryCmd(a *app) *cobra.Command {
	var exportPath string
	cmd := &cobra.Command{
		Use:   "inventory <id>",
		Short: "Show the stock held in a cabinet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := a.client(auth.RealmPharmacist)
			if err != nil {
				return err
			}
			items, err := cabinet.NewAPI(c).Inventory(cmd.Context(), id)
			if err != nil {
				return a.authHint(auth.RealmPharmacist, err)
			}
			printTable(a.out, []column[cabinet.InventoryItem]{
				{"ID", func(i cabinet.InventoryItem) string { return strconv.FormatInt(i.MedicineID, 10) }},
				{"MÃ", func(i cabinet.InventoryItem) string { return i.MedicineCode }},
				{"THUỐC", func(i cabinet.InventoryItem) string { return i.MedicineName }},
				{"SỐ LƯỢNG", func(i cabinet.InventoryItem) string { return strconv.Itoa(i.Quantity) + " " + i.Unit }},
				{"LÔ", func(i cabinet.InventoryItem) string { return i.BatchNumber }},
				{"HẠN DÙNG", func(i cabinet.InventoryItem) string { return i.ExpiryDate }},
				{"", func(i cabinet.InventoryItem) string {
					if i.LowStock() {
						return "SẮP HẾT"
					}
					return ""
				}},
			}, items)

			if exportPath == "" {
				return nil
			}
			sheet := export.Sheet{Name: "Tồn kho", Header: []string{"Mã thuốc", "Tên thuốc", "Đơn vị", "Số lượng", "Tối thiểu", "Số lô", "Hạn dùng"}}
			for _, i := range items {
				sheet.Rows = append(sheet.Rows, []any{i.MedicineCode, i.MedicineName, i.Unit, i.Quantity, i.MinQuantity, i.BatchNumber, i.ExpiryDate})
			}
			return export.Save(exportPath, sheet)
		},
	}
	cmd.Flags().StringVar(&exportPath, "export", "", "also write the inventory to this .xlsx file")
	return cmd
}

// cabinetFormCmd is create, or update <id> when update is set. Update
// starts from the stored cabinet and only overrides the flags given.
func cabinetFormCmd(a *app, update bool) *cobra.Command {
	var f cabinet.Form
	var typ string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a cabinet",
		Args:  cobra.NoArgs,
	}
	if update {
		cmd.Use, cmd.Short, cmd.Args = "update <id>", "Update a cabinet", cobra.ExactArgs(1)
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		c, err := a.client(auth.RealmPharmacist)
		if err != nil {
			return err
		}
		api := cabinet.NewAPI(c)
		ctx := cmd.Context()

		if !update {
			f.Type = cabinet.Type(typ)
			created, err := api.Create(ctx, f)
			if err != nil {
				return a.authHint(auth.RealmPharmacist, err)
			}
			fmt.Fprintf(a.out, "Đã tạo tủ %s\n", created.Code)
			printEntity(a.out, created)
			return nil
		}

		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		cur, err := api.Get(ctx, id)
		if err != nil {
			return a.authHint(auth.RealmPharmacist, err)
		}
		if err := detail.Allowed(cur, action.Edit); err != nil {
			return err
		}
		form := formFromCabinet(cur)
		flags := cmd.Flags()
		if flags.Changed("code") {
			form.Code = f.Code
		}
		if flags.Changed("location") {
			form.Location = f.Location
		}
		if flags.Changed("type") {
			form.Type = cabinet.Type(typ)
		}
		if flags.Changed("department") {
			form.DepartmentID = f.DepartmentID
		}
		if flags.Changed("employee") {
			form.ResponsibleEmployeeID = f.ResponsibleEmployeeID
		}
		if flags.Changed("capacity") {
			form.Capacity = f.Capacity
		}
		if flags.Changed("description") {
			form.Description = f.Description
		}
		updated, err := api.Update(ctx, id, form)
		if err != nil {
			return a.authHint(auth.RealmPharmacist, err)
		}
		fmt.Fprintf(a.out, "Đã cập nhật tủ %s\n", updated.Code)
		printEntity(a.out, updated)
		return nil
	}

	fs := cmd.Flags()
	fs.StringVar(&f.Code, "code", "", "cabinet code")
	fs.StringVar(&f.Location, "location", "", "location")
	fs.StringVar(&typ, "type", string(cabinet.TypeMedication), "MEDICATION | MATERIAL | EQUIPMENT")
	fs.Int64Var(&f.DepartmentID, "department", 0, "department id")
	fs.Int64Var(&f.ResponsibleEmployeeID, "employee", 0, "responsible employee id")
	fs.IntVar(&f.Capacity, "capacity", 0, "capacity")
	fs.StringVar(&f.Description, "description", "", "description")
	return cmd
}

func formFromCabinet(c *cabinet.Cabinet) cabinet.Form {
	f := cabinet.Form{
		Code:        c.Code,
		Location:    c.Location,
		Type:        c.Type,
		Capacity:    c.Capacity,
		Description: c.Description,
	}
	if c.Department != nil {
		f.DepartmentID = c.Department.ID
	}
	if c.ResponsibleEmployee != nil {
		f.ResponsibleEmployeeID = c.ResponsibleEmployee.ID
	}
	return f
}

var stockTakings = resource[stocktaking.StockTaking, *stocktaking.StockTaking]{
	realm: auth.RealmPharmacist,
	sheet: "Kiểm kê",
	columns: []column[stocktaking.StockTaking]{
		{"ID", func(s stocktaking.StockTaking) string { return strconv.FormatInt(s.ID, 10) }},
		{"MÃ", func(s stocktaking.StockTaking) string { return s.Code }},
		{"LOẠI", func(s stocktaking.StockTaking) string { return s.Type.Label() }},
		{"TỦ", func(s stocktaking.StockTaking) string { return s.Cabinet.Display() }},
		{"NGÀY", func(s stocktaking.StockTaking) string { return s.ScheduledDate }},
		{"TRẠNG THÁI", func(s stocktaking.StockTaking) string { return s.Status.Label() }},
	},
	list: func(c *apiclient.Client) listing.Fetcher[stocktaking.StockTaking] { return stocktaking.NewAPI(c).List },
	get:  func(c *apiclient.Client) detail.Getter[*stocktaking.StockTaking] { return stocktaking.NewAPI(c).Get },
}

func stocktakingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "stocktakings",
		Aliases: []string{"stocktaking", "kiemke"},
		Short:   "Inventory counts (pharmacist realm)",
	}
	cmd.AddCommand(stockTakings.listCmd(a))
	cmd.AddCommand(stockTakings.showCmd(a))
	cmd.AddCommand(stockTakingFormCmd(a, false))
	cmd.AddCommand(stockTakingFormCmd(a, true))
	cmd.AddCommand(stockTakings.actionCmd(a, "delete", "Delete a draft count", func(ctx context.Context, c *apiclient.Client, s *stocktaking.StockTaking) (action.Spec, error) {
		return stocktaking.NewAPI(c).DeleteSpec(s), nil
	}))
	cmd.AddCommand(stockTakings.actionCmd(a, "start", "Start counting", func(ctx context.Context, c *apiclient.Client, s *stocktaking.StockTaking) (action.Spec, error) {
		return stocktaking.NewAPI(c).StartSpec(s), nil
	}))
	cmd.AddCommand(stockTakings.actionCmd(a, "cancel", "Cancel a count", func(ctx context.Context, c *apiclient.Client, s *stocktaking.StockTaking) (action.Spec, error) {
		return stocktaking.NewAPI(c).CancelSpec(s), nil
	}))
	cmd.AddCommand(stockTakings.actionCmd(a, "adjust", "Apply the counted quantities to stock", func(ctx context.Context, c *apiclient.Client, s *stocktaking.StockTaking) (action.Spec, error) {
		return stocktaking.NewAPI(c).AdjustSpec(s), nil
	}))

	var counts []string
	var note string
	complete := stockTakings.actionCmd(a, "complete", "Complete a count with the quantities found", func(ctx context.Context, c *apiclient.Client, s *stocktaking.StockTaking) (action.Spec, error) {
		items, err := parseCounts(counts)
		if err != nil {
			return action.Spec{}, err
		}
		return stocktaking.NewAPI(c).CompleteSpec(s, stocktaking.CompleteRequest{Items: items, Note: note}), nil
	})
	complete.Flags().StringArrayVar(&counts, "count", nil, "MEDICINE_ID=QUANTITY, repeatable")
	complete.Flags().StringVar(&note, "remark", "", "remark stored with the count")
	cmd.AddCommand(complete)

	cmd.AddCommand(varianceCmd(a))
	return cmd
}

func stockTakingFormCmd(a *app, update bool) *cobra.Command {
	var in stocktaking.FormInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Schedule a count",
		Args:  cobra.NoArgs,
	}
	if update {
		cmd.Use, cmd.Short, cmd.Args = "update <id>", "Edit a draft count", cobra.ExactArgs(1)
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		c, err := a.client(auth.RealmPharmacist)
		if err != nil {
			return err
		}
		api := stocktaking.NewAPI(c)
		var st *stocktaking.StockTaking
		if update {
			id, perr := parseID(args[0])
			if perr != nil {
				return perr
			}
			st, err = api.Update(cmd.Context(), id, in)
		} else {
			st, err = api.Create(cmd.Context(), in)
		}
		if err != nil {
			return a.authHint(auth.RealmPharmacist, err)
		}
		fmt.Fprintf(a.out, "Đã lưu phiếu kiểm kê %s\n", st.Code)
		printEntity(a.out, st)
		return nil
	}
	fs := cmd.Flags()
	fs.StringVar(&in.Type, "type", string(stocktaking.TypeFullCount), "FULL_COUNT | CYCLE_COUNT | SPOT_CHECK")
	fs.StringVar(&in.CabinetID, "cabinet", "", "cabinet id (required except for FULL_COUNT)")
	fs.StringVar(&in.ScheduledDate, "date", time.Now().Format(stocktaking.DateLayout), "scheduled date (YYYY-MM-DD)")
	fs.StringVar(&in.Note, "note", "", "note")
	return cmd
}

func varianceCmd(a *app) *cobra.Command {
	var exportPath string
	cmd := &cobra.Command{
		Use:   "variance <id>",
		Short: "Show the variance analysis of a completed count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := a.client(auth.RealmPharmacist)
			if err != nil {
				return err
			}
			api := stocktaking.NewAPI(c)
			st, err := api.Get(cmd.Context(), id)
			if err != nil {
				return a.authHint(auth.RealmPharmacist, err)
			}
			v, err := api.VarianceFor(cmd.Context(), st)
			if err != nil {
				return a.authHint(auth.RealmPharmacist, err)
			}

			fmt.Fprintf(a.out, "Phiếu %s: %d mặt hàng, %d chênh lệch, giá trị %s\n",
				st.Code, v.TotalItems, v.ItemsWithVariance, invoice.Money(v.TotalVarianceValue))
			printTable(a.out, []column[stocktaking.VarianceLine]{
				{"THUỐC", func(l stocktaking.VarianceLine) string { return l.MedicineName }},
				{"HỆ THỐNG", func(l stocktaking.VarianceLine) string { return strconv.Itoa(l.SystemQuantity) }},
				{"THỰC TẾ", func(l stocktaking.VarianceLine) string { return strconv.Itoa(l.CountedQuantity) }},
				{"CHÊNH LỆCH", func(l stocktaking.VarianceLine) string { return fmt.Sprintf("%+d", l.Variance) }},
				{"GIÁ TRỊ", func(l stocktaking.VarianceLine) string { return invoice.Money(l.VarianceValue) }},
			}, v.Items)

			if exportPath == "" {
				return nil
			}
			summary := export.Sheet{
				Name:   "Tổng hợp",
				Header: []string{"Mã phiếu", "Số mặt hàng", "Mặt hàng chênh lệch", "Giá trị chênh lệch"},
				Rows:   [][]any{{st.Code, v.TotalItems, v.ItemsWithVariance, v.TotalVarianceValue.InexactFloat64()}},
			}
			lines := export.Sheet{
				Name:   "Chi tiết",
				Header: []string{"Mã thuốc", "Tên thuốc", "Hệ thống", "Thực tế", "Chênh lệch", "Đơn giá", "Giá trị"},
			}
			for _, l := range v.Items {
				lines.Rows = append(lines.Rows, []any{l.MedicineCode, l.MedicineName, l.SystemQuantity, l.CountedQuantity,
					l.Variance, l.UnitPrice.InexactFloat64(), l.VarianceValue.InexactFloat64()})
			}
			return export.Save(exportPath, summary, lines)
		},
	}
	cmd.Flags().StringVar(&exportPath, "export", "", "also write the analysis to this .xlsx file")
	return cmd
}
