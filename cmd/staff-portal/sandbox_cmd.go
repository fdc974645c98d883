package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/hospital/staffportal/internal/platform/apiclient"
	"github.com/hospital/staffportal/internal/platform/sandbox"
)

// devSigningKey signs sandbox tokens when SANDBOX_SIGNING_KEY is unset
// outside production.
const devSigningKey = "staff-portal-sandbox-dev-key"

func sandboxCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run and manage the in-memory demo backend",
	}
	cmd.AddCommand(sandboxServeCmd(a))
	cmd.AddCommand(sandboxAccountsCmd(a))
	cmd.AddCommand(sandboxSeedCmd(a, false))
	cmd.AddCommand(sandboxSeedCmd(a, true))
	return cmd
}

func sandboxServeCmd(a *app) *cobra.Command {
	var port string
	var seed int64
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve seeded data until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := sandbox.DefaultConfig()
			cfg.SigningKey = a.cfg.SandboxSigningKey
			if cfg.SigningKey == "" {
				if a.cfg.IsProduction() {
					return errors.New("SANDBOX_SIGNING_KEY is required in production")
				}
				a.logger.Warn().Msg("SANDBOX_SIGNING_KEY not set, using the development key")
				cfg.SigningKey = devSigningKey
			}
			cfg.TokenTTL = a.cfg.SandboxTokenTTL
			cfg.Seed.Seed = seed
			if port == "" {
				port = a.cfg.SandboxPort
			}

			srv, err := sandbox.New(cfg, a.logger)
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(":" + port)
			}()
			fmt.Fprintf(a.out, "Sandbox đang chạy tại http://localhost:%s (Ctrl+C để dừng)\n", port)

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}

			a.logger.Info().Msg("shutting down sandbox")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("sandbox shutdown: %w", err)
			}
			a.logger.Info().Msg("sandbox stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default SANDBOX_PORT)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed of the generated data")
	return cmd
}

func sandboxAccountsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List the seeded logins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printTable(a.out, []column[sandbox.Account]{
				{"REALM", func(acc sandbox.Account) string { return string(acc.Realm) }},
				{"TÊN ĐĂNG NHẬP", func(acc sandbox.Account) string { return acc.Username }},
				{"MẬT KHẨU", func(acc sandbox.Account) string { return acc.Password }},
				{"HỌ TÊN", func(acc sandbox.Account) string { return acc.FullName }},
				{"VAI TRÒ", func(acc sandbox.Account) string { return acc.Role }},
			}, sandbox.DefaultAccounts)
			return nil
		},
	}
}

// sandboxSeedCmd is seed, or reset when reset is set. Both talk to a
// running sandbox at the configured base URL.
func sandboxSeedCmd(a *app, reset bool) *cobra.Command {
	var cfg sandbox.SeedConfig
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the running sandbox's data with a new dataset",
		Args:  cobra.NoArgs,
	}
	path := "/sandbox/seed"
	if reset {
		cmd.Use, cmd.Short = "reset", "Regenerate the last dataset, discarding changes"
		path = "/sandbox/reset"
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		c, err := a.public()
		if err != nil {
			return err
		}
		var body any
		if !reset {
			body = cfg
		}
		res, err := apiclient.Post[*sandbox.SeedResult](cmd.Context(), c, path, body)
		if err != nil {
			return err
		}
		printSeedResult(a, res)
		return nil
	}
	if !reset {
		fs := cmd.Flags()
		fs.Int64Var(&cfg.Seed, "seed", 0, "random seed")
		fs.IntVar(&cfg.Patients, "patients", 0, "patients")
		fs.IntVar(&cfg.Cabinets, "cabinets", 0, "cabinets")
		fs.IntVar(&cfg.StockTakings, "stocktakings", 0, "stock-taking sessions")
		fs.IntVar(&cfg.OrdersPerKind, "orders", 0, "orders of each kind")
		fs.IntVar(&cfg.Invoices, "invoices", 0, "invoices")
		fs.IntVar(&cfg.AdvancePayments, "advances", 0, "advance payments")
	}
	return cmd
}

func printSeedResult(a *app, res *sandbox.SeedResult) {
	tw := newTable(a.out)
	for _, row := range [][2]string{
		{"Seed", strconv.FormatInt(res.Seed, 10)},
		{"Tài khoản", strconv.Itoa(res.Accounts)},
		{"Bệnh nhân", strconv.Itoa(res.Patients)},
		{"Thuốc", strconv.Itoa(res.Medicines)},
		{"Tủ thuốc", strconv.Itoa(res.Cabinets)},
		{"Phiên kiểm kê", strconv.Itoa(res.StockTakings)},
		{"Y lệnh / đơn thuốc", strconv.Itoa(res.Orders)},
		{"Phiếu cấp phát", strconv.Itoa(res.Dispensings)},
		{"Hóa đơn", strconv.Itoa(res.Invoices)},
		{"Giao dịch", strconv.Itoa(res.Transactions)},
	} {
		fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1])
	}
	tw.Flush()
}
