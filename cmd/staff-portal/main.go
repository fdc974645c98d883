package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hospital/staffportal/internal/domain/prescription"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		var reported *reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, "Lỗi:", err)
		}
		stop()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "staff-portal",
		Short:         "Hospital staff portal for pharmacists and finance staff",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	rootCmd.SetIn(a.in)
	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.errOut)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.envFile, "env-file", "", "extra .env file to load before the environment")
	pf.StringVar(&a.baseURL, "base-url", "", "backend base URL (overrides PORTAL_BASE_URL)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log every API call")

	rootCmd.AddCommand(loginCmd(a))
	rootCmd.AddCommand(logoutCmd(a))
	rootCmd.AddCommand(whoamiCmd(a))
	rootCmd.AddCommand(cabinetsCmd(a))
	rootCmd.AddCommand(stocktakingsCmd(a))
	rootCmd.AddCommand(ordersCmd(a, "prescriptions", prescription.KindPrescription))
	rootCmd.AddCommand(ordersCmd(a, "orders", prescription.KindIndividualOrder))
	rootCmd.AddCommand(returnsCmd(a))
	rootCmd.AddCommand(invoicesCmd(a))
	rootCmd.AddCommand(transactionsCmd(a))
	rootCmd.AddCommand(sandboxCmd(a))

	return rootCmd
}
