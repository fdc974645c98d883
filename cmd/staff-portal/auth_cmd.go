package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hospital/staffportal/internal/domain/account"
	"github.com/hospital/staffportal/internal/platform/auth"
)

func realmFlag(cmd *cobra.Command, target *string) {
	names := make([]string, len(auth.Realms))
	for i, r := range auth.Realms {
		names[i] = string(r)
	}
	cmd.Flags().StringVarP(target, "realm", "r", "", "realm: "+strings.Join(names, " | "))
}

func loginCmd(a *app) *cobra.Command {
	var realm, username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to a realm and keep the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := auth.ParseRealm(realm)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if username == "" {
				if username, _, err = a.term.Prompt(ctx, "Tên đăng nhập"); err != nil {
					return err
				}
			}
			if password == "" {
				if password, _, err = a.term.Prompt(ctx, "Mật khẩu"); err != nil {
					return err
				}
			}

			m, accounts, err := a.manager(r)
			if err != nil {
				return err
			}
			s, err := accounts.SignIn(ctx, m, account.Credentials{Username: strings.TrimSpace(username), Password: password})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Đăng nhập thành công: %s (%s)\n", s.Username, s.Realm)
			if !s.ExpiresAt.IsZero() {
				fmt.Fprintf(a.out, "Phiên hết hạn lúc %s\n", s.ExpiresAt.Local().Format(time.DateTime))
			}
			return nil
		},
	}
	realmFlag(cmd, &realm)
	cmd.MarkFlagRequired("realm")
	cmd.Flags().StringVarP(&username, "username", "u", "", "username (asked when empty)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (asked when empty)")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	var realm string
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Revoke and forget the session of one realm, or of all",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			realms := auth.Realms
			if realm != "" {
				r, err := auth.ParseRealm(realm)
				if err != nil {
					return err
				}
				realms = []auth.Realm{r}
			}
			var errs []error
			for _, r := range realms {
				m, accounts, err := a.manager(r)
				if err != nil {
					return err
				}
				err = accounts.SignOut(cmd.Context(), m)
				switch {
				case errors.Is(err, auth.ErrNotLoggedIn):
					if realm != "" {
						fmt.Fprintf(a.out, "Chưa đăng nhập %s\n", r)
					}
				case err != nil:
					errs = append(errs, fmt.Errorf("%s: %w", r, err))
				default:
					fmt.Fprintf(a.out, "Đã đăng xuất %s\n", r)
				}
			}
			return errors.Join(errs...)
		},
	}
	realmFlag(cmd, &realm)
	return cmd
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := newTable(a.out)
			fmt.Fprintln(tw, "REALM\tNGƯỜI DÙNG\tHẾT HẠN\tTRẠNG THÁI")
			for _, r := range auth.Realms {
				s, err := a.store.Load(r)
				if err != nil {
					if errors.Is(err, auth.ErrNotLoggedIn) {
						fmt.Fprintf(tw, "%s\t-\t-\tchưa đăng nhập\n", r)
						continue
					}
					return err
				}
				exp, state := "-", "hoạt động"
				if !s.ExpiresAt.IsZero() {
					exp = s.ExpiresAt.Local().Format(time.DateTime)
				}
				if s.Expired(time.Now(), 0) {
					state = "hết hạn"
					if s.RefreshToken != "" {
						state += " (sẽ làm mới)"
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r, s.Username, exp, state)
			}
			return tw.Flush()
		},
	}
}
