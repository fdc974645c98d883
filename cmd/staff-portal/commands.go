package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hospital/staffportal/internal/platform/apiclient"
	"github.com/hospital/staffportal/internal/platform/auth"
	"github.com/hospital/staffportal/internal/platform/export"
	"github.com/hospital/staffportal/internal/portal/action"
	"github.com/hospital/staffportal/internal/portal/detail"
	"github.com/hospital/staffportal/internal/portal/listing"
)

// resource describes one list/detail screen of a realm.
type resource[T detail.Entity, P detail.Entity] struct {
	realm   auth.Realm
	sheet   string
	columns []column[T]
	list    func(c *apiclient.Client) listing.Fetcher[T]
	get     func(c *apiclient.Client) detail.Getter[P]
}

func (r resource[T, P]) listCmd(a *app) *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List " + r.sheet,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.page < 1 {
				return fmt.Errorf("--page must be at least 1, got %d", f.page)
			}
			c, err := a.client(r.realm)
			if err != nil {
				return err
			}
			view := listing.New[T](r.list(c), f.query(a.cfg.PageSize))
			if err := view.Load(cmd.Context()); err != nil {
				return a.authHint(r.realm, err)
			}
			if f.page > 1 {
				err := view.GoTo(cmd.Context(), f.page-1)
				if errors.Is(err, listing.ErrPageOutOfRange) {
					return fmt.Errorf("--page %d vượt quá số trang hiện có (%d)", f.page, max(view.State().TotalPages, 1))
				}
				if err != nil {
					return a.authHint(r.realm, err)
				}
			}
			st := view.State()
			printList(a.out, r.columns, st)
			if f.export != "" {
				if err := export.Save(f.export, export.Entities(r.sheet, st.Items)); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Đã xuất %d dòng ra %s\n", len(st.Items), f.export)
			}
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func (r resource[T, P]) showCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one record and the actions it allows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := a.client(r.realm)
			if err != nil {
				return err
			}
			e, err := detail.New[P](r.get(c)).Load(cmd.Context(), id)
			if err != nil {
				return a.authHint(r.realm, err)
			}
			printEntity(a.out, e)
			return nil
		},
	}
}

// actionCmd loads the entity named by the first argument, builds the action
// with build and runs it. On success the entity is reloaded and printed.
func (r resource[T, P]) actionCmd(a *app, use, short string, build func(ctx context.Context, c *apiclient.Client, e P) (action.Spec, error)) *cobra.Command {
	var f actionFlags
	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := a.client(r.realm)
			if err != nil {
				return err
			}
			view := detail.New[P](r.get(c))
			e, err := view.Load(cmd.Context(), id)
			if err != nil {
				return a.authHint(r.realm, err)
			}
			spec, err := build(cmd.Context(), c, e)
			if err != nil {
				return err
			}
			return a.runAction(cmd.Context(), r.realm, &f, spec, func(ctx context.Context) error {
				fresh, err := view.Load(ctx, id)
				if err != nil {
					return err
				}
				printEntity(a.out, fresh)
				return nil
			})
		},
	}
	f.bind(cmd)
	return cmd
}
