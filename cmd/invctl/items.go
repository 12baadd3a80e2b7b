package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tphummel/lab_inventory/internal/listctl"
	"github.com/tphummel/lab_inventory/internal/models"
)

func newKindsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the resource kinds and their fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printKinds(cmd.OutOrStdout(), a.jsonOut)
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List items of a kind",
		Example: `  invctl list brands
  invctl list processors --search amd`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.controller(cmd, args[0])
			if err != nil {
				return err
			}
			c.Search(search)
			return printItems(cmd.OutOrStdout(), c.Kind(), c.Filtered(), a.jsonOut)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Case-insensitive substring filter over the kind's searchable fields")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <kind> <id>",
		Short: "Show one item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := a.resourceClient(args[0])
			if err != nil {
				return err
			}
			it, err := rc.Get(cmd.Context(), args[1])
			if err != nil {
				return fmt.Errorf("show %s %s: %s", rc.Kind().Slug, args[1], listctl.Message(err))
			}
			return printItem(cmd.OutOrStdout(), rc.Kind(), it, a.jsonOut)
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:     "add <kind>",
		Short:   "Create an item",
		Example: `  invctl add processors --set name="Ryzen 7 5800X" --set brand=AMD --set cores=8`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.controller(cmd, args[0])
			if err != nil {
				return err
			}
			fields, err := parseSets(c.Kind(), sets)
			if err != nil {
				return err
			}
			if err := c.BeginAdd(); err != nil {
				return err
			}
			return submit(cmd, a, c, fields, "")
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Field value as name=value (repeatable)")
	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:     "edit <kind> <id>",
		Short:   "Change fields of an item",
		Example: `  invctl edit brands 3f2c... --set description="Laptops and servers"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.controller(cmd, args[0])
			if err != nil {
				return err
			}
			fields, err := parseSets(c.Kind(), sets)
			if err != nil {
				return err
			}
			if len(fields) == 0 {
				return fmt.Errorf("nothing to change: pass at least one --set")
			}
			id := resolveID(c.Items(), args[1])
			if err := c.BeginEdit(id); err != nil {
				return err
			}
			return submit(cmd, a, c, fields, id)
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Field value as name=value (repeatable)")
	return cmd
}

// submit fills the open form and sends it, printing the stored item.
func submit(cmd *cobra.Command, a *app, c *listctl.Controller, fields map[string]string, id string) error {
	for name, value := range fields {
		if err := c.SetField(name, value); err != nil {
			return err
		}
	}
	before := make(map[string]struct{})
	for _, it := range c.Items() {
		before[it.ID] = struct{}{}
	}
	if err := c.Submit(cmd.Context()); err != nil {
		return fmt.Errorf("save %s: %s", c.Kind().Slug, listctl.Message(err))
	}

	items := c.Items()
	for _, it := range items {
		_, existed := before[it.ID]
		if (id == "" && !existed) || (id != "" && it.ID == id) {
			return printItem(cmd.OutOrStdout(), c.Kind(), it, a.jsonOut)
		}
	}
	return nil
}

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <kind> <id>",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.controller(cmd, args[0])
			if err != nil {
				return err
			}
			id := resolveID(c.Items(), args[1])
			if err := c.RequestDelete(id); err != nil {
				return err
			}
			pending := c.Snapshot().PendingDelete
			if !yes && !confirm(cmd, fmt.Sprintf("Delete %s %q?", c.Kind().Label, pending.Get(c.Kind().NameField))) {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
				return c.CancelDelete()
			}
			if err := c.ConfirmDelete(cmd.Context()); err != nil {
				if c.Snapshot().DeleteUnconfirmed {
					return fmt.Errorf("delete not confirmed, %s is still listed: %s", id, listctl.Message(err))
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", c.Kind().Label, id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N] ", question)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// resolveID accepts either an item id or its reference id.
func resolveID(items []models.Item, arg string) string {
	for _, it := range items {
		if it.ID == arg {
			return arg
		}
	}
	for _, it := range items {
		if it.ReferenceID != "" && strings.EqualFold(it.ReferenceID, arg) {
			return it.ID
		}
	}
	return arg
}
