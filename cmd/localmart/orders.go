// AngelaMos | 2026
// orders.go

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/localmart/localmart/internal/order"
	"github.com/localmart/localmart/internal/store"
)

func ordersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Your orders",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List your orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			orders, err := a.api.UserOrders(cmd.Context(), token)
			if err != nil {
				return err
			}
			return a.printOrders(orders)
		},
	}

	show := &cobra.Command{
		Use:   "show ORDER_ID",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			o, err := a.api.Order(cmd.Context(), token, args[0])
			if err != nil {
				return err
			}
			a.printOrder(o)
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status ORDER_ID STATUS",
		Short: "Move an order to " + strings.Join(order.Statuses, ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			return a.setStatus(cmd.Context(), token, args[0], args[1])
		},
	}

	dispatch := &cobra.Command{
		Use:   "dispatch ORDER_ID",
		Short: "Book a courier for an order (store admins)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			resp, err := a.api.DispatchOrder(cmd.Context(), token, args[0])
			if err != nil {
				return err
			}
			a.printf("Order %s is %s\nDelivery: %s\nTracking: %s\n",
				resp.OrderID, resp.Status, resp.DeliveryID, resp.TrackingURL)
			return nil
		},
	}

	cmd.AddCommand(list, show, status, dispatch)
	return cmd
}

// setStatus checks the transition locally before asking the server, which
// checks it again.
func (a *app) setStatus(ctx context.Context, token, id, next string) error {
	if !order.ValidStatus(next) {
		return fmt.Errorf("invalid status %q, must be one of: %s", next, strings.Join(order.Statuses, ", "))
	}

	current, err := a.api.Order(ctx, token, id)
	if err != nil {
		return err
	}
	if !order.CanTransition(current.Status, next) {
		return fmt.Errorf("cannot move order from %s to %s", current.Status, next)
	}

	resp, err := a.api.UpdateOrderStatus(ctx, token, id, next)
	if err != nil {
		return err
	}
	a.printf("Order %s is now %s\n", resp.OrderID, resp.Status)
	return nil
}

func (a *app) printOrders(orders []order.View) error {
	if len(orders) == 0 {
		a.printf("No orders yet\n")
		return nil
	}
	tw := a.table()
	fmt.Fprintln(tw, "ID\tPLACED\tSTATUS\tPAYMENT\tSTORES\tTOTAL")
	for _, o := range orders {
		names := make([]string, 0, len(o.Stores))
		for _, g := range o.Stores {
			names = append(names, g.Store.Name)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.Created.Local().Format("2006-01-02 15:04"), o.Status, o.PaymentStatus,
			strings.Join(names, ", "), money(o.TotalAmount))
	}
	return tw.Flush()
}

func (a *app) printOrder(o *order.View) {
	a.printf("Order %s\nPlaced: %s\nStatus: %s (payment %s)\n",
		o.ID, o.Created.Local().Format("2006-01-02 15:04"), o.Status, o.PaymentStatus)
	if o.ScheduledDeliveryStart != nil && o.ScheduledDeliveryEnd != nil {
		a.printf("Delivery: %s - %s\n",
			o.ScheduledDeliveryStart.Local().Format("Mon Jan 2 3:04 PM"),
			o.ScheduledDeliveryEnd.Local().Format("3:04 PM"))
	}
	if o.TrackingURL != "" {
		a.printf("Tracking: %s\n", o.TrackingURL)
	}
	for _, g := range o.Stores {
		a.printf("\n%s\n", g.Store.Name)
		for _, it := range g.Items {
			a.printf("  %d x %s  %s\n", it.Quantity, it.Name, money(it.Price*float64(it.Quantity)))
		}
	}
	a.printf("\nSubtotal: %s\nTax: %s\nDelivery: %s\nTotal: %s\n",
		money(o.Subtotal), money(o.TaxAmount), money(o.DeliveryFee), money(o.TotalAmount))
}

func storeAdminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage a store you administer",
	}

	items := &cobra.Command{
		Use:   "items STORE_ID",
		Short: "List inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := a.api.StoreItems(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := a.table()
			fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", it.ID, it.Name, money(it.Price), it.Quantity)
			}
			return tw.Flush()
		},
	}
	items.AddCommand(itemAddCmd(a), itemUpdateCmd(a), itemDeleteCmd(a))

	orders := &cobra.Command{
		Use:   "orders STORE_ID",
		Short: "Orders containing the store's items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			orders, err := a.api.StoreOrders(cmd.Context(), token, args[0])
			if err != nil {
				return err
			}
			return a.printOrders(orders)
		},
	}

	roles := &cobra.Command{
		Use:   "roles STORE_ID",
		Short: "Your roles in the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			roles, err := a.api.StoreRoles(cmd.Context(), token, args[0])
			if err != nil {
				return err
			}
			if len(roles) == 0 {
				a.printf("none\n")
				return nil
			}
			a.printf("%s\n", strings.Join(roles, ", "))
			return nil
		},
	}

	geocode := &cobra.Command{
		Use:   "geocode STORE_ID",
		Short: "Look up the store's coordinates from its address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			resp, err := a.api.GeocodeStore(cmd.Context(), token, args[0])
			if err != nil {
				return err
			}
			if resp.Latitude != nil && resp.Longitude != nil {
				a.printf("%s: %.6f,%.6f\n", resp.Name, *resp.Latitude, *resp.Longitude)
			}
			return nil
		},
	}

	cmd.AddCommand(items, orders, roles, geocode)
	return cmd
}

func itemFlags(cmd *cobra.Command, req *store.ItemRequest, quantity *int) {
	cmd.Flags().StringVar(&req.Name, "name", "", "item name")
	cmd.Flags().Float64Var(&req.Price, "price", 0, "unit price")
	cmd.Flags().StringVar(&req.Description, "description", "", "description")
	cmd.Flags().IntVar(quantity, "quantity", 0, "stock on hand")
}

func itemAddCmd(a *app) *cobra.Command {
	var (
		req      store.ItemRequest
		quantity int
	)
	cmd := &cobra.Command{
		Use:   "add STORE_ID",
		Short: "Add an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("quantity") {
				req.Quantity = &quantity
			}
			it, err := a.api.CreateItem(cmd.Context(), token, args[0], req)
			if err != nil {
				return err
			}
			a.printf("Created %s (%s)\n", it.Name, it.ID)
			return nil
		},
	}
	itemFlags(cmd, &req, &quantity)
	_ = cmd.MarkFlagRequired("name") //nolint:errcheck
	return cmd
}

func itemUpdateCmd(a *app) *cobra.Command {
	var (
		req      store.ItemRequest
		quantity int
	)
	cmd := &cobra.Command{
		Use:   "update STORE_ID ITEM_ID",
		Short: "Replace an item's details",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("quantity") {
				req.Quantity = &quantity
			}
			it, err := a.api.UpdateItem(cmd.Context(), token, args[0], args[1], req)
			if err != nil {
				return err
			}
			a.printf("Updated %s: %s, %d in stock\n", it.Name, money(it.Price), it.Quantity)
			return nil
		},
	}
	itemFlags(cmd, &req, &quantity)
	_ = cmd.MarkFlagRequired("name") //nolint:errcheck
	return cmd
}

func itemDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete STORE_ID ITEM_ID",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			if err := a.api.DeleteItem(cmd.Context(), token, args[0], args[1]); err != nil {
				return err
			}
			a.printf("Deleted %s\n", args[1])
			return nil
		},
	}
}

func adminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Platform administration",
	}

	orders := &cobra.Command{
		Use:   "orders",
		Short: "All orders across stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			orders, err := a.api.AdminOrders(cmd.Context(), token)
			if err != nil {
				return err
			}
			return a.printOrders(orders)
		},
	}

	status := &cobra.Command{
		Use:   "status ORDER_ID STATUS",
		Short: "Change any order's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			return a.setStatus(cmd.Context(), token, args[0], args[1])
		},
	}

	cmd.AddCommand(orders, status)
	return cmd
}
