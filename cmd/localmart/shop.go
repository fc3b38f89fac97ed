// AngelaMos | 2026
// shop.go

package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/localmart/localmart/internal/cart"
	"github.com/localmart/localmart/internal/checkout"
	"github.com/localmart/localmart/internal/delivery"
	"github.com/localmart/localmart/internal/featureflag"
)

func storesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stores",
		Short: "Browse stores",
	}

	var near string
	list := &cobra.Command{
		Use:   "list",
		Short: "List stores, nearest first when --near is given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				lat, lng float64
				err      error
			)
			if near != "" {
				lat, lng, err = parseLatLng(near)
				if err != nil {
					return err
				}
			}

			tw := a.table()
			fmt.Fprintln(tw, "ID\tNAME\tCITY\tDISTANCE")
			if near == "" {
				stores, err := a.api.Stores(cmd.Context())
				if err != nil {
					return err
				}
				for _, s := range stores {
					fmt.Fprintf(tw, "%s\t%s\t%s\t-\n", s.ID, s.Name, s.City)
				}
				return tw.Flush()
			}

			stores, err := a.api.StoresNear(cmd.Context(), lat, lng)
			if err != nil {
				return err
			}
			for _, s := range stores {
				dist := "-"
				if s.DistanceKM != nil {
					dist = fmt.Sprintf("%.1f km", *s.DistanceKM)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.City, dist)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&near, "near", "", "latitude,longitude")

	show := &cobra.Command{
		Use:   "show STORE_ID",
		Short: "Show a store and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.api.StoreWithItems(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.printf("%s\n%s, %s, %s %s\n\n", s.Name, s.Street1, s.City, s.State, s.Zip)

			tw := a.table()
			fmt.Fprintln(tw, "ITEM\tNAME\tPRICE\tSTOCK")
			for _, it := range s.Items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", it.ID, it.Name, money(it.Price), it.Quantity)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func parseLatLng(s string) (float64, float64, error) {
	latS, lngS, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("expected latitude,longitude, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latS), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngS), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("longitude: %w", err)
	}
	return lat, lng, nil
}

func (a *app) flags(cmd *cobra.Command) map[string]bool {
	rows, err := a.api.FeatureFlags(cmd.Context())
	return featureflag.Resolve(rows, err, a.logger)
}

func flagsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "flags",
		Short: "Show feature flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := a.flags(cmd)
			names := make([]string, 0, len(flags))
			for name := range flags {
				names = append(names, name)
			}
			sort.Strings(names)

			tw := a.table()
			for _, name := range names {
				fmt.Fprintf(tw, "%s\t%t\n", name, flags[name])
			}
			return tw.Flush()
		},
	}
}

func searchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search QUERY",
		Short: "Search products across stores",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.flags(cmd)[featureflag.ProductSearch] {
				return fmt.Errorf("product search is not enabled")
			}
			hits, err := a.api.SearchProducts(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				a.printf("No products found\n")
				return nil
			}
			tw := a.table()
			fmt.Fprintln(tw, "ID\tNAME\tPRICE")
			for _, h := range hits {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", h.ID, h.Name, money(h.Price))
			}
			return tw.Flush()
		},
	}
}

func cartCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage the shopping cart",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.showCart()
		},
	}

	var (
		storeID  string
		quantity int
	)
	add := &cobra.Command{
		Use:   "add ITEM_ID",
		Short: "Add an item from a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.api.StoreWithItems(cmd.Context(), storeID)
			if err != nil {
				return err
			}
			c, err := a.cart()
			if err != nil {
				return err
			}
			for _, it := range s.Items {
				if it.ID != args[0] {
					continue
				}
				c.Add(cart.Item{
					ID:        it.ID,
					StoreID:   s.ID,
					StoreName: s.Name,
					Name:      it.Name,
					Price:     it.Price,
					Quantity:  quantity,
					ImageURL:  it.ImageURL,
				})
				if err := c.Save(a.store); err != nil {
					return err
				}
				a.printf("Added %s (%d in cart)\n", it.Name, c.ItemCount())
				if c.MixedStores() {
					a.printf("Warning: your cart has items from more than one store\n")
				}
				return nil
			}
			return fmt.Errorf("item %s not found in store %s", args[0], storeID)
		},
	}
	add.Flags().StringVar(&storeID, "store", "", "store the item belongs to")
	add.Flags().IntVarP(&quantity, "quantity", "q", 1, "how many")
	_ = add.MarkFlagRequired("store") //nolint:errcheck

	update := &cobra.Command{
		Use:   "update ITEM_ID QUANTITY",
		Short: "Set a line's quantity; 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity: %w", err)
			}
			return a.editCart(func(c *cart.Cart) bool { return c.Update(args[0], n) }, args[0])
		},
	}

	remove := &cobra.Command{
		Use:   "remove ITEM_ID",
		Short: "Remove a line",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.editCart(func(c *cart.Cart) bool { return c.Remove(args[0]) }, args[0])
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the cart with totals",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.showCart()
		},
	}

	clearCart := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			c, err := a.cart()
			if err != nil {
				return err
			}
			c.Clear()
			if err := c.Save(a.store); err != nil {
				return err
			}
			a.printf("Cart cleared\n")
			return nil
		},
	}

	cmd.AddCommand(add, update, remove, show, clearCart)
	return cmd
}

func (a *app) editCart(edit func(*cart.Cart) bool, id string) error {
	c, err := a.cart()
	if err != nil {
		return err
	}
	if !edit(c) {
		return fmt.Errorf("item %s is not in the cart", id)
	}
	if err := c.Save(a.store); err != nil {
		return err
	}
	return a.showCart()
}

func (a *app) showCart() error {
	c, err := a.cart()
	if err != nil {
		return err
	}
	if c.IsEmpty() {
		a.printf("Your cart is empty\n")
		return nil
	}

	tw := a.table()
	fmt.Fprintln(tw, "ITEM\tNAME\tSTORE\tQTY\tPRICE")
	for _, it := range c.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			it.ID, it.Name, it.StoreName, it.Quantity, money(it.Price*float64(it.Quantity)))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	sum := c.Summary(a.calc)
	a.printf("\nItems: %d\nSubtotal: %s\nTax: %s\nDelivery: %s\nTotal: %s\n",
		c.ItemCount(), money(sum.Subtotal), money(sum.Tax), money(sum.DeliveryFee), money(sum.Total))
	if c.MixedStores() {
		a.printf("Warning: your cart has items from more than one store\n")
	}
	return nil
}

func quoteCmd(a *app) *cobra.Command {
	var storeID, itemID string
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Estimate courier delivery to your profile address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			profile, err := a.api.Profile(cmd.Context(), token)
			if err != nil {
				return err
			}
			address, err := checkout.DeliveryAddress(profile)
			if err != nil {
				return err
			}
			q, err := a.api.DeliveryQuote(cmd.Context(), delivery.QuoteInput{
				StoreID:         storeID,
				ItemID:          itemID,
				DeliveryAddress: address,
			})
			if err != nil {
				return err
			}
			a.printf("Fee: %s %s\nEstimated delivery: %s\n",
				money(float64(q.Fee)/100), strings.ToUpper(q.Currency), q.DropoffETA)
			return nil
		},
	}
	cmd.Flags().StringVar(&storeID, "store", "", "store id")
	cmd.Flags().StringVar(&itemID, "item", "", "item id")
	_ = cmd.MarkFlagRequired("store") //nolint:errcheck
	_ = cmd.MarkFlagRequired("item")  //nolint:errcheck
	return cmd
}
