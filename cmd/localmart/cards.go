// AngelaMos | 2026
// cards.go

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/localmart/localmart/internal/checkout"
)

func cardsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Manage saved payment cards",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			cards, err := a.api.Cards(cmd.Context(), token)
			if err != nil {
				return err
			}
			if len(cards) == 0 {
				a.printf("No saved cards\n")
				return nil
			}
			tw := a.table()
			fmt.Fprintln(tw, "ID\tBRAND\tNUMBER\tEXPIRES\tDEFAULT")
			for _, c := range cards {
				def := ""
				if c.IsDefault {
					def = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t**** %s\t%02d/%d\t%s\n", c.ID, c.Brand, c.Last4, c.ExpMonth, c.ExpYear, def)
			}
			return tw.Flush()
		},
	}

	setup := &cobra.Command{
		Use:   "setup",
		Short: "Start adding a card; prints the setup intent secret for the payment form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			secret, err := a.api.SetupIntent(cmd.Context(), token)
			if err != nil {
				return err
			}
			a.printf("%s\n", secret)
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add PAYMENT_METHOD_ID",
		Short: "Save a confirmed payment method as the default card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			if err := a.api.SaveCard(cmd.Context(), token, args[0]); err != nil {
				return err
			}
			a.printf("Card saved\n")
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete CARD_ID",
		Short: "Remove a saved card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			if err := a.api.DeleteCard(cmd.Context(), token, args[0]); err != nil {
				return err
			}
			a.printf("Card deleted\n")
			return nil
		},
	}

	cmd.AddCommand(list, setup, add, del)
	return cmd
}

func checkoutCmd(a *app) *cobra.Command {
	var (
		cardID string
		slotID string
		notes  string
	)
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart",
		Long: `Checkout pays with a saved card (the default one unless --card is set)
and books one of the delivery windows for the next delivery date. Orders
placed from 3 PM on are delivered the next day. On failure the cart is
kept so checkout can be retried.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			c, err := a.cart()
			if err != nil {
				return err
			}

			flow := checkout.New(a.api, token, c, a.store)
			flow.Notes = notes

			if c.MixedStores() {
				a.printf("Warning: your cart has items from more than one store\n")
			}
			if _, err := flow.Start(cmd.Context()); err != nil {
				return err
			}
			card, err := flow.ChooseCard(cardID)
			if err != nil {
				return err
			}
			slot, err := flow.ChooseSlot(slotID)
			if err != nil {
				return fmt.Errorf("%w (choose one of: %s)", err, slotIDs(flow))
			}

			sum := c.Summary(a.calc)
			a.printf("Paying %s with %s **** %s\nDelivery %s, %s\n",
				money(sum.Total), card.Brand, card.Last4, slot.Start.Format("Mon Jan 2"), slot.Label)

			resp, err := flow.Submit(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to place order: %w", err)
			}
			a.printf("Order placed: %s\n", resp.OrderID)
			return nil
		},
	}
	cmd.Flags().StringVar(&cardID, "card", "", "saved card id (default card when empty)")
	cmd.Flags().StringVar(&slotID, "slot", "", "delivery window, e.g. 1600-1700 (first window when empty)")
	cmd.Flags().StringVar(&notes, "notes", "", "notes for the store")
	return cmd
}

func slotIDs(f *checkout.Flow) string {
	out := ""
	for i, s := range f.Slots() {
		if i > 0 {
			out += ", "
		}
		out += s.ID
	}
	return out
}
