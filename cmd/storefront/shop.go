package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joss/storefront/internal/audit"
	"github.com/joss/storefront/internal/domain"
	"github.com/joss/storefront/internal/lifecycle"
	"github.com/joss/storefront/internal/render"
)

func (c *cli) productsCmd() *cobra.Command {
	var match string

	cmd := &cobra.Command{
		Use:     "products",
		Aliases: []string{"ls"},
		Short:   "List the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := c.app.Catalog()
			err := c.track(audit.CategoryCatalog, "refresh", catalog.Refresh)
			if err != nil {
				return err
			}
			products, err := catalog.Filter(match)
			if err != nil {
				return err
			}
			return c.emit(products, c.renderer().Products(products))
		},
	}

	cmd.Flags().StringVarP(&match, "match", "m", "", "Filter by name (glob, case-insensitive)")
	return cmd
}

func (c *cli) cartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show your cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.showCart("fetch", c.app.Cart().Fetch)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <product-id>...",
		Short: "Add one unit of each product",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.showCart("add", func(ctx context.Context) error {
				for _, id := range args {
					if err := c.app.AddToCart(ctx, id); err != nil {
						return err
					}
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "remove <product-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a product from the cart",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireLogin("Please log in to manage your cart"); err != nil {
				return err
			}
			return c.showCart("remove", func(ctx context.Context) error {
				return c.app.Cart().Remove(ctx, args[0])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every product from the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireLogin("Please log in to manage your cart"); err != nil {
				return err
			}
			return c.showCart("clear", func(ctx context.Context) error {
				store := c.app.Cart()
				if err := store.Fetch(ctx); err != nil {
					return err
				}
				seen := make(map[string]bool)
				var errs []error
				for _, item := range store.Items() {
					if seen[item.Product.ID] {
						continue
					}
					seen[item.Product.ID] = true
					if err := store.Remove(ctx, item.Product.ID); err != nil {
						errs = append(errs, err)
					}
				}
				return errors.Join(errs...)
			})
		},
	})

	return cmd
}

// showCart runs op against the cart and prints the resulting snapshot.
func (c *cli) showCart(op string, fn func(ctx context.Context) error) error {
	if err := c.track(audit.CategoryCart, op, fn); err != nil {
		return err
	}
	snap := c.app.Cart().Snapshot()
	return c.emit(snap, c.renderer().Cart(snap))
}

func (c *cli) checkoutCmd() *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for everything in the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			var order domain.Order
			err := c.track(audit.CategoryOrders, "checkout", func(ctx context.Context) error {
				var err error
				order, err = c.app.Checkout(ctx, address)
				return err
			})
			if err != nil {
				return err
			}
			return c.emit(order, fmt.Sprintf("Order %s placed: %d item(s), %s\n",
				order.ID, order.ItemCount(), render.Price(order.TotalPrice)))
		},
	}

	cmd.Flags().StringVarP(&address, "address", "a", "", "Shipping address")
	return cmd
}

func (c *cli) ordersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List your orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			var orders []domain.Order
			err := c.track(audit.CategoryOrders, "list", func(ctx context.Context) error {
				var err error
				orders, err = c.app.Orders(ctx)
				return err
			})
			if err != nil {
				return err
			}
			return c.emit(orders, c.renderer().Orders(orders))
		},
	}
}

// requireLogin refuses cart mutations that would hit the API without a token.
func (c *cli) requireLogin(message string) error {
	if c.app.IsAuthenticated() {
		return nil
	}
	return lifecycle.Validation("cart", message)
}
