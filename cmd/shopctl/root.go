package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/nazeru/shopctl-go/internal/bench"
	"github.com/nazeru/shopctl-go/internal/config"
	"github.com/nazeru/shopctl-go/internal/journal"
	"github.com/nazeru/shopctl-go/internal/routine"
	"github.com/nazeru/shopctl-go/internal/shop/domain"
	"github.com/nazeru/shopctl-go/pkg/contracts"
	"github.com/nazeru/shopctl-go/pkg/kafka"
	"github.com/nazeru/shopctl-go/pkg/logging"
	"github.com/nazeru/shopctl-go/pkg/outbox"
)

// newRootCmd wires every subcommand to a. The caller closes a once the
// command returns, whether or not it failed.
func newRootCmd(a *app) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "shopctl",
		Short: "Drive the shop API through wallet and order drills",
		Long: `shopctl issues scripted request sequences against the catalog and wallet
services: funding a wallet, placing an order and walking it through delivery.

Run without arguments to pick a drill interactively.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// the interactive picker owns the terminal, keep logs off it
			return a.init(cmd, flags, cmd.HasParent())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPicker(cmd.Context(), a)
		},
	}
	flags.register(root)

	root.AddCommand(
		newFundCmd(a),
		newOrderRoutineCmd(a),
		newPlaceOrderCmd(a),
		newSetStatusCmd(a),
		newStatusCmd(a),
		newFundsCmd(a),
		newTransactionsCmd(a),
		newProductsCmd(a),
		newBenchCmd(a),
		newJournalCmd(a),
	)
	return root
}

func newFundCmd(a *app) *cobra.Command {
	def := routine.DefaultFundInput()
	var userID, issuerID, amount, motivation string

	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Add a transaction to a user's wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := domain.ParseAmount(amount)
			if err != nil {
				return err
			}
			mot, err := domain.ParseMotivation(motivation)
			if err != nil {
				return err
			}
			return a.runner(0, a.out).Fund(cmd.Context(), routine.FundInput{
				UserID: domain.UserID(userID),
				Transaction: domain.Transaction{
					IssuerID:   domain.UserID(issuerID),
					Amount:     amt,
					Motivation: mot,
				},
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", string(def.UserID), "wallet owner id")
	cmd.Flags().StringVar(&issuerID, "issuer-id", string(def.Transaction.IssuerID), "issuer id recorded on the transaction")
	cmd.Flags().StringVar(&amount, "amount", def.Transaction.Amount.String(), "amount to add (negative to debit)")
	cmd.Flags().StringVar(&motivation, "motivation", string(def.Transaction.Motivation), "ADMIN_RECHARGE|ORDER_PAYMENT|AUTOMATED_REFUND")
	return cmd
}

type cartFlags struct {
	cartFile string
	address  string
}

func (c *cartFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.cartFile, "cart", "", "YAML cart file (default: one prod1 and one prod2)")
	cmd.Flags().StringVar(&c.address, "address", "shippingAddress", "shipping address")
}

func (c *cartFlags) cart() ([]domain.CartProduct, error) {
	if c.cartFile == "" {
		return config.DefaultCart(), nil
	}
	return config.LoadCart(c.cartFile)
}

func parseTransitions(raw []string) ([]domain.OrderStatus, error) {
	out := make([]domain.OrderStatus, 0, len(raw))
	for _, r := range raw {
		st, err := domain.ParseOrderStatus(r)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func newOrderRoutineCmd(a *app) *cobra.Command {
	cf := &cartFlags{}
	var delay time.Duration
	var transitions []string

	cmd := &cobra.Command{
		Use:   "order-routine",
		Short: "Place an order and move it through delivery, reading the status after each change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cart, err := cf.cart()
			if err != nil {
				return err
			}
			sts, err := parseTransitions(transitions)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("delay") {
				delay = a.cfg.StepDelay
			}
			_, err = a.runner(delay, a.out).OrderLifecycle(cmd.Context(), routine.LifecycleInput{
				Cart:            cart,
				ShippingAddress: cf.address,
				Transitions:     sts,
			})
			return err
		},
	}
	cf.register(cmd)
	cmd.Flags().DurationVar(&delay, "delay", 10*time.Second, "pause before each status change (env SHOP_STEP_DELAY)")
	cmd.Flags().StringSliceVar(&transitions, "transition", []string{"DELIVERING", "DELIVERED"}, "statuses to apply in order")
	return cmd
}

func newPlaceOrderCmd(a *app) *cobra.Command {
	cf := &cartFlags{}
	cmd := &cobra.Command{
		Use:   "place-order",
		Short: "Place a single order and print the reply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cart, err := cf.cart()
			if err != nil {
				return err
			}
			_, raw, err := a.client.PlaceOrder(cmd.Context(), cart, cf.address)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, raw)
			return nil
		},
	}
	cf.register(cmd)
	return cmd
}

func newSetStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status ORDER_ID STATUS",
		Short: "Change the status of an order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := domain.ParseOrderStatus(args[1])
			if err != nil {
				return err
			}
			body, err := a.client.ChangeOrderStatus(cmd.Context(), domain.OrderID(args[0]), st)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, body)
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status ORDER_ID",
		Short: "Print the current status of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.client.OrderStatus(cmd.Context(), domain.OrderID(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Status = %s\n", st)
			return nil
		},
	}
}

func newFundsCmd(a *app) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "funds",
		Short: "Print wallet funds (own wallet unless --user-id is given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			funds, err := a.client.WalletFunds(cmd.Context(), domain.UserID(userID))
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, funds.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "wallet owner id (admins only)")
	return cmd
}

func newTransactionsCmd(a *app) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List wallet transactions (own wallet unless --user-id is given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := a.client.WalletTransactions(cmd.Context(), domain.UserID(userID))
			if err != nil {
				return err
			}
			return printJSON(a, txs)
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "wallet owner id (admins only)")
	return cmd
}

func newProductsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List catalog products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			products, err := a.client.Products(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(a, products)
		},
	}
}

func newBenchCmd(a *app) *cobra.Command {
	cf := &cartFlags{}
	var (
		total       int
		concurrency int
		delay       time.Duration
		output      string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Repeat the order routine concurrently and report latency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cart, err := cf.cart()
			if err != nil {
				return err
			}
			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: a.metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logging.Error(logging.Fields{Service: "shopctl", Message: "metrics server"}, err)
					}
				}()
				defer srv.Close()
			}

			res, err := bench.Run(cmd.Context(), a.runner(delay, io.Discard), bench.Options{
				Total:       total,
				Concurrency: concurrency,
				CatalogURL:  a.cfg.CatalogURL,
				Lifecycle:   routine.LifecycleInput{Cart: cart, ShippingAddress: cf.address},
			})
			if err != nil {
				return err
			}
			if err := bench.Encode(a.out, res); err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}
			if output != "" {
				if err := bench.WriteJSON(output, res); err != nil {
					return fmt.Errorf("failed to write output: %w", err)
				}
			}
			return nil
		},
	}
	cf.register(cmd)
	cmd.Flags().IntVar(&total, "total", 100, "number of order routines to run")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "number of concurrent workers")
	cmd.Flags().DurationVar(&delay, "delay", 0, "pause before each status change")
	cmd.Flags().StringVar(&output, "output", "", "optional output path for JSON result")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	return cmd
}

func newJournalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Manage the run journal",
	}
	var batch int
	relay := &cobra.Command{
		Use:   "relay",
		Short: "Publish pending journal events from Postgres to Kafka",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kc := kafka.NewClient(a.cfg.KafkaBrokers...)
			if a.cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			if !kc.Enabled() {
				return kafka.ErrDisabled
			}
			pool, err := outbox.Open(cmd.Context(), a.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			writer := kc.NewWriter(a.cfg.KafkaTopic)
			defer writer.Close()

			n, err := outbox.Relay(cmd.Context(), outbox.NewStore(pool), batch, func(ctx context.Context, rec outbox.Record) error {
				return kafka.PublishRaw(ctx, writer, rec.Key, rec.Payload)
			})
			logging.Log(logging.Fields{Service: "shopctl", Step: "journal_relay", Message: fmt.Sprintf("relayed %d events", n)})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "relayed %d events\n", n)
			return nil
		},
	}
	relay.Flags().IntVar(&batch, "batch", 100, "rows fetched per round")

	var group string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print run events from Kafka as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kc := kafka.NewClient(a.cfg.KafkaBrokers...)
			if !kc.Enabled() {
				return kafka.ErrDisabled
			}
			reader := kc.NewReader(a.cfg.KafkaTopic, group)
			defer reader.Close()
			return journal.Tail(cmd.Context(), reader, 2*time.Second, func(evt contracts.Event) error {
				data, err := json.Marshal(evt)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(a.out, string(data))
				return err
			})
		},
	}
	tail.Flags().StringVar(&group, "group", "shopctl-tail", "Kafka consumer group id")

	cmd.AddCommand(relay, tail)
	return cmd
}

func printJSON(a *app, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, strings.TrimSpace(string(data)))
	return nil
}
