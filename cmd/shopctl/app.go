package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nazeru/shopctl-go/internal/config"
	"github.com/nazeru/shopctl-go/internal/journal"
	"github.com/nazeru/shopctl-go/internal/routine"
	"github.com/nazeru/shopctl-go/internal/shop/client"
	"github.com/nazeru/shopctl-go/pkg/logging"
	"github.com/nazeru/shopctl-go/pkg/metrics"
)

// app holds what every subcommand shares once flags and env are resolved.
type app struct {
	cfg     config.Config
	client  *client.Client
	metrics *metrics.ClientMetrics
	sink    journal.Sink
	out     io.Writer
}

type globalFlags struct {
	catalogURL string
	walletURL  string
	username   string
	password   string
	timeout    time.Duration
	logLevel   string
}

func (g *globalFlags) register(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&g.catalogURL, "catalog-url", "", "catalog service base URL (env SHOP_CATALOG_URL)")
	f.StringVar(&g.walletURL, "wallet-url", "", "wallet service base URL (env SHOP_WALLET_URL)")
	f.StringVarP(&g.username, "user", "u", "", "basic auth username (env SHOP_USERNAME)")
	f.StringVarP(&g.password, "password", "p", "", "basic auth password (env SHOP_PASSWORD)")
	f.DurationVar(&g.timeout, "timeout", 0, "per-request timeout (env SHOP_REQUEST_TIMEOUT)")
	f.StringVar(&g.logLevel, "log-level", "", "log level: debug|info|warn|error (env SHOP_LOG_LEVEL)")
}

func (g *globalFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("catalog-url") {
		cfg.CatalogURL = g.catalogURL
	}
	if f.Changed("wallet-url") {
		cfg.WalletURL = g.walletURL
	}
	if f.Changed("user") {
		cfg.Username = g.username
	}
	if f.Changed("password") {
		cfg.Password = g.password
	}
	if f.Changed("timeout") {
		cfg.RequestTimeout = g.timeout
	}
	if f.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
}

func (a *app) init(cmd *cobra.Command, flags *globalFlags, withLogs bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags.apply(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if withLogs {
		if err := logging.Init(cfg.LogLevel); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
	}

	a.cfg = cfg
	a.out = cmd.OutOrStdout()
	a.metrics = metrics.NewClientMetrics("client")
	a.client = client.New(client.Config{
		CatalogURL: cfg.CatalogURL,
		WalletURL:  cfg.WalletURL,
		Username:   cfg.Username,
		Password:   cfg.Password,
		Timeout:    cfg.RequestTimeout,
		Metrics:    a.metrics,
	})
	if a.sink != nil {
		return nil
	}
	a.sink, err = journal.Open(cmd.Context(), journal.Options{
		DatabaseURL:  cfg.DatabaseURL,
		KafkaBrokers: cfg.KafkaBrokers,
		KafkaTopic:   cfg.KafkaTopic,
	})
	return err
}

func (a *app) close() {
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			logging.Error(logging.Fields{Service: "shopctl", Message: "journal close failed"}, err)
		}
	}
	logging.Sync()
}

func (a *app) runner(delay time.Duration, out io.Writer) *routine.Runner {
	return &routine.Runner{API: a.client, Sink: a.sink, Out: out, Delay: delay}
}
