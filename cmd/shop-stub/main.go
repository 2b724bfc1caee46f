package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nazeru/shopctl-go/internal/shopstub"
	"github.com/nazeru/shopctl-go/pkg/logging"
)

// shop-stub serves the catalog and wallet endpoints from memory so the
// drills can run without the real services. Both APIs share one listener,
// point SHOP_CATALOG_URL and SHOP_WALLET_URL at it.
func main() {
	addr := ":" + getenv("PORT", "8181")
	if err := logging.Init(getenv("SHOP_LOG_LEVEL", "info")); err != nil {
		panic(err)
	}
	defer logging.Sync()

	stub := shopstub.NewDefault()
	srv := &http.Server{Addr: addr, Handler: stub.Handler(), ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.Log(logging.Fields{Service: "shop-stub", Status: "listening", Message: "shop-stub listening on " + addr})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error(logging.Fields{Service: "shop-stub", Message: "http server error"}, err)
		logging.Sync()
		os.Exit(1)
	}
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
