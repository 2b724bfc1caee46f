package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/shopctl-go/internal/shop/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8181", cfg.CatalogURL)
	assert.Equal(t, "http://localhost:8183", cfg.WalletURL)
	assert.Equal(t, "m.rossini@yopmail.com", cfg.Username)
	assert.Equal(t, 10*time.Second, cfg.StepDelay)
	assert.Equal(t, "shopctl.runs", cfg.KafkaTopic)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SHOP_CATALOG_URL", "http://shop:9000")
	t.Setenv("SHOP_STEP_DELAY", "250ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://shop:9000", cfg.CatalogURL)
	assert.Equal(t, 250*time.Millisecond, cfg.StepDelay)
	assert.Len(t, cfg.KafkaBrokers, 2)
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	t.Setenv("SHOP_REQUEST_TIMEOUT", "0s")
	_, err := Load()
	require.Error(t, err)
}

func TestParseCart(t *testing.T) {
	cart, err := ParseCart([]byte("- product_id: prod1\n  quantity: 2\n- product_id: prod3\n  quantity: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, []domain.CartProduct{
		domain.NewCartProduct("prod1", 2),
		domain.NewCartProduct("prod3", 1),
	}, cart)
}

func TestParseCartRejectsInvalidLines(t *testing.T) {
	_, err := ParseCart([]byte("[]"))
	require.Error(t, err)

	_, err = ParseCart([]byte("- product_id: prod1\n  quantity: 0\n"))
	require.Error(t, err)

	_, err = ParseCart([]byte("- quantity: 1\n"))
	require.Error(t, err)
}

func TestLoadCartFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- product_id: prod2\n  quantity: 4\n"), 0o644))

	cart, err := LoadCart(path)
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, 4, cart[0].Quantity)
}
