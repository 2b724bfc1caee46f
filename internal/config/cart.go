package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nazeru/shopctl-go/internal/shop/domain"
)

type CartLine struct {
	ProductID string `yaml:"product_id"`
	Quantity  int    `yaml:"quantity"`
}

// DefaultCart is one unit each of prod1 and prod2.
func DefaultCart() []domain.CartProduct {
	return []domain.CartProduct{
		domain.NewCartProduct("prod1", 1),
		domain.NewCartProduct("prod2", 1),
	}
}

func LoadCart(path string) ([]domain.CartProduct, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	return ParseCart(data)
}

// ParseCart decodes a YAML list of cart lines.
func ParseCart(data []byte) ([]domain.CartProduct, error) {
	var lines []CartLine
	if err := yaml.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("cart is empty")
	}
	out := make([]domain.CartProduct, 0, len(lines))
	for i, l := range lines {
		id := strings.TrimSpace(l.ProductID)
		if id == "" || l.Quantity <= 0 {
			return nil, fmt.Errorf("cart line %d: product_id and quantity > 0 are required", i+1)
		}
		out = append(out, domain.NewCartProduct(domain.ProductID(id), l.Quantity))
	}
	return out, nil
}
