package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/nazeru/shopctl-go/internal/shop/domain"
	"github.com/nazeru/shopctl-go/pkg/idempotency"
	"github.com/nazeru/shopctl-go/pkg/metrics"
)

type Config struct {
	CatalogURL string
	WalletURL  string
	Username   string
	Password   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Metrics    *metrics.ClientMetrics
}

// Client talks to the catalog and wallet services using HTTP Basic auth.
type Client struct {
	catalogURL string
	walletURL  string
	username   string
	password   string
	timeout    time.Duration
	http       *http.Client
	metrics    *metrics.ClientMetrics
}

func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		catalogURL: strings.TrimRight(cfg.CatalogURL, "/"),
		walletURL:  strings.TrimRight(cfg.WalletURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		timeout:    timeout,
		http:       hc,
		metrics:    cfg.Metrics,
	}
}

// AddTransaction records a wallet transaction for userID and returns the raw reply.
func (c *Client) AddTransaction(ctx context.Context, userID domain.UserID, tx domain.Transaction) (string, error) {
	u := c.walletURL + "/wallets/" + url.PathEscape(string(userID)) + "/transactions/"
	body, err := c.do(ctx, "add_transaction", http.MethodPut, u, tx, nil)
	return string(body), err
}

// PlaceOrder submits the cart. The decoded order and the raw body are returned.
func (c *Client) PlaceOrder(ctx context.Context, cart []domain.CartProduct, shippingAddress string) (domain.Order, string, error) {
	q := url.Values{"shippingAddress": {shippingAddress}}
	u := c.catalogURL + "/products/placeOrder?" + q.Encode()
	body, err := c.do(ctx, "place_order", http.MethodPost, u, cart, func(r *http.Request) {
		idempotency.Stamp(r)
	})
	if err != nil {
		return domain.Order{}, string(body), err
	}
	var order domain.Order
	if err := json.Unmarshal(body, &order); err != nil {
		return domain.Order{}, string(body), fmt.Errorf("%w: decode order: %w", ErrRequest, err)
	}
	if order.OrderID == "" {
		return order, string(body), fmt.Errorf("%w: response carries no orderId", ErrRequest)
	}
	return order, string(body), nil
}

func (c *Client) ChangeOrderStatus(ctx context.Context, orderID domain.OrderID, status domain.OrderStatus) (string, error) {
	q := url.Values{"newStatus": {string(status)}}
	u := c.catalogURL + "/products/order/" + url.PathEscape(string(orderID)) + "?" + q.Encode()
	body, err := c.do(ctx, "change_status", http.MethodPut, u, nil, nil)
	return string(body), err
}

func (c *Client) OrderStatus(ctx context.Context, orderID domain.OrderID) (string, error) {
	u := c.catalogURL + "/products/orderStatus/" + url.PathEscape(string(orderID))
	body, err := c.do(ctx, "order_status", http.MethodGet, u, nil, nil)
	return string(body), err
}

// WalletFunds returns the balance of userID, or of the caller when userID is empty.
func (c *Client) WalletFunds(ctx context.Context, userID domain.UserID) (domain.Amount, error) {
	body, err := c.do(ctx, "wallet_funds", http.MethodGet, c.userQuery("/products/walletFunds", userID), nil, nil)
	if err != nil {
		return domain.Amount{}, err
	}
	var a domain.Amount
	if err := json.Unmarshal(bytes.TrimSpace(body), &a); err != nil {
		return domain.Amount{}, fmt.Errorf("%w: decode funds: %w", ErrRequest, err)
	}
	return a, nil
}

func (c *Client) WalletTransactions(ctx context.Context, userID domain.UserID) ([]domain.Transaction, error) {
	body, err := c.do(ctx, "wallet_transactions", http.MethodGet, c.userQuery("/products/walletTransactions", userID), nil, nil)
	if err != nil {
		return nil, err
	}
	var out []domain.Transaction
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode transactions: %w", ErrRequest, err)
	}
	return out, nil
}

func (c *Client) Products(ctx context.Context) ([]domain.Product, error) {
	body, err := c.do(ctx, "products", http.MethodGet, c.catalogURL+"/products", nil, nil)
	if err != nil {
		return nil, err
	}
	var out []domain.Product
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode products: %w", ErrRequest, err)
	}
	return out, nil
}

func (c *Client) userQuery(path string, userID domain.UserID) string {
	u := c.catalogURL + path
	if userID != "" {
		u += "?" + url.Values{"userId": {string(userID)}}.Encode()
	}
	return u
}

func (c *Client) do(ctx context.Context, op, method, u string, payload any, decorate func(*http.Request)) ([]byte, error) {
	start := time.Now()
	body, status, err := c.send(ctx, method, u, payload, decorate)
	label := strconv.Itoa(status)
	if status == 0 {
		label = Classify(err)
	}
	c.metrics.Observe(op, label, float64(time.Since(start).Milliseconds()))
	return body, err
}

func (c *Client) send(ctx context.Context, method, u string, payload any, decorate func(*http.Request)) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: encode body: %w", ErrRequest, err)
		}
		reader = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s %s: %w", ErrRequest, method, u, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)
	if decorate != nil {
		decorate(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, wrapTransport(method, u, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, wrapTransport(method, u, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, resp.StatusCode, &HTTPError{
			Method:     method,
			URL:        u,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return body, resp.StatusCode, nil
}
