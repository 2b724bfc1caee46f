// Package shopstub is an in-memory stand-in for the catalog and wallet
// services. It implements only the endpoints shopctl consumes.
package shopstub

import (
	"net/http"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nazeru/shopctl-go/internal/shop/domain"
	"github.com/nazeru/shopctl-go/pkg/idempotency"
)

type User struct {
	ID       domain.UserID
	Email    string
	Password string
	Admin    bool
}

type order struct {
	id      domain.OrderID
	buyer   domain.UserID
	status  domain.OrderStatus
	address string
	total   decimal.Decimal
}

type wallet struct {
	funds        decimal.Decimal
	transactions []domain.Transaction
}

type Server struct {
	mu       sync.Mutex
	users    map[string]User
	wallets  map[domain.UserID]*wallet
	products map[domain.ProductID]*domain.Product
	orders   map[domain.OrderID]*order
	replays  map[string]domain.Order
}

// New returns a stub seeded with the given users and products. Every user
// gets an empty wallet.
func New(users []User, products []domain.Product) *Server {
	s := &Server{
		users:    map[string]User{},
		wallets:  map[domain.UserID]*wallet{},
		products: map[domain.ProductID]*domain.Product{},
		orders:   map[domain.OrderID]*order{},
		replays:  map[string]domain.Order{},
	}
	for _, u := range users {
		s.users[u.Email] = u
		s.wallets[u.ID] = &wallet{}
	}
	for i := range products {
		p := products[i]
		s.products[domain.ProductID(p.Name)] = &p
	}
	return s
}

// NewDefault mirrors the fixture data the drill routines expect.
func NewDefault() *Server {
	s := New(
		[]User{
			{ID: "433333333333333333333334", Email: "m.rossini@yopmail.com", Password: "password", Admin: true},
			{ID: "444444444444444444444444", Email: "g.verdi@yopmail.com", Password: "password"},
		},
		[]domain.Product{
			{Name: "prod1", Description: "first product", Category: "TECH", Price: 10, Quantity: 1000},
			{Name: "prod2", Description: "second product", Category: "BOOK", Price: 25.5, Quantity: 1000},
		},
	)
	s.Credit("433333333333333333333334", decimal.NewFromInt(100000))
	return s
}

func (s *Server) Credit(userID domain.UserID, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.wallets[userID]; ok {
		w.funds = w.funds.Add(amount)
	}
}

func (s *Server) Funds(userID domain.UserID) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.wallets[userID]; ok {
		return w.funds
	}
	return decimal.Zero
}

func (s *Server) Status(id domain.OrderID) (domain.OrderStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return "", false
	}
	return o.status, true
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.HandleFunc("PUT /wallets/{userID}/transactions/{$}", s.auth(s.addTransaction))
	mux.HandleFunc("PUT /wallets/{userID}/transactions", s.auth(s.addTransaction))
	mux.HandleFunc("GET /products", s.auth(s.listProducts))
	mux.HandleFunc("POST /products/placeOrder", s.auth(s.placeOrder))
	mux.HandleFunc("PUT /products/order/{orderID}", s.auth(s.changeStatus))
	mux.HandleFunc("GET /products/orderStatus/{orderID}", s.auth(s.orderStatus))
	mux.HandleFunc("GET /products/walletFunds", s.auth(s.walletFunds))
	mux.HandleFunc("GET /products/walletTransactions", s.auth(s.walletTransactions))
	return mux
}

type authedHandler func(w http.ResponseWriter, r *http.Request, caller User)

func (s *Server) auth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, password, ok := r.BasicAuth()
		s.mu.Lock()
		u, found := s.users[email]
		s.mu.Unlock()
		if !ok || !found || u.Password != password {
			w.Header().Set("WWW-Authenticate", `Basic realm="shop"`)
			writeText(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r, u)
	}
}

func (s *Server) addTransaction(w http.ResponseWriter, r *http.Request, _ User) {
	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeText(w, http.StatusBadRequest, "invalid json")
		return
	}
	userID := domain.UserID(r.PathValue("userID"))

	s.mu.Lock()
	defer s.mu.Unlock()
	wl, ok := s.wallets[userID]
	if !ok || wl.funds.Add(tx.Amount.Decimal).IsNegative() {
		writeText(w, http.StatusBadRequest, "Transaction failed - Nonexistent user or insufficient funds")
		return
	}
	wl.funds = wl.funds.Add(tx.Amount.Decimal)
	wl.transactions = append(wl.transactions, tx)
	writeText(w, http.StatusOK, "Transaction carried out successfully - New user balance: "+wl.funds.String())
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request, _ User) {
	s.mu.Lock()
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, *p)
	}
	s.mu.Unlock()
	if len(out) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request, caller User) {
	address := strings.TrimSpace(r.URL.Query().Get("shippingAddress"))
	if address == "" {
		writeText(w, http.StatusBadRequest, "shippingAddress is required")
		return
	}
	var cart []domain.CartProduct
	if err := json.NewDecoder(r.Body).Decode(&cart); err != nil || len(cart) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := idempotency.Key(r)
	if key != "" {
		if prev, ok := s.replays[key]; ok {
			writeJSON(w, http.StatusOK, prev)
			return
		}
	}

	total := decimal.Zero
	for _, line := range cart {
		p, ok := s.products[line.Product.ProductID]
		if !ok || line.Quantity <= 0 || p.Quantity < line.Quantity {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		total = total.Add(decimal.NewFromFloat(p.Price).Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	wl := s.wallets[caller.ID]
	if wl == nil || wl.funds.LessThan(total) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	for _, line := range cart {
		s.products[line.Product.ProductID].Quantity -= line.Quantity
	}
	wl.funds = wl.funds.Sub(total)
	wl.transactions = append(wl.transactions, domain.Transaction{
		IssuerID:   caller.ID,
		Amount:     domain.Amount{Decimal: total.Neg()},
		Motivation: domain.MotivationOrderPayment,
	})

	o := &order{id: newObjectID(), buyer: caller.ID, status: domain.OrderStatusIssued, address: address, total: total}
	s.orders[o.id] = o
	resp := domain.Order{OrderID: o.id, Status: o.status}
	if key != "" {
		s.replays[key] = resp
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) changeStatus(w http.ResponseWriter, r *http.Request, caller User) {
	status, err := domain.ParseOrderStatus(r.URL.Query().Get("newStatus"))
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[domain.OrderID(r.PathValue("orderID"))]
	if !ok {
		writeText(w, http.StatusBadRequest, "Cannot change order status")
		return
	}
	if caller.Admin {
		s.transition(o, status)
		writeText(w, http.StatusOK, "Order modified by admin")
		return
	}
	// customers may only cancel their own order while it is still ISSUED
	if o.buyer != caller.ID || o.status != domain.OrderStatusIssued || status != domain.OrderStatusCancelled {
		writeText(w, http.StatusUnauthorized, "Unauthorized request to modify order status")
		return
	}
	s.transition(o, status)
	writeText(w, http.StatusOK, "Order modified")
}

// transition must be called with s.mu held. Cancelled and failed orders are refunded.
func (s *Server) transition(o *order, status domain.OrderStatus) {
	prev := o.status
	o.status = status
	refund := status == domain.OrderStatusCancelled || status == domain.OrderStatusFailed
	done := prev == domain.OrderStatusCancelled || prev == domain.OrderStatusFailed
	if refund && !done {
		if wl := s.wallets[o.buyer]; wl != nil {
			wl.funds = wl.funds.Add(o.total)
			wl.transactions = append(wl.transactions, domain.Transaction{
				IssuerID:   o.buyer,
				Amount:     domain.Amount{Decimal: o.total},
				Motivation: domain.MotivationAutomatedRefund,
			})
		}
	}
}

func (s *Server) orderStatus(w http.ResponseWriter, r *http.Request, caller User) {
	s.mu.Lock()
	o, ok := s.orders[domain.OrderID(r.PathValue("orderID"))]
	var status domain.OrderStatus
	var buyer domain.UserID
	if ok {
		status, buyer = o.status, o.buyer
	}
	s.mu.Unlock()

	// the catalog folds every order service 4xx into one reply
	switch {
	case !ok, buyer != caller.ID && !caller.Admin:
		writeText(w, http.StatusBadRequest, "Cannot get order status: HttpClientErrorException")
	default:
		writeText(w, http.StatusOK, string(status))
	}
}

func (s *Server) target(w http.ResponseWriter, r *http.Request, caller User) (*wallet, bool) {
	userID := domain.UserID(r.URL.Query().Get("userId"))
	if userID == "" {
		userID = caller.ID
	}
	if userID != caller.ID && !caller.Admin {
		w.WriteHeader(http.StatusUnauthorized)
		return nil, false
	}
	wl, ok := s.wallets[userID]
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return nil, false
	}
	return wl, true
}

func (s *Server) walletFunds(w http.ResponseWriter, r *http.Request, caller User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wl, ok := s.target(w, r, caller)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, domain.Amount{Decimal: wl.funds})
}

func (s *Server) walletTransactions(w http.ResponseWriter, r *http.Request, caller User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wl, ok := s.target(w, r, caller)
	if !ok {
		return
	}
	out := append([]domain.Transaction{}, wl.transactions...)
	writeJSON(w, http.StatusOK, out)
}

// newObjectID yields a 24 hex char id, the shape the real services use.
func newObjectID() domain.OrderID {
	return domain.OrderID(strings.ReplaceAll(uuid.NewString(), "-", "")[:24])
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain;charset=UTF-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(msg))
}
