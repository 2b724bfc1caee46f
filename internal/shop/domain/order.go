package domain

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

type OrderID string
type ProductID string
type UserID string

type OrderStatus string

const (
	OrderStatusIssued     OrderStatus = "ISSUED"
	OrderStatusDelivering OrderStatus = "DELIVERING"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusFailed     OrderStatus = "FAILED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

var orderStatuses = []OrderStatus{
	OrderStatusIssued,
	OrderStatusDelivering,
	OrderStatusDelivered,
	OrderStatusFailed,
	OrderStatusCancelled,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	up := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range orderStatuses {
		if st == up {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

type TransactionMotivation string

const (
	MotivationAdminRecharge   TransactionMotivation = "ADMIN_RECHARGE"
	MotivationOrderPayment    TransactionMotivation = "ORDER_PAYMENT"
	MotivationAutomatedRefund TransactionMotivation = "AUTOMATED_REFUND"
)

func ParseMotivation(s string) (TransactionMotivation, error) {
	m := TransactionMotivation(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case MotivationAdminRecharge, MotivationOrderPayment, MotivationAutomatedRefund:
		return m, nil
	}
	return "", fmt.Errorf("unknown transaction motivation %q", s)
}

// Amount is a wallet amount. It travels as a bare JSON number.
type Amount struct {
	decimal.Decimal
}

func NewAmount(v int64) Amount {
	return Amount{decimal.NewFromInt(v)}
}

func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount{d}, nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	return a.Decimal.UnmarshalJSON(data)
}

type ProductRef struct {
	ProductID ProductID `json:"productId"`
}

// CartProduct is one line of the cart sent to placeOrder.
type CartProduct struct {
	Product  ProductRef `json:"productDTO"`
	Quantity int        `json:"quantity"`
}

func NewCartProduct(id ProductID, qty int) CartProduct {
	return CartProduct{Product: ProductRef{ProductID: id}, Quantity: qty}
}

type Transaction struct {
	IssuerID   UserID                `json:"issuerId"`
	Amount     Amount                `json:"amount"`
	Motivation TransactionMotivation `json:"transactionMotivation"`
}

type Order struct {
	OrderID OrderID     `json:"orderId"`
	Status  OrderStatus `json:"status"`
}

// String renders the order the way the lifecycle routine prints it.
func (o Order) String() string {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Sprintf("{orderId:%s status:%s}", o.OrderID, o.Status)
	}
	return string(data)
}

type Product struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Picture     string  `json:"picture"`
	Category    string  `json:"category,omitempty"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}
