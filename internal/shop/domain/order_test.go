package domain

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderStatus(t *testing.T) {
	st, err := ParseOrderStatus(" delivering ")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusDelivering, st)

	_, err = ParseOrderStatus("SHIPPED")
	require.Error(t, err)
}

func TestParseMotivation(t *testing.T) {
	m, err := ParseMotivation("admin_recharge")
	require.NoError(t, err)
	assert.Equal(t, MotivationAdminRecharge, m)

	_, err = ParseMotivation("GIFT")
	require.Error(t, err)
}

func TestTransactionWireShape(t *testing.T) {
	tx := Transaction{IssuerID: "433333333333333333333334", Amount: NewAmount(69420), Motivation: MotivationAdminRecharge}
	data, err := json.Marshal(tx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"issuerId":"433333333333333333333334","amount":69420,"transactionMotivation":"ADMIN_RECHARGE"}`, string(data))
}

func TestCartWireShape(t *testing.T) {
	cart := []CartProduct{NewCartProduct("prod1", 1), NewCartProduct("prod2", 1)}
	data, err := json.Marshal(cart)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"productDTO":{"productId":"prod1"},"quantity":1},{"productDTO":{"productId":"prod2"},"quantity":1}]`, string(data))
}

func TestAmountAcceptsFractionalNumbers(t *testing.T) {
	var a Amount
	require.NoError(t, json.Unmarshal([]byte(`12.5`), &a))
	assert.Equal(t, "12.5", a.String())

	_, err := ParseAmount("ten")
	require.Error(t, err)
}
