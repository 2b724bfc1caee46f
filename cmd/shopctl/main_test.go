package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/shopctl-go/internal/shop/domain"
	"github.com/nazeru/shopctl-go/internal/shopstub"
	"github.com/nazeru/shopctl-go/pkg/contracts"
	"github.com/nazeru/shopctl-go/pkg/kafka"
)

func runCLI(t *testing.T, stub *shopstub.Server, args ...string) (string, error) {
	t.Helper()
	return runCLIEnv(t, stub, nil, args...)
}

func runCLIEnv(t *testing.T, stub *shopstub.Server, env map[string]string, args ...string) (string, error) {
	t.Helper()
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)
	t.Setenv("SHOP_CATALOG_URL", srv.URL)
	t.Setenv("SHOP_WALLET_URL", srv.URL)
	t.Setenv("SHOP_LOG_LEVEL", "error")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("KAFKA_BROKERS", "")
	for k, v := range env {
		t.Setenv(k, v)
	}

	out := &bytes.Buffer{}
	a := &app{}
	cmd := newRootCmd(a)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	a.close()
	return out.String(), err
}

func TestFundCommand(t *testing.T) {
	out, err := runCLI(t, shopstub.NewDefault(), "fund")
	require.NoError(t, err)
	assert.Equal(t, "Transaction carried out successfully - New user balance: 69420\n", out)
}

func TestFundCommandSurvivesUnreachableDatabase(t *testing.T) {
	stub := shopstub.NewDefault()
	out, err := runCLIEnv(t, stub, map[string]string{
		"DATABASE_URL": "postgres://u:p@127.0.0.1:1/db?connect_timeout=1",
	}, "fund")
	require.NoError(t, err)
	assert.Equal(t, "Transaction carried out successfully - New user balance: 69420\n", out)
	assert.Equal(t, "69420", stub.Funds("444444444444444444444444").String())
}

func TestFailedCommandStillClosesJournal(t *testing.T) {
	srv := httptest.NewServer(shopstub.NewDefault().Handler())
	t.Cleanup(srv.Close)
	t.Setenv("SHOP_CATALOG_URL", srv.URL)
	t.Setenv("SHOP_LOG_LEVEL", "error")

	sink := &closeTracker{}
	a := &app{sink: sink}
	cmd := newRootCmd(a)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"status", "missing"})
	require.Error(t, cmd.ExecuteContext(context.Background()))
	a.close()
	assert.True(t, sink.closed)
}

func TestFundCommandRejectsBadMotivation(t *testing.T) {
	_, err := runCLI(t, shopstub.NewDefault(), "fund", "--motivation", "GIFT")
	require.Error(t, err)
}

func TestOrderRoutineCommand(t *testing.T) {
	cart := filepath.Join(t.TempDir(), "cart.yaml")
	require.NoError(t, os.WriteFile(cart, []byte("- product_id: prod1\n  quantity: 3\n"), 0o644))

	out, err := runCLI(t, shopstub.NewDefault(), "order-routine", "--delay", "0s", "--cart", cart)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], `"status":"ISSUED"`)
	assert.Equal(t, "New status = DELIVERING", lines[2])
	assert.Equal(t, "New status = DELIVERED", lines[4])
}

func TestOrderRoutineFailsOnWrongPassword(t *testing.T) {
	_, err := runCLI(t, shopstub.NewDefault(), "order-routine", "--delay", "0s", "--password", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSetStatusAndStatusCommands(t *testing.T) {
	stub := shopstub.NewDefault()
	out, err := runCLI(t, stub, "place-order")
	require.NoError(t, err)
	id := between(out, `"orderId":"`, `"`)
	require.NotEmpty(t, id)

	out, err = runCLI(t, stub, "set-status", id, "failed")
	require.NoError(t, err)
	assert.Equal(t, "Order modified by admin\n", out)

	out, err = runCLI(t, stub, "status", id)
	require.NoError(t, err)
	assert.Equal(t, "Status = FAILED\n", out)

	st, _ := stub.Status(domain.OrderID(id))
	assert.Equal(t, domain.OrderStatusFailed, st)
}

func TestWalletCommands(t *testing.T) {
	stub := shopstub.NewDefault()
	out, err := runCLI(t, stub, "funds")
	require.NoError(t, err)
	assert.Equal(t, "100000\n", out)

	out, err = runCLI(t, stub, "transactions", "--user-id", "444444444444444444444444")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)

	out, err = runCLI(t, stub, "products")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "prod1"`)
}

func TestBenchCommand(t *testing.T) {
	out, err := runCLI(t, shopstub.NewDefault(), "bench", "--total", "4", "--concurrency", "2")
	require.NoError(t, err)
	assert.Contains(t, out, `"successful_runs": 4`)
}

func TestJournalRelayNeedsDatabase(t *testing.T) {
	_, err := runCLI(t, shopstub.NewDefault(), "journal", "relay")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestPickerNavigation(t *testing.T) {
	m := initialModel(context.Background(), &app{})

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(model)
	assert.Equal(t, 1, m.selected)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	next, _ = next.(model).Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(model)
	assert.Equal(t, 0, m.selected)

	next, _ = m.Update(scenarioResult{status: "fund OK", output: "done"})
	m = next.(model)
	assert.Contains(t, m.View(), "Status: fund OK")
	assert.Contains(t, m.View(), "done")
}

func between(s, start, end string) string {
	i := strings.Index(s, start)
	if i < 0 {
		return ""
	}
	s = s[i+len(start):]
	j := strings.Index(s, end)
	if j < 0 {
		return ""
	}
	return s[:j]
}

func TestJournalTailNeedsBrokers(t *testing.T) {
	_, err := runCLI(t, shopstub.NewDefault(), "journal", "tail")
	require.ErrorIs(t, err, kafka.ErrDisabled)
}

type closeTracker struct{ closed bool }

func (c *closeTracker) Emit(context.Context, contracts.Event) error { return nil }
func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}
