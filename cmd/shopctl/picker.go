package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nazeru/shopctl-go/internal/bench"
	"github.com/nazeru/shopctl-go/internal/config"
	"github.com/nazeru/shopctl-go/internal/routine"
)

type scenario struct {
	Name        string
	Description string
}

type model struct {
	ctx       context.Context
	app       *app
	scenarios []scenario
	selected  int
	status    string
	output    string
	busy      bool
}

func initialModel(ctx context.Context, a *app) model {
	return model{
		ctx: ctx,
		app: a,
		scenarios: []scenario{
			{"fund", "Recharge the default wallet"},
			{"order", "Place an order and deliver it"},
			{"bench", "Run 20 order routines, 4 at a time, no delay"},
		},
		status: "Ready",
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.scenarios)-1 {
				m.selected++
			}
		case "enter":
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Running..."
			m.output = ""
			return m, runScenarioCmd(m.ctx, m.app, m.scenarios[m.selected].Name)
		}
	case scenarioResult:
		m.busy = false
		m.status = msg.status
		m.output = msg.output
	}
	return m, nil
}

func (m model) View() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "shopctl")
	fmt.Fprintf(b, "catalog=%s wallet=%s user=%s\n", m.app.cfg.CatalogURL, m.app.cfg.WalletURL, m.app.cfg.Username)
	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "Drills:")
	for i, scn := range m.scenarios {
		marker := " "
		if i == m.selected {
			marker = ">"
		}
		fmt.Fprintf(b, " %s %s - %s\n", marker, scn.Name, scn.Description)
	}
	fmt.Fprintln(b, "")
	fmt.Fprintf(b, "Status: %s\n", m.status)
	if m.output != "" {
		fmt.Fprintln(b, "")
		fmt.Fprintln(b, strings.TrimRight(m.output, "\n"))
	}
	fmt.Fprintln(b, "\nControls: up/down select drill, enter to run, q to quit")
	return b.String()
}

type scenarioResult struct {
	status string
	output string
}

func runScenarioCmd(ctx context.Context, a *app, name string) tea.Cmd {
	return func() tea.Msg {
		out := &bytes.Buffer{}
		var err error
		switch name {
		case "fund":
			err = a.runner(0, out).Fund(ctx, routine.DefaultFundInput())
		case "order":
			_, err = a.runner(a.cfg.StepDelay, out).OrderLifecycle(ctx, routine.LifecycleInput{
				Cart:            config.DefaultCart(),
				ShippingAddress: "shippingAddress",
			})
		case "bench":
			var res bench.Result
			res, err = bench.Run(ctx, a.runner(0, io.Discard), bench.Options{
				Total:       20,
				Concurrency: 4,
				CatalogURL:  a.cfg.CatalogURL,
				Lifecycle:   routine.LifecycleInput{Cart: config.DefaultCart(), ShippingAddress: "shippingAddress"},
			})
			if err == nil {
				fmt.Fprintf(out, "ok=%d failed=%d avg=%.1fms p95=%.1fms throughput=%.2f runs/s",
					res.SuccessfulRuns, res.FailedRuns, res.AvgLatencyMs, res.P95LatencyMs, res.ThroughputRunsPerS)
			}
		default:
			return scenarioResult{status: fmt.Sprintf("Unknown drill %q", name)}
		}
		if err != nil {
			return scenarioResult{status: fmt.Sprintf("%s failed: %v", name, err), output: out.String()}
		}
		return scenarioResult{status: fmt.Sprintf("%s OK", name), output: out.String()}
	}
}

func runPicker(ctx context.Context, a *app) error {
	p := tea.NewProgram(initialModel(ctx, a), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
