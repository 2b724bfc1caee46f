// Package routine runs the scripted drills against the shop API: funding a
// wallet and walking an order through its delivery lifecycle.
package routine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/nazeru/shopctl-go/internal/journal"
	"github.com/nazeru/shopctl-go/internal/shop/client"
	"github.com/nazeru/shopctl-go/internal/shop/domain"
	"github.com/nazeru/shopctl-go/pkg/contracts"
	"github.com/nazeru/shopctl-go/pkg/logging"
)

type StepName string

const (
	StepAddFunds     StepName = "add_funds"
	StepPlaceOrder   StepName = "place_order"
	StepChangeStatus StepName = "change_status"
	StepOrderStatus  StepName = "order_status"
	StepWait         StepName = "wait"
)

// API is the subset of the shop client the routines drive.
type API interface {
	AddTransaction(ctx context.Context, userID domain.UserID, tx domain.Transaction) (string, error)
	PlaceOrder(ctx context.Context, cart []domain.CartProduct, shippingAddress string) (domain.Order, string, error)
	ChangeOrderStatus(ctx context.Context, orderID domain.OrderID, status domain.OrderStatus) (string, error)
	OrderStatus(ctx context.Context, orderID domain.OrderID) (string, error)
}

type Runner struct {
	API   API
	Sink  journal.Sink
	Out   io.Writer
	Delay time.Duration
	// Sleep defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

type FundInput struct {
	UserID      domain.UserID
	Transaction domain.Transaction
}

// DefaultFundInput is the admin recharge the drill performs.
func DefaultFundInput() FundInput {
	return FundInput{
		UserID: "444444444444444444444444",
		Transaction: domain.Transaction{
			IssuerID:   "433333333333333333333334",
			Amount:     domain.NewAmount(69420),
			Motivation: domain.MotivationAdminRecharge,
		},
	}
}

type LifecycleInput struct {
	Cart            []domain.CartProduct
	ShippingAddress string
	// Transitions are applied in order, each after one delay.
	Transitions []domain.OrderStatus
}

func DefaultTransitions() []domain.OrderStatus {
	return []domain.OrderStatus{domain.OrderStatusDelivering, domain.OrderStatusDelivered}
}

// Fund adds one transaction to a wallet and prints the reply.
func (r *Runner) Fund(ctx context.Context, in FundInput) error {
	run := r.start(ctx, "fund")
	err := r.step(ctx, run, "", StepAddFunds, func() error {
		body, err := r.API.AddTransaction(ctx, in.UserID, in.Transaction)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.Out, body)
		return nil
	})
	r.finish(ctx, run, "", err)
	return err
}

// OrderLifecycle places an order, then for every transition waits, changes
// the status and reads it back. The first failure ends the run.
func (r *Runner) OrderLifecycle(ctx context.Context, in LifecycleInput) (domain.Order, error) {
	run := r.start(ctx, "order_lifecycle")
	transitions := in.Transitions
	if transitions == nil {
		transitions = DefaultTransitions()
	}

	var order domain.Order
	err := r.step(ctx, run, "", StepPlaceOrder, func() error {
		o, _, err := r.API.PlaceOrder(ctx, in.Cart, in.ShippingAddress)
		if err != nil {
			return err
		}
		order = o
		fmt.Fprintln(r.Out, o.String())
		return nil
	})
	if err != nil {
		r.finish(ctx, run, "", err)
		return domain.Order{}, err
	}

	orderID := string(order.OrderID)
	for _, next := range transitions {
		err = r.step(ctx, run, orderID, StepWait, func() error {
			return r.sleep(ctx, r.Delay)
		})
		if err == nil {
			err = r.step(ctx, run, orderID, StepChangeStatus, func() error {
				body, err := r.API.ChangeOrderStatus(ctx, order.OrderID, next)
				if err != nil {
					return err
				}
				fmt.Fprintln(r.Out, body)
				return nil
			})
		}
		if err == nil {
			err = r.step(ctx, run, orderID, StepOrderStatus, func() error {
				status, err := r.API.OrderStatus(ctx, order.OrderID)
				if err != nil {
					return err
				}
				order.Status = domain.OrderStatus(status)
				fmt.Fprintf(r.Out, "New status = %s\n", status)
				return nil
			})
		}
		if err != nil {
			r.finish(ctx, run, orderID, err)
			return order, err
		}
	}
	r.finish(ctx, run, orderID, nil)
	return order, nil
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Runner) start(ctx context.Context, routine string) string {
	run := uuid.NewString()
	r.emit(ctx, journal.NewEvent(run, "", contracts.EventRunStarted, map[string]any{"routine": routine}))
	return run
}

func (r *Runner) finish(ctx context.Context, run, orderID string, err error) {
	payload := map[string]any{"status": "ok"}
	if err != nil {
		payload["status"] = "failed"
		payload["error"] = err.Error()
	}
	r.emit(ctx, journal.NewEvent(run, orderID, contracts.EventRunFinished, payload))
}

func (r *Runner) step(ctx context.Context, run, orderID string, name StepName, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	fields := logging.Fields{
		Service:    "shopctl",
		RunID:      run,
		OrderID:    orderID,
		Step:       string(name),
		DurationMS: elapsed.Milliseconds(),
	}
	payload := map[string]any{"step": string(name), "duration_ms": elapsed.Milliseconds()}
	typ := contracts.EventStepSucceeded
	if err != nil {
		typ = contracts.EventStepFailed
		payload["error"] = err.Error()
		payload["class"] = client.Classify(err)
		fields.Status = "failed"
		fields.Message = "step failed"
		logging.Error(fields, err)
	} else {
		fields.Status = "ok"
		fields.Message = "step done"
		logging.Log(fields)
	}
	r.emit(ctx, journal.NewEvent(run, orderID, typ, payload))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// emit never fails the run; journal trouble is only logged.
func (r *Runner) emit(ctx context.Context, evt contracts.Event) {
	if r.Sink == nil {
		return
	}
	if err := r.Sink.Emit(context.WithoutCancel(ctx), evt); err != nil {
		logging.Error(logging.Fields{Service: "shopctl", RunID: evt.RunID, EventID: evt.EventID, Message: "journal emit failed"}, err)
	}
}
