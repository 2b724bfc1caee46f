package journal

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"

	"github.com/nazeru/shopctl-go/pkg/contracts"
	"github.com/nazeru/shopctl-go/pkg/kafka"
	"github.com/nazeru/shopctl-go/pkg/logging"
)

// Tail reads run events until ctx is done and hands each decodable one to fn.
// Read errors are logged and retried after backoff; fn errors stop the tail.
func Tail(ctx context.Context, reader kafka.MessageReader, backoff time.Duration, fn func(contracts.Event) error) error {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.Error(logging.Fields{Service: "shopctl", Step: "journal_tail", Message: "kafka read error"}, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			continue
		}
		var evt contracts.Event
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logging.Error(logging.Fields{Service: "shopctl", Step: "journal_tail", Message: "event decode error"}, err)
			continue
		}
		if evt.EventID == "" {
			continue
		}
		if err := fn(evt); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}
