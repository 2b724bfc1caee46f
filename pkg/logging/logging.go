package logging

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Fields struct {
	Service    string `json:"service"`
	RunID      string `json:"run_id,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
	EventID    string `json:"event_id,omitempty"`
	Step       string `json:"step,omitempty"`
	Status     string `json:"status,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Message    string `json:"message,omitempty"`
}

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// Init builds the process logger. Level is one of debug|info|warn|error.
func Init(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
	l, err := config.Build()
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Sync() {
	_ = L().Sync()
}

func Log(fields Fields) {
	L().Info(fields.Message, zapFields(fields)...)
}

func Error(fields Fields, err error) {
	L().Error(fields.Message, append(zapFields(fields), zap.Error(err))...)
}

func zapFields(f Fields) []zap.Field {
	out := []zap.Field{zap.String("service", f.Service)}
	if f.RunID != "" {
		out = append(out, zap.String("run_id", f.RunID))
	}
	if f.OrderID != "" {
		out = append(out, zap.String("order_id", f.OrderID))
	}
	if f.EventID != "" {
		out = append(out, zap.String("event_id", f.EventID))
	}
	if f.Step != "" {
		out = append(out, zap.String("step", f.Step))
	}
	if f.Status != "" {
		out = append(out, zap.String("status", f.Status))
	}
	if f.DurationMS != 0 {
		out = append(out, zap.Int64("duration_ms", f.DurationMS))
	}
	return out
}
