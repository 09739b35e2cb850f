package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ConnectionOptions bound the dial retry loop.
type ConnectionOptions struct {
	URL           string
	RetryAttempts int
	Delay         time.Duration
	MaxDelay      time.Duration
	Logger        *zap.Logger
}

// dialFunc is swapped in tests.
var dialFunc = amqp091.Dial

// DialWithRetry connects to the broker with exponential backoff.
// It gives up early when ctx is canceled.
func DialWithRetry(ctx context.Context, opts ConnectionOptions) (*amqp091.Connection, error) {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}
	if opts.Delay <= 0 {
		opts.Delay = 500 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	sleep := opts.Delay
	for i := 1; i <= opts.RetryAttempts; i++ {
		conn, err := dialFunc(opts.URL)
		if err == nil {
			if i > 1 {
				logger.Info("amqp connected", zap.Int("attempt", i))
			}
			return conn, nil
		}
		lastErr = err
		if i == opts.RetryAttempts {
			break
		}

		logger.Warn("amqp dial failed",
			zap.Int("attempt", i),
			zap.Duration("sleep", sleep),
			zap.Error(err),
		)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("dial canceled: %w", ctx.Err())
		case <-timer.C:
		}

		sleep *= 2
		if sleep > opts.MaxDelay {
			sleep = opts.MaxDelay
		}
	}

	return nil, fmt.Errorf("connect to broker after %d attempts: %w", opts.RetryAttempts, lastErr)
}
