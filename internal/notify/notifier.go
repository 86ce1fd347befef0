// Package notify fans out silent change notifications to the devices holding
// a pass. Delivery is strictly best effort: state mutations never wait on or
// fail because of push traffic.
package notify

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/brewpass/brewpass/internal/metrics"
	"github.com/brewpass/brewpass/internal/observability/logger"
)

// Pusher delivers one silent push to one device token under a pass topic.
type Pusher interface {
	Push(ctx context.Context, token, topic string) error
}

// TokenSource lists push tokens for a pass serial under a pass type.
type TokenSource interface {
	PushTargets(ctx context.Context, serial, passTypeID string) ([]string, error)
}

// maxConcurrentPushes bounds the fan-out per notification.
const maxConcurrentPushes = 8

// Notifier tells every device holding a pass that its record changed.
// A nil pusher means push credentials are not configured.
type Notifier struct {
	tokens TokenSource
	pusher Pusher
}

func New(tokens TokenSource, pusher Pusher) *Notifier {
	return &Notifier{tokens: tokens, pusher: pusher}
}

// PassUpdated notifies every registered device that the pass identified by
// serial changed. It returns the number of devices with a successful send;
// without credentials it returns how many devices would have been reached.
// Individual delivery failures are counted and logged but never propagated:
// stale devices drop off the registry on their own schedule.
func (n *Notifier) PassUpdated(ctx context.Context, serial, passTypeID string) (int, error) {
	tokens, err := n.tokens.PushTargets(ctx, serial, passTypeID)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, nil
	}
	if n.pusher == nil {
		// Without credentials the fan-out is a no-op, but the caller still
		// learns how many devices would have been reached.
		metrics.RecordPush("skipped")
		logger.From(ctx).Debug("push credentials not configured, skipping notification",
			logger.Serial(serial), logger.Count(len(tokens)))
		return len(tokens), nil
	}

	var failed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPushes)
	results := make(chan error, len(tokens))
	for _, token := range tokens {
		token := token
		g.Go(func() error {
			results <- n.pusher.Push(gctx, token, passTypeID)
			return nil
		})
	}
	g.Wait()
	close(results)
	for err := range results {
		if err != nil {
			failed++
			metrics.RecordPush("failed")
			logger.From(ctx).Warn("push delivery failed",
				logger.Serial(serial), logger.Err(err))
		} else {
			metrics.RecordPush("ok")
		}
	}

	logger.From(ctx).Info("pass update notified",
		logger.Serial(serial),
		logger.PassType(passTypeID),
		logger.Count(len(tokens)),
		logger.Int("failed", int(failed)))
	return len(tokens) - int(failed), nil
}
