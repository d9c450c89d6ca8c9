package pipeline

import (
	"context"

	"github.com/parkpoomdev/sos-thai-flood-map/internal/domain"
)

// Poll outcomes, also used as metric labels.
const (
	pollChanged   = "changed"
	pollUnchanged = "unchanged"
	pollAdopted   = "adopted"
	pollError     = "error"
)

// RunPolling checks upstream every PollInterval until ctx is cancelled.
// Tick failures are logged and never stop the loop or change the load
// state.
func (c *Controller) RunPolling(ctx context.Context) error {
	c.logger.Info("poller started", "interval", c.opts.PollInterval)
	c.metrics.PollerRunning.Set(1)
	defer c.metrics.PollerRunning.Set(0)

	ticker := c.clock.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("poller stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			c.Poll(ctx)
		}
	}
}

// Poll runs one upstream check and returns its outcome. A changed token
// shows an update notice and forces a reload. Without a prior token the new
// one is adopted and nothing reloads. An unchanged token still forces a
// reload: upstream content has been seen to change without a token bump.
func (c *Controller) Poll(ctx context.Context) string {
	token, err := c.deps.Feed.FetchToken(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("update check failed", "error", err)
		}
		c.metrics.PollTicks.WithLabelValues(pollError).Inc()
		return pollError
	}

	outcome := c.compareToken(token)
	c.metrics.PollTicks.WithLabelValues(outcome).Inc()
	c.logger.Debug("update check", "outcome", outcome, "fetched_at", string(token))

	switch outcome {
	case pollAdopted:
		return outcome
	case pollChanged:
		c.showNotice("มีข้อมูลใหม่! กำลังอัปเดตข้อมูล...")
	}

	if err := c.Load(ctx, true); err != nil {
		c.logger.Warn("reload after update check failed", "error", err)
	}
	return outcome
}

func (c *Controller) compareToken(token domain.Token) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case !c.haveToken && token != "":
		c.token = token
		c.haveToken = true
		return pollAdopted
	case c.haveToken && token != "" && token != c.token:
		return pollChanged
	default:
		return pollUnchanged
	}
}

func (c *Controller) showNotice(message string) {
	c.mu.Lock()
	c.notice = message
	c.noticeUntil = c.clock.Now().Add(UpdateNoticeDuration)
	c.mu.Unlock()
	c.deps.Notifier.Notify(message, UpdateNoticeDuration)
}
