package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alexanderramin/sitesync/internal/kv"
	"github.com/alexanderramin/sitesync/internal/report"
)

// CheckExpiry wipes persisted snapshots and the in-memory stores when the
// last recorded activity is older than the expiry threshold. A missing
// timestamp counts as a fresh install; an unreadable one counts as expired.
// Keys other than snapshots and the activity timestamp are left alone.
func (h *Hydrator) CheckExpiry(ctx context.Context) (bool, error) {
	h.mu.Lock()
	prev := h.state
	if prev == StateIdle {
		h.state = StateExpiryCheck
	}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.state == StateExpiryCheck {
			h.state = prev
		}
		h.mu.Unlock()
	}()

	raw, ok, err := h.kvs.Get(ctx, kv.LastActiveKey)
	if err != nil {
		return false, fmt.Errorf("reading last activity: %w", err)
	}
	if !ok {
		return false, nil
	}
	last, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		h.sink.Report(report.Failure{Kind: report.KindConsistency, Op: "expiry", Entity: kv.LastActiveKey, Err: err})
	} else if h.now().Sub(last) <= h.expiry {
		return false, nil
	}

	h.commitMu.Lock()
	defer h.commitMu.Unlock()
	removed, err := kv.WipeSnapshots(ctx, h.kvs)
	if err != nil {
		return false, fmt.Errorf("wiping expired snapshots: %w", err)
	}
	h.stores.Clear()
	h.logger.Info("session expired, snapshots wiped",
		zap.Time("last_active", last),
		zap.Int("keys_removed", len(removed)))
	return true, nil
}

// Touch records user activity now, re-arming the expiry check.
func (h *Hydrator) Touch(ctx context.Context) error {
	ts := h.now().UTC().Format(time.RFC3339Nano)
	if err := h.kvs.Set(ctx, kv.LastActiveKey, []byte(ts)); err != nil {
		return fmt.Errorf("recording activity: %w", err)
	}
	return nil
}
