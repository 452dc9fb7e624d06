// Package cooldown tracks per-rule suppression windows so a firing
// condition doesn't re-dispatch an alert on every evaluation tick.
// Unavailability of the backing store fails open: callers should treat an
// error from Exists as "not in cooldown" rather than blocking dispatch,
// since spurious duplicate alerts are preferable to silent suppression.
package cooldown

import (
	"context"
	"fmt"
	"time"
)

// Store sets and checks cooldown keys with a TTL.
type Store interface {
	Set(ctx context.Context, key string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// RuleKey is the canonical cooldown key for an alert rule.
func RuleKey(ruleID string) string {
	return fmt.Sprintf("alert_cooldown:%s", ruleID)
}
