// Package alertengine runs the single cooperative tick loop that
// evaluates every active alert rule, raises alerts for the ones that
// fire, and hands them to the dispatcher.
package alertengine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"monitorplane/internal/cooldown"
	"monitorplane/internal/dispatch"
	"monitorplane/internal/evaluator"
	"monitorplane/internal/logging"
	"monitorplane/internal/sampledb"
	"monitorplane/internal/store"
)

// defaultWindowDuration and defaultWindowLimit bound the sample window
// pulled for every rule; a rule cannot widen or narrow it.
const (
	// Every alert evaluation pulls at most 100 samples from the last 5
	// minutes, never a wider window.
	defaultWindowDuration = 5 * time.Minute
	defaultWindowLimit    = 100

	// triggerSampleCount bounds the snapshot stored on the alert row to
	// the newest 3 samples.
	triggerSampleCount = 3
)

// Engine owns the tick loop. One Engine evaluates every active rule
// across every user — there is no per-tenant isolation at this layer.
type Engine struct {
	store    *store.Store
	samples  sampledb.Store
	cooldown cooldown.Store
	dispatch *dispatch.Dispatcher
	interval time.Duration
}

// New builds an Engine that ticks every interval.
func New(st *store.Store, samples sampledb.Store, cd cooldown.Store, dp *dispatch.Dispatcher, interval time.Duration) *Engine {
	return &Engine{store: st, samples: samples, cooldown: cd, dispatch: dp, interval: interval}
}

// Run blocks, evaluating rules on a fixed interval, until ctx is
// cancelled. ctx cancellation only stops scheduling of new ticks — an
// in-flight tick's own I/O (relational queries, the sample window pull,
// cooldown calls, dispatch) runs against a context.WithoutCancel
// derivative that carries the same logger but is never cancelled by the
// shutdown signal, so an in-flight tick (including its in-flight
// dispatches) always completes before the caller tears down shared
// resources. A panic or error in any single rule's
// evaluation is logged and the loop continues — one bad rule must never
// stop the others from firing.
func (e *Engine) Run(ctx context.Context) error {
	log := logging.FromContext(ctx)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			e.tick(context.WithoutCancel(ctx))
			elapsed := time.Since(start)
			if elapsed > e.interval {
				log.Warn("alert engine tick overran its interval",
					zap.Duration("elapsed", elapsed), zap.Duration("interval", e.interval))
			}
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	log := logging.FromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			log.Error("alert engine tick panicked", zap.Any("panic", r))
		}
	}()

	rules, err := e.store.ListActiveAlertRules(ctx)
	if err != nil {
		log.Error("listing active alert rules failed", zap.Error(err))
		return
	}

	for _, rule := range rules {
		e.evaluateRule(ctx, rule)
	}
}

func (e *Engine) evaluateRule(ctx context.Context, rule *store.AlertRule) {
	log := logging.FromContext(ctx).With(zap.String("rule_id", rule.ID), zap.String("monitor_id", rule.MonitorID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("alert rule evaluation panicked", zap.Any("panic", r))
		}
	}()

	key := cooldown.RuleKey(rule.ID)
	inCooldown, err := e.cooldown.Exists(ctx, key)
	if err != nil {
		// Fail open: treat an unreachable cooldown store as "not in
		// cooldown" so a backend outage causes duplicate alerts rather
		// than silent suppression.
		log.Warn("cooldown store unavailable, evaluating rule anyway", zap.Error(err))
		inCooldown = false
	}
	if inCooldown {
		return
	}

	cond, err := evaluator.Parse(rule.Condition)
	if err != nil {
		log.Error("rule condition failed to parse", zap.Error(err))
		return
	}

	window, err := e.samples.Window(ctx, rule.MonitorID, defaultWindowDuration, defaultWindowLimit)
	if err != nil {
		log.Error("pulling sample window failed", zap.Error(err))
		return
	}
	if len(window) > 0 {
		if err := e.store.UpdateLastSampleAt(ctx, rule.MonitorID, window[0].Timestamp); err != nil {
			log.Warn("updating last_sample_at failed", zap.Error(err))
		}
	}

	fired, err := evaluator.Evaluate(cond, window)
	if err != nil {
		log.Error("evaluating rule failed", zap.Error(err))
		return
	}
	if !fired {
		return
	}

	monitor, err := e.store.GetMonitorForUser(ctx, rule.UserID, rule.MonitorID)
	if err != nil {
		log.Error("fetching monitor for firing rule failed", zap.Error(err))
		return
	}

	triggerData := window
	if len(triggerData) > triggerSampleCount {
		triggerData = triggerData[:triggerSampleCount]
	}
	// trigger_data is shaped exactly as a JSON round trip through the
	// alerts table would produce it ([]interface{} of maps), so the
	// dispatcher reads a freshly-created alert and a reloaded one the
	// same way.
	samples := make([]interface{}, 0, len(triggerData))
	for _, s := range triggerData {
		samples = append(samples, map[string]interface{}{
			"timestamp": s.Timestamp.UTC().Format(time.RFC3339),
			"fields":    s.Fields,
		})
	}
	alertData := map[string]interface{}{"condition": rule.Condition, "trigger_data": samples}

	alert, err := e.store.CreateAlert(ctx, rule, alertData)
	if err != nil {
		log.Error("creating alert row failed", zap.Error(err))
		return
	}

	if rule.CooldownMinutes > 0 {
		if err := e.cooldown.Set(ctx, key, time.Duration(rule.CooldownMinutes)*time.Minute); err != nil {
			log.Warn("setting cooldown failed", zap.Error(err))
		}
	}

	user, err := e.store.GetUser(ctx, rule.UserID)
	userEmail := ""
	if err == nil {
		userEmail = user.Email
	} else {
		log.Warn("fetching user email for dispatch failed", zap.Error(err))
	}

	if err := e.dispatch.Dispatch(ctx, alert, monitor, userEmail); err != nil {
		log.Error("dispatching alert failed", zap.Error(err))
	}
}
