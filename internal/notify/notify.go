// Package notify defines the signal surface consumed by external
// notification-presentation and audio components.
package notify

import (
	"context"
	"log/slog"

	"github.com/example/alarmd/internal/alarm"
)

// Notifier receives instance lifecycle signals. Implementations must not
// block; the scheduling core calls them while holding its transition lock.
type Notifier interface {
	// InstanceStateChanged is emitted for every transition, including
	// creation into the scheduled state.
	InstanceStateChanged(ctx context.Context, inst alarm.Instance)
	// AlertStarted is emitted when an instance enters the firing state.
	AlertStarted(ctx context.Context, inst alarm.Instance)
	// AlertStopped is emitted when a firing or snoozed instance stops
	// alerting (snooze, dismiss or missed timeout).
	AlertStopped(ctx context.Context, inst alarm.Instance)
}

// LogNotifier records every signal through slog. It stands in for the
// platform notification and audio components in headless deployments.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) InstanceStateChanged(ctx context.Context, inst alarm.Instance) {
	n.logger.InfoContext(ctx, "alarm instance state changed",
		"instance_id", inst.ID,
		"definition_id", inst.DefinitionID,
		"state", inst.State.String(),
		"trigger_at", inst.TriggerAt,
	)
}

func (n *LogNotifier) AlertStarted(ctx context.Context, inst alarm.Instance) {
	n.logger.InfoContext(ctx, "alert started",
		"instance_id", inst.ID,
		"definition_id", inst.DefinitionID,
		"label", inst.Label,
		"silent", inst.Silent,
		"vibrate", inst.Vibrate,
	)
}

func (n *LogNotifier) AlertStopped(ctx context.Context, inst alarm.Instance) {
	n.logger.InfoContext(ctx, "alert stopped",
		"instance_id", inst.ID,
		"definition_id", inst.DefinitionID,
	)
}
