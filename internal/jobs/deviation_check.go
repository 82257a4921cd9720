// Package jobs holds the scheduled background jobs: periodic deviation
// checks, state snapshots and database health checks. Each job implements
// the scheduler.Job interface.
package jobs

import (
	"github.com/rs/zerolog"

	"github.com/aristath/treasurer/internal/modules/treasury"
)

// EventDeviationDetected is published when a scheduled check finds the
// treasury out of balance.
const EventDeviationDetected = "deviation_detected"

// DeviationCheckJob periodically runs the deviation detector and, when the
// treasury is out of balance, publishes an event carrying the planner's
// suggestions. It never executes trades itself.
type DeviationCheckJob struct {
	treasury *treasury.Service
	events   treasury.EventPublisher
	log      zerolog.Logger
}

// NewDeviationCheckJob creates a new deviation check job
func NewDeviationCheckJob(treasurySvc *treasury.Service, events treasury.EventPublisher, log zerolog.Logger) *DeviationCheckJob {
	return &DeviationCheckJob{
		treasury: treasurySvc,
		events:   events,
		log:      log.With().Str("job", "deviation_check").Logger(),
	}
}

// Name returns the job name
func (j *DeviationCheckJob) Name() string {
	return "deviation_check"
}

// Run executes the deviation check
func (j *DeviationCheckJob) Run() error {
	if !j.treasury.NeedsRebalancing() {
		j.log.Debug().Msg("Treasury within threshold")
		return nil
	}

	suggestions := j.treasury.RebalancingSuggestions()

	j.log.Info().
		Int("suggestions", len(suggestions)).
		Int64("threshold_bps", j.treasury.ThresholdBps()).
		Bool("rebalancing_enabled", j.treasury.RebalancingEnabled()).
		Msg("Treasury needs rebalancing")

	for _, action := range suggestions {
		side := "sell"
		if action.IsBuy {
			side = "buy"
		}
		j.log.Info().
			Str("token", action.Token).
			Str("side", side).
			Int64("amount", action.Amount).
			Msg("Suggested action")
	}

	if j.events != nil {
		payload := make([]map[string]interface{}, 0, len(suggestions))
		for _, action := range suggestions {
			payload = append(payload, map[string]interface{}{
				"token":  action.Token,
				"amount": action.Amount,
				"is_buy": action.IsBuy,
			})
		}
		j.events.Publish(EventDeviationDetected, map[string]interface{}{
			"suggestions":         payload,
			"rebalancing_enabled": j.treasury.RebalancingEnabled(),
		})
	}

	return nil
}
