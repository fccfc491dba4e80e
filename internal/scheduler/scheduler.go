// Copyright 2025 The Aimee Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package scheduler keeps schedule rows in sync with workflow
// definitions and fires due schedules.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inqbatorchris/aimee-sub008/internal/store"
	"github.com/inqbatorchris/aimee-sub008/pkg/errors"
	"github.com/inqbatorchris/aimee-sub008/pkg/workflow"
)

// Frequency names accepted in schedule trigger configs.
const (
	FrequencyHourly  = "hourly"
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// CronForFrequency maps a frequency name to its cron expression.
// Unknown frequencies fall back to hourly rather than failing: a
// misspelled frequency yields a workflow that runs too often, which is
// visible, instead of one that never runs, which is not.
func CronForFrequency(frequency string) string {
	switch frequency {
	case FrequencyHourly:
		return "0 * * * *"
	case FrequencyDaily:
		return "0 0 * * *"
	case FrequencyWeekly:
		return "0 0 * * 0"
	case FrequencyMonthly:
		return "0 0 1 * *"
	default:
		return "0 * * * *"
	}
}

// Sync reconciles the schedule row for a workflow after a create or
// update. Schedule-triggered workflows get their single row upserted;
// any other trigger type deactivates an existing row but never deletes
// it, so a workflow flipped back to schedule keeps its fire history.
func Sync(ctx context.Context, schedules store.ScheduleStore, def *workflow.Definition) error {
	if def.TriggerType != workflow.TriggerTypeSchedule {
		err := schedules.SetScheduleActive(ctx, def.ID, false)
		if err != nil && !errors.IsNotFound(err) {
			return err
		}
		return nil
	}

	frequency, _ := def.TriggerConfig["frequency"].(string)
	timezone, _ := def.TriggerConfig["timezone"].(string)
	return schedules.UpsertSchedule(ctx, &store.Schedule{
		ID:         uuid.NewString(),
		WorkflowID: def.ID,
		Frequency:  frequency,
		CronExpr:   CronForFrequency(frequency),
		Timezone:   timezone,
		Active:     def.Enabled,
	})
}

// RunStarter starts a workflow run on behalf of the scheduler.
type RunStarter interface {
	StartScheduledRun(ctx context.Context, workflowID string) (string, error)
}

// Runner is the clock loop: it checks active schedules on a fixed tick
// and fires the ones that are due.
type Runner struct {
	schedules store.ScheduleStore
	starter   RunStarter
	interval  time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	nextRun map[string]time.Time
}

// NewRunner creates a schedule runner.
func NewRunner(schedules store.ScheduleStore, starter RunStarter, interval time.Duration, logger *slog.Logger) *Runner {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		schedules: schedules,
		starter:   starter,
		interval:  interval,
		logger:    logger,
		nextRun:   make(map[string]time.Time),
	}
}

// Run ticks until the context is canceled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("scheduler started", "tick_interval", r.interval.String())

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("scheduler stopped")
			return
		case now := <-ticker.C:
			r.tick(ctx, now)
		}
	}
}

// tick fires every active schedule that is due at now. The next fire
// time is advanced before dispatch, so a slow run can never make the
// same tick fire twice.
func (r *Runner) tick(ctx context.Context, now time.Time) {
	active, err := r.schedules.ListActiveSchedules(ctx)
	if err != nil {
		r.logger.Error("listing active schedules", "error", err)
		return
	}

	for _, sched := range active {
		cron, err := ParseCron(sched.CronExpr)
		if err != nil {
			r.logger.Error("invalid cron expression",
				"workflow_id", sched.WorkflowID,
				"cron", sched.CronExpr,
				"error", err)
			continue
		}

		// Cron fields are evaluated in the schedule's zone. An unknown
		// or empty zone means UTC.
		localNow := now.UTC()
		if sched.Timezone != "" {
			if loc, err := time.LoadLocation(sched.Timezone); err == nil {
				localNow = now.In(loc)
			} else {
				r.logger.Warn("unknown schedule timezone",
					"workflow_id", sched.WorkflowID,
					"timezone", sched.Timezone)
			}
		}

		r.mu.Lock()
		next, known := r.nextRun[sched.WorkflowID]
		if !known {
			// First sighting: schedule from now, don't fire
			// immediately.
			next = cron.Next(localNow)
			r.nextRun[sched.WorkflowID] = next
		}
		due := known && !localNow.Before(next)
		if due {
			r.nextRun[sched.WorkflowID] = cron.Next(localNow)
		}
		r.mu.Unlock()

		if !due {
			continue
		}

		runID, err := r.starter.StartScheduledRun(ctx, sched.WorkflowID)
		if err != nil {
			r.logger.Error("starting scheduled run", "workflow_id", sched.WorkflowID, "error", err)
			continue
		}

		// Recorded only once the run exists: a fire that never produced
		// a run must not look like one that did.
		if err := r.schedules.MarkScheduleFired(ctx, sched.WorkflowID, now); err != nil {
			r.logger.Error("marking schedule fired", "workflow_id", sched.WorkflowID, "error", err)
		}
		r.logger.Info("schedule fired",
			"workflow_id", sched.WorkflowID,
			"run_id", runID,
			"trigger_source", "schedule")
	}

	// Forget workflows whose schedules went away or inactive.
	activeSet := make(map[string]bool, len(active))
	for _, sched := range active {
		activeSet[sched.WorkflowID] = true
	}
	r.mu.Lock()
	for id := range r.nextRun {
		if !activeSet[id] {
			delete(r.nextRun, id)
		}
	}
	r.mu.Unlock()
}
