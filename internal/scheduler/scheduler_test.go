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

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inqbatorchris/aimee-sub008/internal/store"
	"github.com/inqbatorchris/aimee-sub008/internal/store/memory"
	"github.com/inqbatorchris/aimee-sub008/pkg/workflow"
)

func TestCronForFrequency(t *testing.T) {
	tests := []struct {
		frequency string
		want      string
	}{
		{"hourly", "0 * * * *"},
		{"daily", "0 0 * * *"},
		{"weekly", "0 0 * * 0"},
		{"monthly", "0 0 1 * *"},
		{"fortnightly", "0 * * * *"},
		{"", "0 * * * *"},
	}

	for _, tt := range tests {
		if got := CronForFrequency(tt.frequency); got != tt.want {
			t.Errorf("CronForFrequency(%q) = %q, want %q", tt.frequency, got, tt.want)
		}
	}
}

func TestSync_ScheduleTrigger(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	def := &workflow.Definition{
		ID:            "wf-1",
		TriggerType:   workflow.TriggerTypeSchedule,
		TriggerConfig: map[string]any{"frequency": "weekly", "timezone": "America/New_York"},
		Enabled:       true,
	}
	require.NoError(t, Sync(ctx, s, def))

	sched, err := s.GetSchedule(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "0 0 * * 0", sched.CronExpr)
	assert.Equal(t, "weekly", sched.Frequency)
	assert.Equal(t, "America/New_York", sched.Timezone)
	assert.True(t, sched.Active)

	// Disabling the workflow deactivates the schedule on re-sync.
	def.Enabled = false
	require.NoError(t, Sync(ctx, s, def))

	sched, err = s.GetSchedule(ctx, "wf-1")
	require.NoError(t, err)
	assert.False(t, sched.Active)
}

func TestSync_NonScheduleTriggerDeactivates(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	require.NoError(t, Sync(ctx, s, &workflow.Definition{
		ID:            "wf-1",
		TriggerType:   workflow.TriggerTypeSchedule,
		TriggerConfig: map[string]any{"frequency": "daily"},
		Enabled:       true,
	}))

	// Trigger type changed to webhook: row deactivated, not deleted.
	require.NoError(t, Sync(ctx, s, &workflow.Definition{
		ID:          "wf-1",
		TriggerType: workflow.TriggerTypeWebhook,
		Enabled:     true,
	}))

	sched, err := s.GetSchedule(ctx, "wf-1")
	require.NoError(t, err)
	assert.False(t, sched.Active)
}

func TestSync_NonScheduleTriggerWithoutRow(t *testing.T) {
	s := memory.New()

	err := Sync(context.Background(), s, &workflow.Definition{
		ID:          "wf-1",
		TriggerType: workflow.TriggerTypeManual,
	})
	assert.NoError(t, err, "nothing to deactivate is not an error")
}

// recordingStarter counts scheduled run starts.
type recordingStarter struct {
	mu      sync.Mutex
	started []string
}

func (r *recordingStarter) StartScheduledRun(_ context.Context, workflowID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, workflowID)
	return "run-" + workflowID, nil
}

func (r *recordingStarter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.started)
}

func TestRunner_FiresDueSchedule(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	require.NoError(t, s.UpsertSchedule(ctx, &store.Schedule{
		ID: "sch-1", WorkflowID: "wf-1", Frequency: "hourly", CronExpr: "0 * * * *", Active: true,
	}))

	starter := &recordingStarter{}
	runner := NewRunner(s, starter, time.Minute, nil)

	// First sighting schedules the next boundary without firing.
	t0 := mustTime(t, "2025-06-02T10:15:00Z")
	runner.tick(ctx, t0)
	assert.Zero(t, starter.count())

	// Before the boundary: still nothing.
	runner.tick(ctx, mustTime(t, "2025-06-02T10:59:00Z"))
	assert.Zero(t, starter.count())

	// Past the boundary: fires exactly once.
	runner.tick(ctx, mustTime(t, "2025-06-02T11:00:05Z"))
	assert.Equal(t, 1, starter.count())

	// Same boundary again: already advanced, no double fire.
	runner.tick(ctx, mustTime(t, "2025-06-02T11:00:35Z"))
	assert.Equal(t, 1, starter.count())

	sched, err := s.GetSchedule(ctx, "wf-1")
	require.NoError(t, err)
	assert.NotNil(t, sched.LastFiredAt)
}

// failingStarter rejects every start.
type failingStarter struct {
	attempts int
}

func (f *failingStarter) StartScheduledRun(_ context.Context, _ string) (string, error) {
	f.attempts++
	return "", fmt.Errorf("workflow disabled")
}

func TestRunner_FailedStartLeavesLastFiredUnset(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	require.NoError(t, s.UpsertSchedule(ctx, &store.Schedule{
		ID: "sch-1", WorkflowID: "wf-1", Frequency: "hourly", CronExpr: "0 * * * *", Active: true,
	}))

	starter := &failingStarter{}
	runner := NewRunner(s, starter, time.Minute, nil)

	runner.tick(ctx, mustTime(t, "2025-06-02T10:15:00Z"))
	runner.tick(ctx, mustTime(t, "2025-06-02T11:00:05Z"))
	require.Equal(t, 1, starter.attempts)

	// No run was created, so the fire must not be recorded.
	sched, err := s.GetSchedule(ctx, "wf-1")
	require.NoError(t, err)
	assert.Nil(t, sched.LastFiredAt)
}

func TestRunner_IgnoresInactiveSchedules(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	require.NoError(t, s.UpsertSchedule(ctx, &store.Schedule{
		ID: "sch-1", WorkflowID: "wf-1", CronExpr: "* * * * *", Active: false,
	}))

	starter := &recordingStarter{}
	runner := NewRunner(s, starter, time.Minute, nil)

	runner.tick(ctx, mustTime(t, "2025-06-02T10:15:00Z"))
	runner.tick(ctx, mustTime(t, "2025-06-02T10:16:00Z"))
	assert.Zero(t, starter.count())
}
