package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvery_AddsInterval(t *testing.T) {
	schedule := Every(30 * time.Minute)

	after := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, after.Add(30*time.Minute), schedule.Next(after))
	assert.Equal(t, "every 30m0s", schedule.String())
}

func TestCron_StandardExpression(t *testing.T) {
	schedule, err := Cron("*/15 * * * *")
	require.NoError(t, err)

	after := time.Date(2025, 6, 1, 12, 7, 30, 0, time.UTC)
	next := schedule.Next(after)
	assert.WithinDuration(t, time.Date(2025, 6, 1, 12, 15, 0, 0, time.UTC), next, 0)
	assert.Equal(t, "*/15 * * * *", schedule.String())
}

func TestCron_EveryDescriptor(t *testing.T) {
	schedule, err := Cron("@every 1h")
	require.NoError(t, err)

	after := time.Date(2025, 6, 1, 12, 7, 30, 0, time.UTC)
	assert.WithinDuration(t, after.Add(time.Hour), schedule.Next(after), 0)
}

func TestCron_InvalidExpression(t *testing.T) {
	_, err := Cron("not a cron line")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse cron expression")
}
