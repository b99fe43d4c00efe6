package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventcal/internal/ics"
	"eventcal/internal/model"
	"eventcal/internal/store"
)

func seeded() *store.Store {
	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.Local)
	return store.New(nil, model.Event{
		ID:        "a",
		Title:     "Review",
		Date:      time.Date(2025, 1, 6, 0, 0, 0, 0, time.Local),
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Category:  model.CategoryWork,
	})
}

func TestRunOnceWritesICS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "public", "calendar.ics")
	p := NewPublisher(seeded(), path)
	p.Now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, p.RunOnce())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	events, err := ics.Parse(strings.NewReader(string(data)))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Review", events[0].Title)
}

func TestRunOnceWithoutPath(t *testing.T) {
	assert.Error(t, NewPublisher(seeded(), "").RunOnce())
}

func TestStartRejectsBadSchedule(t *testing.T) {
	p := NewPublisher(seeded(), filepath.Join(t.TempDir(), "calendar.ics"))
	assert.Error(t, p.Start("every tuesday"))
}

func TestStartAndStop(t *testing.T) {
	p := NewPublisher(seeded(), filepath.Join(t.TempDir(), "calendar.ics"))
	require.NoError(t, p.Start("*/15 * * * *"))
	p.Stop()
}
