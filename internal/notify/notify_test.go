package notify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoop(t *testing.T) {
	t.Parallel()

	require.NoError(t, Noop{}.CategoryDone(context.Background(), Event{}))
}

func TestMemoryRecordsEvents(t *testing.T) {
	t.Parallel()

	mem := NewMemory()
	first := Event{RunID: "run-1", Country: "us", Category: "Books", GenreID: 6018, Rows: 50, Status: StatusOK}
	second := Event{RunID: "run-1", Country: "us", Category: "Weather", GenreID: 6001, Status: StatusEmpty}

	require.NoError(t, mem.CategoryDone(context.Background(), first))
	require.NoError(t, mem.CategoryDone(context.Background(), second))

	events := mem.Events()
	require.Len(t, events, 2)
	require.Equal(t, first, events[0])
	require.Equal(t, second, events[1])
}

func TestEventJSONShape(t *testing.T) {
	t.Parallel()

	event := Event{
		RunID:    "0d4cbc5e-1f33-4a7a-9f1e-1d2f3c4b5a60",
		Country:  "us",
		Category: "Books",
		GenreID:  6018,
		Rows:     50,
		URI:      "file:///data/charts/topchart_us_Books.csv",
		SHA256:   "deadbeef",
		Status:   StatusOK,
	}
	data, err := json.Marshal(event)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"run_id": "0d4cbc5e-1f33-4a7a-9f1e-1d2f3c4b5a60",
		"country": "us",
		"category": "Books",
		"genre_id": 6018,
		"rows": 50,
		"uri": "file:///data/charts/topchart_us_Books.csv",
		"sha256": "deadbeef",
		"status": "ok"
	}`, string(data))
}
