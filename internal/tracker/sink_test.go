package tracker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"hyperwatch/internal/bundle"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	s := Summary{
		Player:     alice,
		Range:      bundle.MatchRange{First: 5, Last: 7},
		Games:      3,
		Mode:       ModeMulti,
		Kills:      4,
		KDChange:   "+0.01",
		TimePlayed: 90,
		CareerBest: true,
	}
	require.NoError(t, sink.Publish(context.Background(), s))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "summary: session recorded", entry["msg"])
	assert.Equal(t, "summary", entry["component"])
	assert.Equal(t, "5-7", entry["range"])
	assert.Equal(t, "multi", entry["mode"])
	assert.NotContains(t, entry, "place")
	assert.Equal(t, float64(90*time.Second), entry["played"])
	assert.Equal(t, true, entry["career_best"])
}

func TestMultiSink(t *testing.T) {
	var delivered []string
	ok := SinkFunc(func(_ context.Context, s Summary) error {
		delivered = append(delivered, s.Player.Name)
		return nil
	})
	errA := errors.New("a failed")
	errB := errors.New("b failed")

	sink := MultiSink{
		SinkFunc(func(context.Context, Summary) error { return errA }),
		nil,
		ok,
		SinkFunc(func(context.Context, Summary) error { return errB }),
	}

	err := sink.Publish(context.Background(), Summary{Player: bob})
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, []string{"bob"}, delivered)

	assert.NoError(t, MultiSink{ok}.Publish(context.Background(), Summary{Player: alice}))
}
