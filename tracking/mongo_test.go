package tracking

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Set FIREAREA_MONGO_URI (e.g. mongodb://localhost:27017) to run against a live server.
func TestMongoStore_RunLifecycle(t *testing.T) {
	uri := os.Getenv("FIREAREA_MONGO_URI")
	if uri == "" {
		t.Skip("FIREAREA_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := OpenMongo(ctx, uri, "firearea_test_"+uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.experiments.Database().Drop(context.Background())
		_ = s.Close()
	})

	exp, err := s.GetOrCreateExperiment(ctx, "experiment 1, validation set")
	require.NoError(t, err)
	again, err := s.GetOrCreateExperiment(ctx, "experiment 1, validation set")
	require.NoError(t, err)
	assert.Equal(t, exp.ID, again.ID)

	var ids []string
	for range 2 {
		run, err := s.CreateRun(ctx, exp.ID, "")
		require.NoError(t, err)
		require.NoError(t, s.LogParams(ctx, run.ID, map[string]string{"epochs": "50"}))
		require.NoError(t, s.LogMetrics(ctx, run.ID, map[string]float64{"RMSE": 3.5}))
		require.NoError(t, s.LogModel(ctx, run.ID, Artifact{Name: "model", Envelope: []byte(`{}`)}))
		require.NoError(t, s.FinishRun(ctx, run.ID, StatusFinished))
		ids = append(ids, run.ID)
	}

	runs, err := s.ListRuns(ctx, exp.Name)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.NotEqual(t, runs[0].ID, runs[1].ID)

	got, err := s.GetRun(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, got.Status)
	assert.Equal(t, "50", got.Params["epochs"])
	assert.InDelta(t, 3.5, got.Metrics["RMSE"], 1e-12)
	require.Len(t, got.Artifacts, 1)

	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
