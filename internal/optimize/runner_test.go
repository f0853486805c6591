package optimize

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demandcast/optimizer/internal/ai"
	"github.com/demandcast/optimizer/internal/ai/mock"
	"github.com/demandcast/optimizer/internal/forecast"
	"github.com/demandcast/optimizer/internal/store"
	"github.com/demandcast/optimizer/pkg/models"
)

// claim moves a pending job to running, as the scheduler does before launch.
func claim(t *testing.T, st store.Store, job *models.Job) {
	t.Helper()
	require.NoError(t, st.UpdateJobStatus(context.Background(), job.ID, models.JobStatusRunning,
		store.WithProgress(1)))
}

func newTestRunner(st store.Store, provider ai.Provider) *Runner {
	return NewRunner(st, nopCache{}, forecast.NewRegistry(), provider, time.Second)
}

func TestRunnerGridJobCompletes(t *testing.T) {
	st, ds := newSeededStore(t, "SKU-1")
	runner := newTestRunner(st, mock.NewMockProvider())
	ctx := context.Background()

	job := newPendingJob(t, st, ds, "SKU-1", "exponential_smoothing", models.MethodGrid)
	claim(t, st, job)
	runner.Run(ctx, job)

	stored, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.CompletedAt)

	require.NotNil(t, stored.Result)
	assert.Contains(t, stored.Result.Parameters, "alpha")
	assert.Empty(t, stored.Result.Provider, "grid results carry no provider")
	assert.NotEmpty(t, stored.Result.Reasoning)
}

func TestRunnerAIJobUsesProvider(t *testing.T) {
	st, ds := newSeededStore(t, "SKU-1")
	runner := newTestRunner(st, mock.NewMockProvider())
	ctx := context.Background()

	job := newPendingJob(t, st, ds, "SKU-1", "holt", models.MethodAI)
	claim(t, st, job)
	runner.Run(ctx, job)

	stored, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)

	require.NotNil(t, stored.Result)
	assert.Equal(t, "mock", stored.Result.Provider)
	assert.Contains(t, stored.Result.Parameters, "alpha")
	assert.Contains(t, stored.Result.Parameters, "beta")
}

func TestRunnerAIProviderFailureMarksJobFailed(t *testing.T) {
	st, ds := newSeededStore(t, "SKU-1")
	runner := newTestRunner(st, mock.NewFailingProvider(ai.ErrProviderUnavailable))
	ctx := context.Background()

	job := newPendingJob(t, st, ds, "SKU-1", "holt", models.MethodAI)
	claim(t, st, job)
	runner.Run(ctx, job)

	stored, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "ai optimization")
	require.NotNil(t, stored.CompletedAt)
}

func TestRunnerUnknownModelFails(t *testing.T) {
	st, ds := newSeededStore(t, "SKU-1")
	runner := newTestRunner(st, mock.NewMockProvider())
	ctx := context.Background()

	job := newPendingJob(t, st, ds, "SKU-1", "arima", models.MethodGrid)
	claim(t, st, job)
	runner.Run(ctx, job)

	stored, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "not registered")
}

func TestRunnerEmbeddedSeriesPayload(t *testing.T) {
	st, ds := newSeededStore(t) // no series rows at all
	runner := newTestRunner(st, mock.NewMockProvider())
	ctx := context.Background()

	job := newPendingJob(t, st, ds, "SKU-INLINE", "moving_average", models.MethodGrid)
	points := make([]models.SeriesPoint, 0, 12)
	for i := 0; i < 12; i++ {
		points = append(points, models.SeriesPoint{Bucket: i, Quantity: float64(50 + i)})
	}
	job.Payload = models.JobPayload{Variant: models.PayloadVariantSeries, Points: points}
	claim(t, st, job)
	runner.Run(ctx, job)

	stored, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
}

func TestRunnerMissingSeriesFails(t *testing.T) {
	st, ds := newSeededStore(t) // dataset exists, no series rows
	runner := newTestRunner(st, mock.NewMockProvider())
	ctx := context.Background()

	job := newPendingJob(t, st, ds, "SKU-EMPTY", "moving_average", models.MethodGrid)
	claim(t, st, job)
	runner.Run(ctx, job)

	stored, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "resolving series")
}

func TestRunnerRecoversFromProviderPanic(t *testing.T) {
	st, ds := newSeededStore(t, "SKU-1")
	provider := &mock.MockProvider{
		Name_: "mock-panicking",
		OptimizeFunc: func(context.Context, ai.OptimizeRequest) (ai.OptimizeResponse, error) {
			panic("provider blew up")
		},
	}
	runner := newTestRunner(st, provider)
	ctx := context.Background()

	job := newPendingJob(t, st, ds, "SKU-1", "holt", models.MethodAI)
	claim(t, st, job)
	runner.Run(ctx, job)

	stored, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "panic")
}

func TestRunnerCancelledContextStillWritesTerminalState(t *testing.T) {
	st, ds := newSeededStore(t, "SKU-1")
	runner := newTestRunner(st, mock.NewMockProvider())

	job := newPendingJob(t, st, ds, "SKU-1", "moving_average", models.MethodGrid)
	claim(t, st, job)

	// Simulate a shutdown racing the job: the run context is already dead.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner.Run(ctx, job)

	stored, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsTerminal(), "job must not be left running, got %q", stored.Status)
}
