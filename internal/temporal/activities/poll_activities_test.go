package activities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/contentive/topic-analysis-service/internal/classifier"
	"github.com/contentive/topic-analysis-service/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestPollAnalysis(t *testing.T) {
	t.Run("reports readiness and records progress", func(t *testing.T) {
		stateRepo := new(mockStateRepository)
		class := new(mockClassifier)

		stateRepo.On("CurrentRequestID", mock.Anything).Return("req-1", nil)
		class.On("PollAnalysis", mock.Anything, "req-1").Return(&classifier.PollStatus{
			Ready:        true,
			Analyzed:     250,
			ContentCount: 250,
			Percent:      floatPtr(100),
		}, nil)
		stateRepo.On("SetStageProgress", mock.Anything, "req-1", domain.StageAnalyzing,
			domain.StageProgress{Completed: 250, Total: 250}).Return(nil)

		acts := NewPollActivities(stateRepo, class, nil)
		env := newActivityEnv(t)
		env.RegisterActivity(acts.PollAnalysis)

		val, err := env.ExecuteActivity(acts.PollAnalysis, PollAnalysisInput{RequestID: "req-1"})
		require.NoError(t, err)

		var out PollAnalysisOutput
		require.NoError(t, val.Get(&out))
		assert.True(t, out.Ready)
		assert.Equal(t, float64(100), out.Progress)
		assert.Equal(t, 250, out.Analyzed)

		stateRepo.AssertExpectations(t)
		class.AssertExpectations(t)
	})

	t.Run("caches page counts when the classifier reports them", func(t *testing.T) {
		stateRepo := new(mockStateRepository)
		class := new(mockClassifier)

		stateRepo.On("CurrentRequestID", mock.Anything).Return("req-1", nil)
		class.On("PollAnalysis", mock.Anything, "req-1").Return(&classifier.PollStatus{
			Ready:               true,
			Analyzed:            100,
			ContentCount:        100,
			Percentage:          floatPtr(100),
			CustomerIDPageCount: intPtr(3),
			EntityPageCount:     intPtr(2),
		}, nil)
		stateRepo.On("SetPageCounts", mock.Anything, "req-1", intPtr(3), intPtr(2)).Return(nil)
		stateRepo.On("SetStageProgress", mock.Anything, "req-1", domain.StageAnalyzing, mock.Anything).Return(nil)

		acts := NewPollActivities(stateRepo, class, nil)
		env := newActivityEnv(t)
		env.RegisterActivity(acts.PollAnalysis)

		val, err := env.ExecuteActivity(acts.PollAnalysis, PollAnalysisInput{RequestID: "req-1"})
		require.NoError(t, err)

		var out PollAnalysisOutput
		require.NoError(t, val.Get(&out))
		assert.True(t, out.Ready)
		stateRepo.AssertExpectations(t)
	})

	t.Run("stands down before calling the classifier when superseded", func(t *testing.T) {
		stateRepo := new(mockStateRepository)
		class := new(mockClassifier)

		stateRepo.On("CurrentRequestID", mock.Anything).Return("req-9", nil)

		acts := NewPollActivities(stateRepo, class, nil)
		env := newActivityEnv(t)
		env.RegisterActivity(acts.PollAnalysis)

		val, err := env.ExecuteActivity(acts.PollAnalysis, PollAnalysisInput{RequestID: "req-1"})
		require.NoError(t, err)

		var out PollAnalysisOutput
		require.NoError(t, val.Get(&out))
		assert.True(t, out.Stale)

		class.AssertNotCalled(t, "PollAnalysis", mock.Anything, mock.Anything)
	})

	t.Run("reports in-flight progress when not ready", func(t *testing.T) {
		stateRepo := new(mockStateRepository)
		class := new(mockClassifier)

		stateRepo.On("CurrentRequestID", mock.Anything).Return("req-1", nil)
		class.On("PollAnalysis", mock.Anything, "req-1").Return(&classifier.PollStatus{
			Ready:        false,
			Analyzed:     40,
			ContentCount: 100,
			Percent:      floatPtr(40),
		}, nil)
		stateRepo.On("SetStageProgress", mock.Anything, "req-1", domain.StageAnalyzing,
			domain.StageProgress{Completed: 40, Total: 100}).Return(nil)

		acts := NewPollActivities(stateRepo, class, nil)
		env := newActivityEnv(t)
		env.RegisterActivity(acts.PollAnalysis)

		val, err := env.ExecuteActivity(acts.PollAnalysis, PollAnalysisInput{RequestID: "req-1"})
		require.NoError(t, err)

		var out PollAnalysisOutput
		require.NoError(t, val.Get(&out))
		assert.False(t, out.Ready)
		assert.Equal(t, float64(40), out.Progress)
	})
}
