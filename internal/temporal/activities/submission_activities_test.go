package activities

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/contentive/topic-analysis-service/internal/classifier"
	"github.com/contentive/topic-analysis-service/internal/domain"
)

func newActivityEnv(t *testing.T) *testsuite.TestActivityEnvironment {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	return suite.NewTestActivityEnvironment()
}

func TestSubmitPage(t *testing.T) {
	filter := domain.ContentFilter{ContentTypes: []string{"article"}}

	t.Run("submits page and records progress", func(t *testing.T) {
		contentRepo := new(mockContentRepository)
		stateRepo := new(mockStateRepository)
		class := new(mockClassifier)

		items := []*domain.ContentItem{
			{ID: 1, Title: "First", Body: "Body one", URL: "https://example.com/1"},
			{ID: 2, Title: "Second", Body: "Body two", URL: "https://example.com/2"},
		}
		payloads := []classifier.ContentPayload{
			{URL: "https://example.com/1", Title: "First", Text: "Body one"},
			{URL: "https://example.com/2", Title: "Second", Text: "Body two"},
		}

		stateRepo.On("CurrentRequestID", mock.Anything).Return("req-1", nil)
		contentRepo.On("PageByFilter", mock.Anything, filter, 2, 50).Return(items, nil)
		class.On("SendPage", mock.Anything, "req-1", 2, 4, payloads).Return(nil)
		stateRepo.On("SetStageProgress", mock.Anything, "req-1", domain.StageSending,
			domain.StageProgress{Completed: 2, Total: 4, CurrentPage: 2}).Return(nil)

		acts := NewSubmissionActivities(contentRepo, stateRepo, class, nil)
		env := newActivityEnv(t)
		env.RegisterActivity(acts.SubmitPage)

		val, err := env.ExecuteActivity(acts.SubmitPage, SubmitPageInput{
			RequestID: "req-1",
			Filter:    filter,
			Page:      2,
			PageCount: 4,
			PageSize:  50,
		})
		require.NoError(t, err)

		var out SubmitPageOutput
		require.NoError(t, val.Get(&out))
		assert.Equal(t, 2, out.ItemsSent)
		assert.False(t, out.Stale)

		contentRepo.AssertExpectations(t)
		stateRepo.AssertExpectations(t)
		class.AssertExpectations(t)
	})

	t.Run("stands down when another request is tracked", func(t *testing.T) {
		contentRepo := new(mockContentRepository)
		stateRepo := new(mockStateRepository)
		class := new(mockClassifier)

		stateRepo.On("CurrentRequestID", mock.Anything).Return("req-2", nil)

		acts := NewSubmissionActivities(contentRepo, stateRepo, class, nil)
		env := newActivityEnv(t)
		env.RegisterActivity(acts.SubmitPage)

		val, err := env.ExecuteActivity(acts.SubmitPage, SubmitPageInput{
			RequestID: "req-1",
			Filter:    filter,
			Page:      1,
			PageCount: 1,
			PageSize:  50,
		})
		require.NoError(t, err)

		var out SubmitPageOutput
		require.NoError(t, val.Get(&out))
		assert.True(t, out.Stale)

		class.AssertNotCalled(t, "SendPage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		contentRepo.AssertNotCalled(t, "PageByFilter", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("treats a deleted record as stale", func(t *testing.T) {
		contentRepo := new(mockContentRepository)
		stateRepo := new(mockStateRepository)
		class := new(mockClassifier)

		stateRepo.On("CurrentRequestID", mock.Anything).Return("", domain.ErrNotFound)

		acts := NewSubmissionActivities(contentRepo, stateRepo, class, nil)
		env := newActivityEnv(t)
		env.RegisterActivity(acts.SubmitPage)

		val, err := env.ExecuteActivity(acts.SubmitPage, SubmitPageInput{
			RequestID: "req-1",
			Filter:    filter,
			Page:      1,
			PageCount: 1,
			PageSize:  50,
		})
		require.NoError(t, err)

		var out SubmitPageOutput
		require.NoError(t, val.Get(&out))
		assert.True(t, out.Stale)
	})

	t.Run("fails when the classifier rejects the page", func(t *testing.T) {
		contentRepo := new(mockContentRepository)
		stateRepo := new(mockStateRepository)
		class := new(mockClassifier)

		stateRepo.On("CurrentRequestID", mock.Anything).Return("req-1", nil)
		contentRepo.On("PageByFilter", mock.Anything, filter, 1, 50).
			Return([]*domain.ContentItem{{ID: 1, Title: "Only"}}, nil)
		class.On("SendPage", mock.Anything, "req-1", 1, 1, mock.Anything).
			Return(errors.New("service unavailable"))

		acts := NewSubmissionActivities(contentRepo, stateRepo, class, nil)
		env := newActivityEnv(t)
		env.RegisterActivity(acts.SubmitPage)

		_, err := env.ExecuteActivity(acts.SubmitPage, SubmitPageInput{
			RequestID: "req-1",
			Filter:    filter,
			Page:      1,
			PageCount: 1,
			PageSize:  50,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "send page")
	})

	t.Run("appends extra body fields to the analyzed text", func(t *testing.T) {
		contentRepo := new(mockContentRepository)
		stateRepo := new(mockStateRepository)
		class := new(mockClassifier)

		items := []*domain.ContentItem{
			{ID: 7, Title: "With extras", Body: "Body", Extra: map[string]string{"summary": "A summary"}},
		}

		stateRepo.On("CurrentRequestID", mock.Anything).Return("req-1", nil)
		contentRepo.On("PageByFilter", mock.Anything, filter, 1, 50).Return(items, nil)
		class.On("SendPage", mock.Anything, "req-1", 1, 1,
			mock.MatchedBy(func(payloads []classifier.ContentPayload) bool {
				return len(payloads) == 1 && payloads[0].Text == "Body\n\nA summary"
			})).Return(nil)
		stateRepo.On("SetStageProgress", mock.Anything, "req-1", domain.StageSending, mock.Anything).Return(nil)

		acts := NewSubmissionActivities(contentRepo, stateRepo, class, nil)
		env := newActivityEnv(t)
		env.RegisterActivity(acts.SubmitPage)

		_, err := env.ExecuteActivity(acts.SubmitPage, SubmitPageInput{
			RequestID:       "req-1",
			Filter:          filter,
			Page:            1,
			PageCount:       1,
			PageSize:        50,
			ExtraBodyFields: []string{"summary"},
		})
		require.NoError(t, err)
		class.AssertExpectations(t)
	})
}
