package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		subject  Subject
		expected string
	}{
		{
			name:     "primary name wins",
			subject:  Subject{Name: "Ada Lovelace", NLName: "Ada", KGName: "ada-kg"},
			expected: "Ada Lovelace",
		},
		{
			name:     "localized name used when primary empty",
			subject:  Subject{NLName: "A", KGName: "B"},
			expected: "A",
		},
		{
			name:     "knowledge-graph name used when first two empty",
			subject:  Subject{KGName: "B", WikibaseName: "C"},
			expected: "B",
		},
		{
			name:     "wikibase name is last fallback",
			subject:  Subject{WikibaseName: "Q42"},
			expected: "Q42",
		},
		{
			name:     "all candidates empty",
			subject:  Subject{ExternalID: "ext-1"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.subject.DisplayName())
		})
	}
}

func TestSubjectReconcilable(t *testing.T) {
	tests := []struct {
		name     string
		subject  Subject
		expected bool
	}{
		{
			name:     "id and name present",
			subject:  Subject{ExternalID: "ext-1", Name: "Topic"},
			expected: true,
		},
		{
			name:     "missing external id",
			subject:  Subject{Name: "Topic"},
			expected: false,
		},
		{
			name:     "all names empty",
			subject:  Subject{ExternalID: "ext-1"},
			expected: false,
		},
		{
			name:     "fallback name suffices",
			subject:  Subject{ExternalID: "ext-1", WikibaseName: "Q1"},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.subject.Reconcilable())
		})
	}
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		pageSize int
		expected int
	}{
		{name: "exact multiple", total: 100, pageSize: 50, expected: 2},
		{name: "remainder adds a page", total: 137, pageSize: 50, expected: 3},
		{name: "single partial page", total: 7, pageSize: 50, expected: 1},
		{name: "zero total", total: 0, pageSize: 50, expected: 0},
		{name: "zero page size", total: 10, pageSize: 0, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PageCount(tt.total, tt.pageSize))
		})
	}
}

func TestPageOffset(t *testing.T) {
	// 137 items at page size 50: the third page requests offset 100.
	assert.Equal(t, 0, PageOffset(1, 50))
	assert.Equal(t, 50, PageOffset(2, 50))
	assert.Equal(t, 100, PageOffset(3, 50))
	assert.Equal(t, 0, PageOffset(0, 50))
}

func TestRenderedText(t *testing.T) {
	item := &ContentItem{
		Body: "main body",
		Extra: map[string]string{
			"summary": "a summary",
			"empty":   "",
		},
	}

	assert.Equal(t, "main body", item.RenderedText(nil))
	assert.Equal(t, "main body\n\na summary", item.RenderedText([]string{"summary", "empty", "missing"}))
}

func TestIsValidStageTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     Stage
		to       Stage
		expected bool
	}{
		{name: "sending to analyzing", from: StageSending, to: StageAnalyzing, expected: true},
		{name: "analyzing to applying", from: StageAnalyzing, to: StageApplying, expected: true},
		{name: "applying to complete", from: StageApplying, to: StageComplete, expected: true},
		{name: "same stage is idempotent", from: StageApplying, to: StageApplying, expected: true},
		{name: "skipping forward allowed", from: StageSending, to: StageApplying, expected: true},
		{name: "no going back", from: StageComplete, to: StageSending, expected: false},
		{name: "unknown stage", from: Stage("bogus"), to: StageComplete, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidStageTransition(tt.from, tt.to))
		})
	}
}

func TestProgressRecordBlocksInitiate(t *testing.T) {
	now := time.Now().UTC()

	t.Run("active stage blocks", func(t *testing.T) {
		rec := &ProgressRecord{Stage: StageApplying}
		assert.True(t, rec.BlocksInitiate(now))
	})

	t.Run("complete within grace window blocks", func(t *testing.T) {
		done := now.Add(-30 * time.Second)
		rec := &ProgressRecord{Stage: StageComplete, CompletedAt: &done}
		assert.True(t, rec.BlocksInitiate(now))
	})

	t.Run("complete past grace window allows", func(t *testing.T) {
		done := now.Add(-2 * time.Minute)
		rec := &ProgressRecord{Stage: StageComplete, CompletedAt: &done}
		assert.False(t, rec.BlocksInitiate(now))
	})
}

func TestProgressRecordReadyForCleanup(t *testing.T) {
	now := time.Now().UTC()

	t.Run("not complete never cleans up", func(t *testing.T) {
		rec := &ProgressRecord{Stage: StageAnalyzing}
		assert.False(t, rec.ReadyForCleanup(now))
	})

	t.Run("within cleanup window keeps record", func(t *testing.T) {
		done := now.Add(-10 * time.Second)
		rec := &ProgressRecord{Stage: StageComplete, CompletedAt: &done}
		assert.False(t, rec.ReadyForCleanup(now))
	})

	t.Run("past cleanup window deletes", func(t *testing.T) {
		done := now.Add(-CleanupGraceWindow)
		rec := &ProgressRecord{Stage: StageComplete, CompletedAt: &done}
		assert.True(t, rec.ReadyForCleanup(now))
	})
}

func TestTopicMergeSubject(t *testing.T) {
	subject := &Subject{
		ExternalID:  "ext-1",
		Name:        "Quantum Computing",
		Description: "computation with qubits",
		CrossRefs:   map[string]string{"wikidata": "Q412"},
		SchemaTypes: []string{"Thing"},
	}

	topic := NewTopic(subject)
	require.NotNil(t, topic.ExternalID)
	assert.Equal(t, "ext-1", *topic.ExternalID)
	assert.Equal(t, "Quantum Computing", topic.Name)

	t.Run("identical subject changes nothing", func(t *testing.T) {
		assert.False(t, topic.MergeSubject(subject))
	})

	t.Run("new metadata merges", func(t *testing.T) {
		updated := &Subject{
			ExternalID:  "ext-1",
			Name:        "Quantum Computing",
			Description: "computation exploiting quantum mechanics",
			CrossRefs:   map[string]string{"wikidata": "Q412", "freebase": "/m/0hb1x"},
		}
		assert.True(t, topic.MergeSubject(updated))
		assert.Equal(t, "computation exploiting quantum mechanics", topic.Description)
		assert.Equal(t, "/m/0hb1x", topic.CrossRefs["freebase"])
	})

	t.Run("empty fields never clear local values", func(t *testing.T) {
		assert.False(t, topic.MergeSubject(&Subject{ExternalID: "ext-1", Name: "Quantum Computing"}))
		assert.NotEmpty(t, topic.Description)
	})
}

func TestErrorUnwrapping(t *testing.T) {
	assert.True(t, errors.Is(NewNotFoundError("topic", "t-1"), ErrNotFound))
	assert.True(t, errors.Is(NewAlreadyExistsError("topic", "t-1"), ErrAlreadyExists))
	assert.True(t, errors.Is(NewValidationError("filter", "bad"), ErrInvalidInput))
	assert.True(t, errors.Is(NewStateConflictError("initiate", "already running"), ErrRequestActive))

	var apiErr *ExternalAPIError
	err := NewExternalAPIError("/poll/analysis", 503, "unavailable", ErrServiceUnavailable)
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, errors.Is(err, ErrServiceUnavailable))
}
