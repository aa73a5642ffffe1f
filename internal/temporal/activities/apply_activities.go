package activities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/contentive/topic-analysis-service/internal/classifier"
	"github.com/contentive/topic-analysis-service/internal/domain"
	"github.com/contentive/topic-analysis-service/internal/observability"
	"github.com/contentive/topic-analysis-service/internal/repository"
)

// ApplyActivities reconciles classifier results into the topic catalog and
// content assignments.
type ApplyActivities struct {
	contentRepo repository.ContentRepository
	topicRepo   repository.TopicRepository
	stateRepo   repository.StateRepository
	classifier  Classifier
	metrics     *observability.Metrics
}

// NewApplyActivities creates apply activities with the given dependencies.
func NewApplyActivities(
	contentRepo repository.ContentRepository,
	topicRepo repository.TopicRepository,
	stateRepo repository.StateRepository,
	classifierClient Classifier,
	metrics *observability.Metrics,
) *ApplyActivities {
	return &ApplyActivities{
		contentRepo: contentRepo,
		topicRepo:   topicRepo,
		stateRepo:   stateRepo,
		classifier:  classifierClient,
		metrics:     metrics,
	}
}

// ApplyResultPage fetches one page of classification results and applies it:
// subjects are resolved into the topic catalog, content items are linked to
// the resolved topics, and successfully processed items are stamped as
// analyzed. Per-item failures are collected and reported, never failing the
// page; a failed item is simply not stamped and shows up in
// FailedContentIDs.
func (a *ApplyActivities) ApplyResultPage(ctx context.Context, input ApplyResultPageInput) (*ApplyResultPageOutput, error) {
	logger := activity.GetLogger(ctx)
	start := time.Now()

	record, err := a.stateRepo.Get(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &ApplyResultPageOutput{Stale: true}, nil
		}
		return nil, fmt.Errorf("load progress record: %w", err)
	}
	if record.Request.RequestID != input.RequestID {
		logger.Warn("Tracked request changed, skipping result page",
			"requestID", input.RequestID,
			"page", input.Page)
		return &ApplyResultPageOutput{Stale: true}, nil
	}

	page, err := a.fetchPage(ctx, input, record)
	if err != nil {
		return nil, err
	}

	logger.Info("Applying result page",
		"requestID", input.RequestID,
		"page", input.Page,
		"posts", len(page.Posts),
		"subjects", len(page.Entities))

	out := &ApplyResultPageOutput{HasNextPage: page.HasNextPage}

	// Resolve every subject referenced by this page's posts once, then link
	// posts against the resolved map.
	topicIDs := a.resolveSubjects(ctx, page, out)

	for _, post := range page.Posts {
		activity.RecordHeartbeat(ctx, post.CustomerID)
		if err := a.applyPost(ctx, post, page.Entities, topicIDs); err != nil {
			logger.Warn("Failed to apply result for content item",
				"contentID", post.CustomerID,
				"error", err)
			out.FailedContentIDs = append(out.FailedContentIDs, post.CustomerID)
			if a.metrics != nil {
				a.metrics.RecordItemFailed("apply")
			}
			continue
		}
		out.Applied++
	}

	if out.Applied > 0 {
		applied := make([]int64, 0, out.Applied)
		for _, post := range page.Posts {
			if !containsID(out.FailedContentIDs, post.CustomerID) {
				applied = append(applied, post.CustomerID)
			}
		}
		if err := a.contentRepo.MarkAnalyzed(ctx, applied, time.Now().UTC()); err != nil {
			return nil, fmt.Errorf("stamp analyzed items: %w", err)
		}
	}

	progress := domain.StageProgress{
		Completed:   input.AppliedSoFar + out.Applied,
		Total:       record.Request.ContentCount,
		CurrentPage: input.Page,
	}
	if err := a.stateRepo.SetStageProgress(ctx, input.RequestID, domain.StageApplying, progress); err != nil {
		if errors.Is(err, domain.ErrStaleRequest) {
			out.Stale = true
			return out, nil
		}
		return nil, fmt.Errorf("record applying progress: %w", err)
	}

	if a.metrics != nil {
		a.metrics.RecordResultPageApplied(time.Since(start).Seconds())
	}

	logger.Info("Result page applied",
		"requestID", input.RequestID,
		"page", input.Page,
		"applied", out.Applied,
		"failed", len(out.FailedContentIDs),
		"topicsCreated", out.TopicsCreated,
		"hasNextPage", out.HasNextPage)

	return out, nil
}

// fetchPage retrieves one result page, joining the legacy split endpoints
// into the unified shape when the request predates the combined endpoint.
func (a *ApplyActivities) fetchPage(ctx context.Context, input ApplyResultPageInput, record *domain.ProgressRecord) (*classifier.ResultPage, error) {
	if !input.Legacy {
		page, err := a.classifier.FetchResultPage(ctx, input.RequestID, input.Page)
		if err != nil {
			return nil, fmt.Errorf("fetch result page %d: %w", input.Page, err)
		}
		return page, nil
	}

	idsPage, err := a.classifier.FetchContentIDsPage(ctx, input.RequestID, input.Page)
	if err != nil {
		return nil, fmt.Errorf("fetch content id page %d: %w", input.Page, err)
	}

	entityPages := 0
	if record.EntityPageCount != nil {
		entityPages = *record.EntityPageCount
	}

	entities := make(map[string]domain.Subject)
	for p := 1; p <= entityPages; p++ {
		activity.RecordHeartbeat(ctx, fmt.Sprintf("entities-%d", p))
		subjectsPage, err := a.classifier.FetchSubjectsPage(ctx, input.RequestID, p)
		if err != nil {
			return nil, fmt.Errorf("fetch subject page %d: %w", p, err)
		}
		for id, subject := range subjectsPage.Entities {
			entities[id] = subject
		}
		if !subjectsPage.HasNextPage {
			break
		}
	}

	return &classifier.ResultPage{
		Posts:       idsPage.Posts,
		Entities:    entities,
		PageCount:   idsPage.PageCount,
		HasNextPage: idsPage.HasNextPage,
	}, nil
}

// resolveSubjects maps every subject on the page to a catalog topic ID,
// creating or repairing topics as needed. Subjects that cannot be resolved
// are logged and left out of the map; posts referencing them simply skip
// that assignment.
func (a *ApplyActivities) resolveSubjects(ctx context.Context, page *classifier.ResultPage, out *ApplyResultPageOutput) map[string]uuid.UUID {
	logger := activity.GetLogger(ctx)
	resolved := make(map[string]uuid.UUID, len(page.Entities))

	for externalID, subject := range page.Entities {
		subject := subject
		if !subject.Reconcilable() {
			logger.Warn("Skipping subject without usable identity",
				"externalID", externalID,
				"name", subject.DisplayName())
			continue
		}

		topic, created, repaired, err := a.resolveSubject(ctx, &subject)
		if err != nil {
			logger.Warn("Failed to resolve subject",
				"externalID", externalID,
				"name", subject.DisplayName(),
				"error", err)
			if a.metrics != nil {
				a.metrics.RecordItemFailed("resolve_subject")
			}
			continue
		}

		switch {
		case created:
			out.TopicsCreated++
			if a.metrics != nil {
				a.metrics.RecordTopicCreated()
			}
		case repaired:
			out.TopicsRepaired++
			if a.metrics != nil {
				a.metrics.RecordTopicRepaired()
			}
		default:
			out.TopicsMatched++
			if a.metrics != nil {
				a.metrics.RecordTopicMatched()
			}
		}

		resolved[externalID] = topic.ID
	}

	return resolved
}

// resolveSubject finds or creates the catalog topic for one subject.
// Resolution order is external ID, then name with external ID repair, then
// creation. Losing a creation race falls back to the winner's row.
func (a *ApplyActivities) resolveSubject(ctx context.Context, subject *domain.Subject) (topic *domain.Topic, created, repaired bool, err error) {
	topic, err = a.topicRepo.GetByExternalID(ctx, subject.ExternalID)
	if err == nil {
		if topic.MergeSubject(subject) {
			if updateErr := a.topicRepo.UpdateMetadata(ctx, topic); updateErr != nil {
				return nil, false, false, fmt.Errorf("update topic metadata: %w", updateErr)
			}
		}
		return topic, false, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, false, fmt.Errorf("lookup topic by external id: %w", err)
	}

	topic, err = a.topicRepo.GetByName(ctx, subject.DisplayName())
	if err == nil && topic.ExternalID == nil {
		// Name match with no external id on file: backfill it. A topic that
		// already carries a different external id is a distinct entity and
		// never repaired; that case falls through to creation below.
		if attachErr := a.topicRepo.AttachExternalID(ctx, topic.ID, subject.ExternalID); attachErr != nil {
			if errors.Is(attachErr, domain.ErrAlreadyExists) {
				winner, getErr := a.topicRepo.GetByExternalID(ctx, subject.ExternalID)
				if getErr != nil {
					return nil, false, false, fmt.Errorf("reload topic after repair conflict: %w", getErr)
				}
				return winner, false, false, nil
			}
			return nil, false, false, fmt.Errorf("attach external id: %w", attachErr)
		}
		externalID := subject.ExternalID
		topic.ExternalID = &externalID
		if topic.MergeSubject(subject) {
			if updateErr := a.topicRepo.UpdateMetadata(ctx, topic); updateErr != nil {
				return nil, false, false, fmt.Errorf("update topic metadata: %w", updateErr)
			}
		}
		return topic, false, true, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, false, false, fmt.Errorf("lookup topic by name: %w", err)
	}

	topic = domain.NewTopic(subject)
	if createErr := a.topicRepo.Create(ctx, topic); createErr != nil {
		if errors.Is(createErr, domain.ErrAlreadyExists) {
			winner, getErr := a.topicRepo.GetByExternalID(ctx, subject.ExternalID)
			if getErr != nil {
				return nil, false, false, fmt.Errorf("reload topic after create conflict: %w", getErr)
			}
			return winner, false, false, nil
		}
		return nil, false, false, fmt.Errorf("create topic: %w", createErr)
	}
	return topic, true, false, nil
}

// applyPost links one content item to the topics its result references,
// skipping assignments the item already carries.
func (a *ApplyActivities) applyPost(ctx context.Context, post classifier.ResultPost, entities map[string]domain.Subject, topicIDs map[string]uuid.UUID) error {
	existing, err := a.contentRepo.GetTopicIDs(ctx, post.CustomerID)
	if err != nil {
		return fmt.Errorf("load existing assignments: %w", err)
	}
	existingSet := make(map[uuid.UUID]struct{}, len(existing))
	for _, id := range existing {
		existingSet[id] = struct{}{}
	}

	for _, externalID := range post.EntityIDs {
		topicID, ok := topicIDs[externalID]
		if !ok {
			continue
		}
		if _, dup := existingSet[topicID]; dup {
			if a.metrics != nil {
				a.metrics.RecordAssociationSkipped()
			}
			continue
		}

		assignment := domain.TopicAssignment{ContentID: post.CustomerID}
		if subject, found := entities[externalID]; found {
			if len(subject.Contents) > 0 {
				for _, sa := range subject.Contents {
					if sa.ContentID == post.CustomerID {
						assignment.Salience = sa.Salience
						assignment.Category = sa.Category
						break
					}
				}
			}
		}

		created, err := a.contentRepo.AssignTopic(ctx, post.CustomerID, topicID, assignment)
		if err != nil {
			return fmt.Errorf("assign topic %s: %w", topicID, err)
		}
		if a.metrics != nil {
			if created {
				a.metrics.RecordAssociationCreated()
			} else {
				a.metrics.RecordAssociationSkipped()
			}
		}
		existingSet[topicID] = struct{}{}
	}

	return nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
