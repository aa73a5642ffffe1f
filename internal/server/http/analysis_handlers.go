package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/contentive/topic-analysis-service/internal/domain"
	"github.com/contentive/topic-analysis-service/internal/temporal"
	"github.com/contentive/topic-analysis-service/internal/temporal/workflows"
)

const maxRequestBodySize = 1 << 20

// initiateRequest is the JSON request body for starting a bulk analysis.
type initiateRequest struct {
	ContentTypes  []string `json:"content_types,omitempty"`
	StartDate     *string  `json:"start_date,omitempty"`
	EndDate       *string  `json:"end_date,omitempty"`
	IncludeDrafts bool     `json:"include_drafts"`
	Reanalyze     bool     `json:"reanalyze"`
	OnlyTopicless bool     `json:"only_topicless"`
}

func (req *initiateRequest) toFilter() (domain.ContentFilter, error) {
	filter := domain.ContentFilter{
		ContentTypes:  req.ContentTypes,
		IncludeDrafts: req.IncludeDrafts,
		Reanalyze:     req.Reanalyze,
		OnlyTopicless: req.OnlyTopicless,
	}
	if req.StartDate != nil && *req.StartDate != "" {
		t, err := time.Parse(time.RFC3339, *req.StartDate)
		if err != nil {
			return filter, fmt.Errorf("invalid start_date format: expected RFC3339")
		}
		filter.StartDate = &t
	}
	if req.EndDate != nil && *req.EndDate != "" {
		t, err := time.Parse(time.RFC3339, *req.EndDate)
		if err != nil {
			return filter, fmt.Errorf("invalid end_date format: expected RFC3339")
		}
		filter.EndDate = &t
	}
	return filter, nil
}

// initiateAnalysis handles POST /api/v1/analysis/initiate. It counts the
// matching content, initiates a bulk run with the classifier, persists the
// singleton state row, and starts the analysis workflow. A second initiate
// while a request is active, or within the post-completion grace window,
// fails without mutating anything.
func (s *Server) initiateAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req initiateRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeFailure(w, http.StatusBadRequest, "invalid JSON request body")
			return
		}
	}

	filter, err := req.toFilter()
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(&filter); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid content filter")
		return
	}

	now := time.Now().UTC()
	if existing, getErr := s.stateRepo.Get(ctx); getErr == nil {
		if existing.BlocksInitiate(now) {
			writeFailure(w, http.StatusConflict, "an analysis is already in progress")
			return
		}
		// A completed record past its grace windows is leftover; clear it
		// before starting fresh.
		if delErr := s.stateRepo.Delete(ctx); delErr != nil {
			writeDomainError(w, delErr)
			return
		}
	} else if !errors.Is(getErr, domain.ErrNotFound) {
		writeDomainError(w, getErr)
		return
	}

	count, err := s.contentRepo.CountByFilter(ctx, filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if count == 0 {
		writeFailure(w, http.StatusBadRequest, "no content matches the filter")
		return
	}

	requestID, err := s.classifier.InitiateBulk(ctx, count)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	pageCount := domain.PageCount(count, s.analysisCfg.SubmissionPageSize)
	record := &domain.ProgressRecord{
		Request: domain.AnalysisRequest{
			RequestID:    requestID,
			Filter:       filter,
			ContentCount: count,
			CreatedAt:    now,
		},
		Stage:   domain.StageSending,
		Sending: domain.StageProgress{Total: pageCount},
	}
	if err := s.stateRepo.Create(ctx, record); err != nil {
		writeDomainError(w, err)
		return
	}

	workflowID, _, err := s.workflowClient.StartAnalysisWorkflow(ctx, requestID, s.analysisWorkflow, workflows.AnalysisWorkflowInput{
		RequestID:       requestID,
		Filter:          filter,
		ContentCount:    count,
		PageCount:       pageCount,
		PageSize:        s.analysisCfg.SubmissionPageSize,
		ExtraBodyFields: s.analysisCfg.ExtraBodyFields,
		PollInterval:    s.analysisCfg.PollInterval,
		MaxPollTime:     s.analysisCfg.MaxPollTime,
		Legacy:          s.legacyResults,
	})
	if err != nil {
		// Leave nothing behind for a workflow that never started.
		_ = s.stateRepo.Delete(ctx)
		writeDomainError(w, err)
		return
	}

	s.logger.Info().
		Str("request_id", requestID).
		Str("workflow_id", workflowID).
		Int("content_count", count).
		Int("page_count", pageCount).
		Msg("bulk analysis initiated")

	s.hub.Publish(StreamEvent{
		EventType:    "analysis_started",
		RequestID:    requestID,
		Stage:        string(domain.StageSending),
		ContentCount: count,
	})

	writeSuccess(w, http.StatusCreated, initiateData{
		RequestID:  requestID,
		TotalNodes: count,
		PageCount:  pageCount,
	})
}

// countContent handles GET /api/v1/analysis/count. The filter arrives as
// query parameters, mirroring the initiate body.
func (s *Server) countContent(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(&filter); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid content filter")
		return
	}

	count, err := s.contentRepo.CountByFilter(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, countData{Count: count})
}

// pollProgress handles GET /api/v1/analysis/poll. It returns the current
// progress snapshot, reconciles a stuck analyzing stage against the
// classifier, and after the post-completion grace window deletes the record
// and reports the idle shape.
func (s *Server) pollProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now().UTC()

	record, err := s.stateRepo.Get(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeSuccess(w, http.StatusOK, pollData{RequestID: nil})
			return
		}
		writeDomainError(w, err)
		return
	}

	if record.Stage == domain.StageComplete && record.ReadyForCleanup(now) {
		if err := s.stateRepo.Delete(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to clean up completed analysis state")
		} else {
			s.hub.Publish(StreamEvent{
				EventType: "analysis_cleared",
				RequestID: record.Request.RequestID,
			})
		}
		writeSuccess(w, http.StatusOK, pollData{RequestID: nil})
		return
	}

	if record.Stage == domain.StageAnalyzing {
		s.reconcileAnalyzing(r, record)
	}

	writeSuccess(w, http.StatusOK, recordToPollData(record))
}

// reconcileAnalyzing covers the window where the classifier finished but the
// workflow has not yet advanced the stage: if the classifier reports ready
// and no application progress exists, result application is started
// directly. Best effort; any failure leaves the workflow to catch up on its
// own.
func (s *Server) reconcileAnalyzing(r *http.Request, record *domain.ProgressRecord) {
	ctx := r.Context()
	requestID := record.Request.RequestID

	status, err := s.classifier.PollAnalysis(ctx, requestID)
	if err != nil || !status.Ready {
		return
	}
	if record.Applying.Completed > 0 || record.Applying.CurrentPage > 0 {
		return
	}

	_, _, err = s.workflowClient.StartApplyWorkflow(ctx, requestID, s.applyWorkflow, workflows.ApplyWorkflowInput{
		RequestID: requestID,
		Legacy:    s.legacyResults,
	})
	if err != nil && !temporal.IsWorkflowAlreadyStarted(err) {
		s.logger.Warn().Err(err).Str("request_id", requestID).Msg("failed to start result application from poll")
		return
	}
	s.logger.Info().Str("request_id", requestID).Msg("result application triggered from poll reconciliation")
}

// applyResults handles POST /api/v1/analysis/apply-results. Application is
// normally triggered by the analysis workflow; this is the manual fallback.
// The deterministic workflow ID makes duplicate triggers idempotent.
func (s *Server) applyResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	record, err := s.stateRepo.Get(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	requestID := record.Request.RequestID
	_, _, err = s.workflowClient.StartApplyWorkflow(ctx, requestID, s.applyWorkflow, workflows.ApplyWorkflowInput{
		RequestID: requestID,
		Legacy:    s.legacyResults,
	})
	if err != nil {
		if temporal.IsWorkflowAlreadyStarted(err) {
			writeSuccessMessage(w, http.StatusOK, "result application already running")
			return
		}
		writeDomainError(w, err)
		return
	}

	s.logger.Info().Str("request_id", requestID).Msg("result application triggered manually")
	writeSuccessMessage(w, http.StatusOK, "result application started")
}

// resetAnalysis handles POST /api/v1/analysis/reset. It cancels both
// workflows of the tracked request and deletes the state row. In-flight
// activities finish their current page and then stand down on their next
// stale-request check.
func (s *Server) resetAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	record, err := s.stateRepo.Get(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeSuccess(w, http.StatusOK, resetData{ClearedJobs: 0})
			return
		}
		writeDomainError(w, err)
		return
	}

	requestID := record.Request.RequestID
	cleared := 0
	for _, workflowID := range []string{
		temporal.AnalysisWorkflowID(requestID),
		temporal.ApplyWorkflowID(requestID),
	} {
		if cancelErr := s.workflowClient.CancelWorkflow(ctx, workflowID); cancelErr != nil {
			if !temporal.IsWorkflowNotFound(cancelErr) {
				s.logger.Warn().Err(cancelErr).Str("workflow_id", workflowID).Msg("failed to cancel workflow during reset")
			}
			continue
		}
		cleared++
	}

	if err := s.stateRepo.Delete(ctx); err != nil {
		writeDomainError(w, err)
		return
	}

	s.logger.Info().
		Str("request_id", requestID).
		Int("cleared_jobs", cleared).
		Msg("analysis reset")

	s.hub.Publish(StreamEvent{
		EventType: "analysis_reset",
		RequestID: requestID,
	})

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "analysis reset",
		Data:    resetData{ClearedJobs: cleared},
	})
}

// filterFromQuery builds a ContentFilter from query parameters.
func filterFromQuery(r *http.Request) (domain.ContentFilter, error) {
	q := r.URL.Query()
	filter := domain.ContentFilter{}

	if types := q.Get("content_types"); types != "" {
		for _, t := range strings.Split(types, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.ContentTypes = append(filter.ContentTypes, t)
			}
		}
	}
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid start_date format: expected RFC3339")
		}
		filter.StartDate = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid end_date format: expected RFC3339")
		}
		filter.EndDate = &t
	}

	var err error
	if filter.IncludeDrafts, err = parseBoolParam(q.Get("include_drafts")); err != nil {
		return filter, fmt.Errorf("invalid include_drafts: expected boolean")
	}
	if filter.Reanalyze, err = parseBoolParam(q.Get("reanalyze")); err != nil {
		return filter, fmt.Errorf("invalid reanalyze: expected boolean")
	}
	if filter.OnlyTopicless, err = parseBoolParam(q.Get("only_topicless")); err != nil {
		return filter, fmt.Errorf("invalid only_topicless: expected boolean")
	}

	return filter, nil
}

func parseBoolParam(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
