package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/contentive/topic-analysis-service/internal/domain"
	"github.com/contentive/topic-analysis-service/internal/temporal"
)

// envelope is the uniform response shape of all operator endpoints.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

type initiateData struct {
	RequestID  string `json:"request_id"`
	TotalNodes int    `json:"total_nodes"`
	PageCount  int    `json:"page_count"`
}

type countData struct {
	Count int `json:"count"`
}

type stageProgressData struct {
	Completed   int `json:"completed"`
	Total       int `json:"total"`
	CurrentPage int `json:"current_page,omitempty"`
}

// pollData is the poll snapshot. RequestID is a pointer so the idle shape
// serializes as request_id:null.
type pollData struct {
	RequestID      *string            `json:"request_id"`
	Stage          string             `json:"stage,omitempty"`
	BatchProgress  *stageProgressData `json:"batch_progress,omitempty"`
	AnalysisStatus *stageProgressData `json:"analysis_status,omitempty"`
	ApplyProgress  *stageProgressData `json:"apply_progress,omitempty"`
	ContentCount   int                `json:"content_count,omitempty"`
}

type resetData struct {
	ClearedJobs int `json:"cleared_jobs"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeSuccess writes a success envelope.
func writeSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, envelope{Success: true, Data: data})
}

// writeSuccessMessage writes a success envelope with a message and no data.
func writeSuccessMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, envelope{Success: true, Message: message})
}

// writeFailure writes a failure envelope.
func writeFailure(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, envelope{Success: false, Message: message})
}

// writeDomainError maps domain and temporal errors to HTTP status codes.
// Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeFailure(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeFailure(w, http.StatusBadRequest, ve.Error())
		} else {
			writeFailure(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrRequestActive):
		writeFailure(w, http.StatusConflict, "an analysis request is already active")
	case errors.Is(err, domain.ErrStaleRequest):
		writeFailure(w, http.StatusConflict, "analysis request is no longer current")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeFailure(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrRateLimited):
		writeFailure(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeFailure(w, http.StatusServiceUnavailable, "classification service unavailable")
	case errors.Is(err, temporal.ErrWorkflowNotFound):
		writeFailure(w, http.StatusNotFound, "workflow not found")
	case errors.Is(err, temporal.ErrWorkflowAlreadyStarted):
		writeFailure(w, http.StatusConflict, "workflow already started")
	default:
		writeFailure(w, http.StatusInternalServerError, "internal server error")
	}
}

func stageProgressToData(p domain.StageProgress) *stageProgressData {
	return &stageProgressData{
		Completed:   p.Completed,
		Total:       p.Total,
		CurrentPage: p.CurrentPage,
	}
}

func recordToPollData(record *domain.ProgressRecord) pollData {
	requestID := record.Request.RequestID
	return pollData{
		RequestID:      &requestID,
		Stage:          string(record.Stage),
		BatchProgress:  stageProgressToData(record.Sending),
		AnalysisStatus: stageProgressToData(record.Analyzing),
		ApplyProgress:  stageProgressToData(record.Applying),
		ContentCount:   record.Request.ContentCount,
	}
}
