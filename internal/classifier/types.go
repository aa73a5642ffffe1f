package classifier

import (
	"github.com/contentive/topic-analysis-service/internal/domain"
)

// ContentPayload is one content item rendered for submission.
type ContentPayload struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

type initiateRequest struct {
	ContentCount int `json:"content_count"`
}

type initiateResponse struct {
	RequestID string `json:"request_id"`
}

type sendPageRequest struct {
	RequestID    string           `json:"request_id"`
	Page         int              `json:"page"`
	PageCount    int              `json:"page_count"`
	ContentsData []ContentPayload `json:"contents_data"`
}

// PollStatus is the analysis status reported by the service. The service
// has shipped the progress fraction under both "percent" and "percentage";
// both spellings decode.
type PollStatus struct {
	Message      string `json:"message,omitempty"`
	Ready        bool   `json:"ready"`
	Analyzed     int    `json:"analyzed"`
	ContentCount int    `json:"content_count"`

	Percent    *float64 `json:"percent,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`

	// CustomerIDPageCount and EntityPageCount size the legacy two-phase
	// result retrieval. Absent on newer service versions.
	CustomerIDPageCount *int `json:"customer_id_page_count,omitempty"`
	EntityPageCount     *int `json:"entity_page_count,omitempty"`
}

// Progress returns the reported progress fraction in [0, 100], whichever
// field spelling the service used. Zero when neither is present.
func (p *PollStatus) Progress() float64 {
	if p.Percent != nil {
		return *p.Percent
	}
	if p.Percentage != nil {
		return *p.Percentage
	}
	return 0
}

// ResultPost associates one content item with the subjects found in it.
type ResultPost struct {
	// CustomerID is the service's name for the submitted content item ID.
	CustomerID int64 `json:"customer_id"`

	// EntityIDs reference keys in the accompanying entity map.
	EntityIDs []string `json:"entity_ids"`
}

// ResultPage is one page from the combined v2 result endpoint: the
// per-item subject references plus the full subject bodies they point at.
type ResultPage struct {
	Posts       []ResultPost              `json:"posts"`
	Entities    map[string]domain.Subject `json:"entities"`
	PageCount   int                       `json:"page_count"`
	HasNextPage bool                      `json:"has_next_page"`
}

// ContentIDsPage is one page from the legacy per-item endpoint. Each entry
// carries the content item ID and its subject references, without bodies.
type ContentIDsPage struct {
	Posts       []ResultPost `json:"posts"`
	PageCount   int          `json:"page_count"`
	HasNextPage bool         `json:"has_next_page"`
}

// SubjectsPage is one page from the legacy subject-body endpoint.
type SubjectsPage struct {
	Entities    map[string]domain.Subject `json:"entities"`
	PageCount   int                       `json:"page_count"`
	HasNextPage bool                      `json:"has_next_page"`
}
