package domain

import (
	"time"

	"github.com/google/uuid"
)

// Topic is the locally persisted, deduplicated record corresponding to a
// subject's external ID. The external ID is unique across the catalog; the
// name is not (two distinct entities may share a display name and remain
// distinct topics).
type Topic struct {
	ID uuid.UUID `json:"id"`

	// ExternalID is the classifier's identifier for the entity. Nil for
	// topics created outside the pipeline that have not been repaired yet.
	ExternalID *string `json:"external_id,omitempty"`

	// Name is the display name chosen via the subject name fallback order.
	Name string `json:"name"`

	// Description is optional entity metadata merged from the classifier.
	Description string `json:"description,omitempty"`

	// ImageURL and ThumbnailURL are optional entity images.
	ImageURL     string `json:"image_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`

	// SchemaTypes holds schema.org type hints.
	SchemaTypes []string `json:"schema_types,omitempty"`

	// CrossRefs maps external reference systems to identifiers.
	CrossRefs map[string]string `json:"cross_refs,omitempty"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewTopic creates a Topic from a reconcilable subject.
func NewTopic(subject *Subject) *Topic {
	now := time.Now().UTC()
	externalID := subject.ExternalID
	return &Topic{
		ID:           uuid.New(),
		ExternalID:   &externalID,
		Name:         subject.DisplayName(),
		Description:  subject.Description,
		ImageURL:     subject.ImageURL,
		ThumbnailURL: subject.ThumbnailURL,
		SchemaTypes:  subject.SchemaTypes,
		CrossRefs:    subject.CrossRefs,
		FirstSeenAt:  now,
		UpdatedAt:    now,
	}
}

// MergeSubject copies changed metadata fields from the subject onto the
// topic, leaving non-empty local values untouched when the subject carries
// nothing new. Returns true if any field changed.
func (t *Topic) MergeSubject(subject *Subject) bool {
	changed := false

	if subject.Description != "" && subject.Description != t.Description {
		t.Description = subject.Description
		changed = true
	}
	if subject.ImageURL != "" && subject.ImageURL != t.ImageURL {
		t.ImageURL = subject.ImageURL
		changed = true
	}
	if subject.ThumbnailURL != "" && subject.ThumbnailURL != t.ThumbnailURL {
		t.ThumbnailURL = subject.ThumbnailURL
		changed = true
	}
	if len(subject.SchemaTypes) > 0 && !stringSlicesEqual(subject.SchemaTypes, t.SchemaTypes) {
		t.SchemaTypes = subject.SchemaTypes
		changed = true
	}
	for system, ref := range subject.CrossRefs {
		if ref == "" || t.CrossRefs[system] == ref {
			continue
		}
		if t.CrossRefs == nil {
			t.CrossRefs = make(map[string]string, len(subject.CrossRefs))
		}
		t.CrossRefs[system] = ref
		changed = true
	}

	if changed {
		t.UpdatedAt = time.Now().UTC()
	}
	return changed
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
