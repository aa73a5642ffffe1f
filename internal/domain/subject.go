package domain

// Subject is an external knowledge-entity record returned by the remote
// classifier for one analysis request. Field names mirror the classifier's
// wire shapes; the name candidates carry a documented fallback order.
type Subject struct {
	// ExternalID is the classifier's stable identifier for the entity.
	// A subject without an external ID cannot be reconciled and is skipped.
	ExternalID string `json:"id"`

	// Name is the primary entity name.
	Name string `json:"name,omitempty"`

	// NLName is the localized name, used when Name is empty.
	NLName string `json:"nl_name,omitempty"`

	// KGName is the knowledge-graph name, used when Name and NLName are empty.
	KGName string `json:"kg_name,omitempty"`

	// WikibaseName is the wikibase-style name, the last fallback candidate.
	WikibaseName string `json:"wikibase_name,omitempty"`

	// Description is an optional short description of the entity.
	Description string `json:"description,omitempty"`

	// ImageURL and ThumbnailURL are optional entity images.
	ImageURL     string `json:"image_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`

	// SchemaTypes holds schema.org type hints for the entity.
	SchemaTypes []string `json:"schema_types,omitempty"`

	// CrossRefs maps external reference systems (e.g. "wikidata", "freebase")
	// to the entity's identifier in that system.
	CrossRefs map[string]string `json:"cross_refs,omitempty"`

	// Contents lists the content items the classifier associated with this
	// subject, with optional salience scores and categories.
	Contents []TopicAssignment `json:"contents,omitempty"`
}

// DisplayName returns the first non-empty name candidate in priority order:
// primary name, localized name, knowledge-graph name, wikibase name.
// Returns the empty string when every candidate is empty.
func (s *Subject) DisplayName() string {
	for _, name := range []string{s.Name, s.NLName, s.KGName, s.WikibaseName} {
		if name != "" {
			return name
		}
	}
	return ""
}

// Reconcilable reports whether the subject carries enough identity to be
// reconciled into the topic catalog: a non-empty external ID and at least
// one non-empty name candidate.
func (s *Subject) Reconcilable() bool {
	return s.ExternalID != "" && s.DisplayName() != ""
}
