package gallery

import (
	"encoding/json"
	"time"
)

const metadataVersion = 1

// Derived role keys published to the front-end.
const (
	DerivedOriginal  = "original"
	DerivedThumbnail = "thumbnail"
	DerivedWeb       = "web"
	DerivedDownload  = "download"
)

// CollectionMetadata is the collection-level sidecar payload. Keys this
// schema does not know about are preserved in Extra and written back
// verbatim.
type CollectionMetadata struct {
	Version      int                        `json:"version"`
	ID           string                     `json:"id"`
	Title        string                     `json:"title"`
	Summary      string                     `json:"summary,omitempty"`
	Description  string                     `json:"description,omitempty"`
	Tags         []string                   `json:"tags"`
	SortOrder    int                        `json:"sort_order"`
	CreatedAt    *time.Time                 `json:"created_at,omitempty"`
	UpdatedAt    *time.Time                 `json:"updated_at,omitempty"`
	CoverImageID string                     `json:"cover_image_id,omitempty"`
	HeroImageID  string                     `json:"hero_image_id,omitempty"`
	Options      map[string]any             `json:"options,omitempty"`
	Extra        map[string]json.RawMessage `json:"-"`
}

var collectionKnownKeys = []string{
	"version", "id", "title", "summary", "description", "tags", "sort_order",
	"created_at", "updated_at", "cover_image_id", "hero_image_id", "options",
}

func (m *CollectionMetadata) UnmarshalJSON(payload []byte) error {
	type alias CollectionMetadata
	var decoded alias
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return err
	}
	*m = CollectionMetadata(decoded)
	extra, err := extraKeys(payload, collectionKnownKeys)
	if err != nil {
		return err
	}
	m.Extra = extra
	return nil
}

func (m CollectionMetadata) MarshalJSON() ([]byte, error) {
	type alias CollectionMetadata
	return marshalWithExtra(alias(m), m.Extra)
}

// ImageMetadata is the per-image sidecar payload.
type ImageMetadata struct {
	Version        int                `json:"version"`
	ID             string             `json:"id"`
	CollectionID   string             `json:"collection_id"`
	Filename       string             `json:"filename"`
	Title          string             `json:"title"`
	AltText        string             `json:"alt_text"`
	Description    string             `json:"description,omitempty"`
	Caption        string             `json:"caption,omitempty"`
	Tags           []string           `json:"tags"`
	AltRaw         string             `json:"alt_raw,omitempty"`
	DescriptionRaw string             `json:"description_raw,omitempty"`
	CaptionRaw     string             `json:"caption_raw,omitempty"`
	TagsRaw        []string           `json:"tags_raw"`
	TagScores      map[string]float64 `json:"tag_scores,omitempty"`
	Width          int                `json:"width,omitempty"`
	Height         int                `json:"height,omitempty"`
	Filesize       int64              `json:"filesize,omitempty"`
	Hash           string             `json:"hash,omitempty"`
	CreatedAt      *time.Time         `json:"created_at,omitempty"`
	CapturedAt     *time.Time         `json:"captured_at,omitempty"`
	ModifiedAt     *time.Time         `json:"modified_at,omitempty"`

	// Annotation bookkeeping. Signature and source hash let a rerun skip
	// images whose annotation inputs are unchanged.
	AnnotationSignature   string     `json:"ml_model_signature,omitempty"`
	AnnotationSourceHash  string     `json:"ml_source_hash,omitempty"`
	AnnotationGeneratedAt *time.Time `json:"ml_generated_at,omitempty"`

	// Cleanup bookkeeping.
	CleanupRevision  int        `json:"llm_revision"`
	CleanupUpdatedAt *time.Time `json:"llm_updated_at,omitempty"`

	// ManualOverrides names fields a human edited. Automated stages never
	// overwrite a field listed here.
	ManualOverrides map[string]json.RawMessage `json:"manual_overrides,omitempty"`

	Derived         map[string]string `json:"derived"`
	Notes           []string          `json:"notes,omitempty"`
	LastGeneratedAt *time.Time        `json:"last_generated_at,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var imageKnownKeys = []string{
	"version", "id", "collection_id", "filename", "title", "alt_text",
	"description", "caption", "tags", "alt_raw", "description_raw",
	"caption_raw", "tags_raw", "tag_scores", "width", "height", "filesize",
	"hash", "created_at", "captured_at", "modified_at", "ml_model_signature",
	"ml_source_hash", "ml_generated_at", "llm_revision", "llm_updated_at",
	"manual_overrides", "derived", "notes", "last_generated_at",
}

func (m *ImageMetadata) UnmarshalJSON(payload []byte) error {
	type alias ImageMetadata
	var decoded alias
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return err
	}
	*m = ImageMetadata(decoded)
	extra, err := extraKeys(payload, imageKnownKeys)
	if err != nil {
		return err
	}
	m.Extra = extra
	return nil
}

func (m ImageMetadata) MarshalJSON() ([]byte, error) {
	type alias ImageMetadata
	return marshalWithExtra(alias(m), m.Extra)
}

// ManuallyOverridden reports whether a field name is locked by a human edit.
// A null or empty override value does not lock the field.
func (m *ImageMetadata) ManuallyOverridden(field string) bool {
	raw, ok := m.ManualOverrides[field]
	if !ok {
		return false
	}
	trimmed := string(raw)
	return trimmed != "" && trimmed != "null" && trimmed != "false" && trimmed != `""`
}

// extraKeys returns the payload entries not claimed by the known key list.
func extraKeys(payload []byte, known []string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(payload, &all); err != nil {
		return nil, err
	}
	for _, key := range known {
		delete(all, key)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// marshalWithExtra serializes the known fields and folds preserved unknown
// keys back in. Known fields win on collision.
func marshalWithExtra(known any, extra map[string]json.RawMessage) ([]byte, error) {
	payload, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return payload, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(payload, &merged); err != nil {
		return nil, err
	}
	for key, value := range extra {
		if _, ok := merged[key]; !ok {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}
