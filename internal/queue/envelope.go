package queue

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Action identifies which worker behavior an envelope invokes.
type Action string

// The closed set of worker actions.
const (
	// ActionAddScreenshot captures a page screenshot for a bookmark.
	ActionAddScreenshot Action = "ADD_SCREENSHOT"

	// ActionAddFeed fetches and parses a syndication feed.
	ActionAddFeed Action = "ADD_FEED"

	// ActionAddMetadata resolves link metadata for a quick-add bookmark.
	ActionAddMetadata Action = "ADD_METADATA"

	// ActionAddDescription writes a short LLM-generated description for an
	// existing bookmark.
	ActionAddDescription Action = "ADD_DESCRIPTION"
)

// Envelope is the tagged payload accepted by the queue: an action tag and
// the action-specific data blob.
type Envelope struct {
	Action Action          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// ScreenshotPayload is the data schema for ActionAddScreenshot.
type ScreenshotPayload struct {
	URL    string    `json:"url"    validate:"required,url"`
	UserID uuid.UUID `json:"userId" validate:"required"`
}

// FeedPayload is the data schema for ActionAddFeed.
type FeedPayload struct {
	FeedURL string    `json:"feedUrl" validate:"required,url"`
	UserID  uuid.UUID `json:"userId"  validate:"required"`
}

// MetadataPayload is the data schema for ActionAddMetadata. Title,
// Description and Tags are the user-supplied fields that survive resolver
// failure (graceful degradation to a bare bookmark).
type MetadataPayload struct {
	URL         string    `json:"url"    validate:"required,url"`
	UserID      uuid.UUID `json:"userId" validate:"required"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty" validate:"dive,min=1"`
}

// DescriptionPayload is the data schema for ActionAddDescription.
type DescriptionPayload struct {
	BookmarkID uuid.UUID `json:"bookmarkId" validate:"required"`
	UserID     uuid.UUID `json:"userId"     validate:"required"`
}

// NewEnvelope builds an envelope from an action tag and its typed payload.
func NewEnvelope(action Action, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal envelope payload: %w", err)
	}

	return Envelope{Action: action, Data: data}, nil
}

// DecodeData unmarshals the envelope's data blob into the given payload
// structure.
func (e Envelope) DecodeData(v any) error {
	return json.Unmarshal(e.Data, v)
}

// payloadFor returns a fresh payload value for the envelope's action, or
// false when the action is outside the known set.
func payloadFor(action Action) (any, bool) {
	switch action {
	case ActionAddScreenshot:
		return &ScreenshotPayload{}, true
	case ActionAddFeed:
		return &FeedPayload{}, true
	case ActionAddMetadata:
		return &MetadataPayload{}, true
	case ActionAddDescription:
		return &DescriptionPayload{}, true
	default:
		return nil, false
	}
}

// Validate checks the envelope against the schema for its action.
// Unknown actions and schema violations both wrap ErrValidation so that
// enqueue-time rejection is uniform.
func (e Envelope) Validate(validate *validator.Validate) error {
	payload, ok := payloadFor(e.Action)
	if !ok {
		return fmt.Errorf("%w: %w %q", ErrValidation, ErrUnknownAction, e.Action)
	}

	if len(e.Data) == 0 {
		return fmt.Errorf("%w: action %s has no data", ErrValidation, e.Action)
	}

	if err := json.Unmarshal(e.Data, payload); err != nil {
		return fmt.Errorf("%w: malformed data for action %s: %v", ErrValidation, e.Action, err)
	}

	if err := validate.Struct(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	return nil
}
