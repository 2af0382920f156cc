package domain

type QueryRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	Language       string `json:"language,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
}

// StructuredNarrative is the schema the model is asked to produce.
type StructuredNarrative struct {
	Title            string   `json:"title"`
	Narrative        string   `json:"narrative"`
	Timeline         string   `json:"timeline,omitempty"`
	Locations        string   `json:"locations,omitempty"`
	KeyPeople        string   `json:"key_people,omitempty"`
	WhyItMatters     string   `json:"why_it_matters,omitempty"`
	LessonsAndThemes []string `json:"lessons_and_themes,omitempty"`
	ModernReflection string   `json:"modern_reflection,omitempty"`
	ExploreFurther   []string `json:"explore_further,omitempty"`
	CitedSources     []int    `json:"cited_sources,omitempty"`
}

type NarrativeKind string

const (
	NarrativeStructured NarrativeKind = "structured"
	NarrativePlain      NarrativeKind = "plain"
)

// NarrativeResult is resolved exactly once per response, after the stream
// ends. Consumers switch on Kind instead of re-probing the shape.
type NarrativeResult struct {
	Kind       NarrativeKind
	Structured *StructuredNarrative
	Raw        string
}

// Answer is the client-facing payload. Always well-formed, even on fallback.
type Answer struct {
	ConversationID string              `json:"conversation_id"`
	Narrative      StructuredNarrative `json:"narrative"`
	Citations      []SourceCitation    `json:"citations"`
	Language       string              `json:"language"`
	Fallback       bool                `json:"fallback,omitempty"`
}
