package domain

import "time"

type JobStatus string

const (
	JobStarted        JobStatus = "STARTED"
	JobInProgress     JobStatus = "IN_PROGRESS"
	JobSucceeded      JobStatus = "SUCCEEDED"
	JobFailed         JobStatus = "FAILED"
	JobPartialSuccess JobStatus = "PARTIAL_SUCCESS"
)

// Terminal reports whether the status permits no further transition.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobPartialSuccess:
		return true
	default:
		return false
	}
}

type OCRMode string

const (
	// OCRModeText requests plain line/word detection.
	OCRModeText OCRMode = "text"
	// OCRModeAnalyzed additionally requests table and form analysis.
	OCRModeAnalyzed OCRMode = "analyzed"
)

type IngestJob struct {
	ID            string    `json:"id"`
	SourceRef     string    `json:"source_ref"`
	Filename      string    `json:"filename"`
	Mode          OCRMode   `json:"mode"`
	RemoteJobID   string    `json:"remote_job_id,omitempty"`
	Status        JobStatus `json:"status"`
	PagesExpected int       `json:"pages_expected,omitempty"`
	Error         string    `json:"error,omitempty"`
	LastCheckedAt time.Time `json:"last_checked_at,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ExtractedDocument is the normalized OCR output handed off to external
// indexing. Written once; never mutated afterwards.
type ExtractedDocument struct {
	SourceRef      string     `json:"source_ref"`
	Pages          int        `json:"pages"`
	Text           string     `json:"text"`
	StructuredData []OCRTable `json:"structured_data,omitempty"`
	Confidence     float64    `json:"confidence"`
	WordCount      int        `json:"word_count"`
	ExtractedAt    time.Time  `json:"extracted_at"`
}

// OCRPayload is the raw result of a completed OCR job. Plain jobs carry only
// page texts; analyzed jobs may additionally carry tables and forms.
type OCRPayload struct {
	Pages  []OCRPage     `json:"pages"`
	Tables []OCRTable    `json:"tables,omitempty"`
	Forms  []OCRKeyValue `json:"forms,omitempty"`
}

type OCRPage struct {
	Number     int     `json:"number"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type OCRTable struct {
	Page int        `json:"page"`
	Rows [][]string `json:"rows"`
}

type OCRKeyValue struct {
	Page  int    `json:"page"`
	Key   string `json:"key"`
	Value string `json:"value"`
}
