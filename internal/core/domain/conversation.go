package domain

import "time"

// ConversationTurn is append-only, ordered by timestamp within a
// conversation.
type ConversationTurn struct {
	ConversationID   string           `json:"conversation_id"`
	Timestamp        time.Time        `json:"timestamp"`
	UserText         string           `json:"user_text"`
	DetectedLanguage string           `json:"detected_language"`
	CanonicalText    string           `json:"canonical_text"`
	Answer           Answer           `json:"answer"`
	Citations        []SourceCitation `json:"citations"`
	ProcessingTimeMs int64            `json:"processing_time_ms"`
}

// AnalyticsEvent is written for every query, failures included.
type AnalyticsEvent struct {
	QueryID       string        `json:"query_id"`
	Timestamp     time.Time     `json:"timestamp"`
	Language      string        `json:"language"`
	Category      string        `json:"category"`
	Latency       time.Duration `json:"latency"`
	CitationCount int           `json:"citation_count"`
	Success       bool          `json:"success"`
}
