package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
)

type AnalyticsRepository struct {
	db *sql.DB
}

func NewAnalyticsRepository(db *sql.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

func (r *AnalyticsRepository) RecordEvent(ctx context.Context, event domain.AnalyticsEvent) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO analytics_events (query_id, ts, language, category, latency_ms, citation_count, success)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		event.QueryID, event.Timestamp, event.Language, event.Category,
		event.Latency.Milliseconds(), event.CitationCount, event.Success,
	)
	if err != nil {
		return fmt.Errorf("insert analytics event: %w", err)
	}
	return nil
}

func (r *AnalyticsRepository) ListEvents(ctx context.Context, since time.Time, limit int) ([]domain.AnalyticsEvent, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT query_id, ts, language, category, latency_ms, citation_count, success
FROM analytics_events
WHERE ts >= $1
ORDER BY ts DESC
LIMIT $2
`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query analytics events: %w", err)
	}
	defer rows.Close()

	var events []domain.AnalyticsEvent
	for rows.Next() {
		var event domain.AnalyticsEvent
		var language, category sql.NullString
		var latencyMs int64

		err := rows.Scan(&event.QueryID, &event.Timestamp, &language, &category, &latencyMs, &event.CitationCount, &event.Success)
		if err != nil {
			return nil, fmt.Errorf("scan analytics event: %w", err)
		}
		event.Language = language.String
		event.Category = category.String
		event.Latency = time.Duration(latencyMs) * time.Millisecond
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analytics events: %w", err)
	}
	return events, nil
}
