package usecase

import (
	"sort"
	"strings"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
)

// reduceByDocument caps chunks per source document so one archive item
// cannot monopolize the context. Surviving documents get ordinals 1..N;
// those ordinals are the citation ids for the rest of the query.
func reduceByDocument(chunks []domain.RetrievedChunk, maxPerDoc int) []domain.ContextBlock {
	if len(chunks) == 0 {
		return nil
	}
	if maxPerDoc <= 0 {
		maxPerDoc = 10
	}

	groups := make(map[string][]domain.RetrievedChunk)
	order := make([]string, 0, 8)
	for _, chunk := range chunks {
		key := documentKey(chunk)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], chunk)
	}

	blocks := make([]domain.ContextBlock, 0, len(order))
	for _, key := range order {
		group := groups[key]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Score != group[j].Score {
				return group[i].Score > group[j].Score
			}
			return group[i].Text < group[j].Text
		})
		if len(group) > maxPerDoc {
			group = group[:maxPerDoc]
		}

		best := group[0]
		blocks = append(blocks, domain.ContextBlock{
			SourceDocumentID: best.SourceDocumentID,
			SourceRef:        best.SourceRef,
			Title:            blockTitle(best),
			Chunks:           group,
			TopScore:         best.Score,
		})
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].TopScore != blocks[j].TopScore {
			return blocks[i].TopScore > blocks[j].TopScore
		}
		return blocks[i].SourceRef < blocks[j].SourceRef
	})

	for i := range blocks {
		blocks[i].Ordinal = i + 1
	}
	return blocks
}

// documentKey infers document identity; a hit whose identity cannot be
// parsed keeps its raw reference (or text) as its own group.
func documentKey(chunk domain.RetrievedChunk) string {
	if chunk.SourceDocumentID != "" {
		return chunk.SourceDocumentID
	}
	if chunk.SourceRef != "" {
		return "ref:" + chunk.SourceRef
	}
	return "text:" + chunk.Text
}

func blockTitle(chunk domain.RetrievedChunk) string {
	if chunk.Title != "" {
		return chunk.Title
	}
	if chunk.SourceRef != "" {
		base := chunk.SourceRef
		if idx := strings.LastIndex(base, "/"); idx >= 0 {
			base = base[idx+1:]
		}
		return base
	}
	return "Untitled source"
}
