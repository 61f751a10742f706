package service

import (
	"context"
	"fmt"
	"strings"

	"virtualrag-be/internal/constant"
	"virtualrag-be/internal/entity"
	"virtualrag-be/internal/metrics"
	"virtualrag-be/pkg/vectorstore"
)

type IRetrievalService interface {
	// Retrieve returns at most k results, most relevant first. An empty index
	// yields no results and no error.
	Retrieve(ctx context.Context, query string, k int) ([]entity.RetrievalResult, error)
}

type retrievalService struct {
	index   vectorstore.Index
	metrics *metrics.Metrics
}

func NewRetrievalService(index vectorstore.Index, m *metrics.Metrics) IRetrievalService {
	return &retrievalService{index: index, metrics: m}
}

func (s *retrievalService) Retrieve(ctx context.Context, query string, k int) ([]entity.RetrievalResult, error) {
	count, err := s.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count index: %w", err)
	}
	if count == 0 || k <= 0 {
		s.metrics.RecordRetrieval(0)
		return nil, nil
	}
	k = min(k, count)

	hits, err := s.index.Query(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	results := make([]entity.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, entity.RetrievalResult{
			Content:        hit.Chunk.Content,
			Filename:       hit.Chunk.Filename,
			RelevanceScore: ScoreFromDistance(hit.Distance),
		})
	}
	s.metrics.RecordRetrieval(len(results))
	return results, nil
}

// ScoreFromDistance maps cosine distance to a relevance score in [0,1].
func ScoreFromDistance(distance float64) float64 {
	return max(0, min(1, 1-distance))
}

// FormatContext renders results as numbered source blocks separated by a blank line.
func FormatContext(results []entity.RetrievalResult) string {
	if len(results) == 0 {
		return ""
	}
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf(constant.RetrievalSourceLabelForm, i+1, r.Filename, r.Content)
	}
	return strings.Join(blocks, "\n\n")
}

func Sources(results []entity.RetrievalResult) []string {
	sources := make([]string, len(results))
	for i, r := range results {
		sources[i] = r.Filename
	}
	return sources
}
