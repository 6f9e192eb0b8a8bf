package analytics

import (
	"context"

	"github.com/angelmondragon/salesrank-backend/internal/analytics/types"
)

type testRankingService struct {
	last   *types.RankingQuery
	result *types.RankingResult
	err    error
}

func (s *testRankingService) Rank(ctx context.Context, q types.RankingQuery) (*types.RankedLists, error) {
	s.last = &q
	return &types.RankedLists{}, s.err
}

func (s *testRankingService) RankAndEnrich(ctx context.Context, q types.RankingQuery) (*types.RankingResult, error) {
	s.last = &q
	if s.err != nil {
		return nil, s.err
	}
	if s.result == nil {
		s.result = &types.RankingResult{Top: []types.EnrichedEntity{}, Bottom: []types.EnrichedEntity{}}
	}
	return s.result, nil
}

func (s *testRankingService) called() bool {
	return s.last != nil
}
