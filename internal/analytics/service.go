package analytics

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/angelmondragon/salesrank-backend/internal/analytics/query"
	"github.com/angelmondragon/salesrank-backend/internal/analytics/types"
	"github.com/angelmondragon/salesrank-backend/internal/media"
	"github.com/angelmondragon/salesrank-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/salesrank-backend/pkg/errors"
	"github.com/angelmondragon/salesrank-backend/pkg/logger"
	"github.com/angelmondragon/salesrank-backend/pkg/metrics"
)

// Service ranks articles by sales and attaches image URLs to the result.
type Service interface {
	// Rank returns best and worst sellers for a normalised query.
	Rank(ctx context.Context, q types.RankingQuery) (*types.RankedLists, error)
	// RankAndEnrich ranks and resolves an image URL for every returned article.
	// Image failures leave ImageURL nil and never fail the call.
	RankAndEnrich(ctx context.Context, q types.RankingQuery) (*types.RankingResult, error)
}

type ServiceParams struct {
	Source   query.Source
	Enricher *media.Enricher
	Logger   *logger.Logger
	Metrics  *metrics.PipelineMetrics
}

type service struct {
	source   query.Source
	enricher *media.Enricher
	logg     *logger.Logger
	metrics  *metrics.PipelineMetrics
}

func NewService(p ServiceParams) (Service, error) {
	if p.Source == nil {
		return nil, errors.New("ranking source required")
	}
	if p.Enricher == nil {
		return nil, errors.New("image enricher required")
	}
	return &service{
		source:   p.Source,
		enricher: p.Enricher,
		logg:     p.Logger,
		metrics:  p.Metrics,
	}, nil
}

func (s *service) Rank(ctx context.Context, q types.RankingQuery) (*types.RankedLists, error) {
	lists, err := s.source.FetchRanked(ctx, q)
	if err != nil {
		s.metrics.IncRankingFailure()
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, queryFields(q))
			s.logg.Error(logCtx, "analytics.rank.failed", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to compute sales ranking")
	}
	if lists == nil {
		lists = &types.RankedLists{}
	}

	top := filterZeroSales(lists.Top, q.Metric, q.IncludeZeroSales)
	bottom := filterZeroSales(lists.Bottom, q.Metric, q.IncludeZeroSales)

	sort.SliceStable(top, func(i, j int) bool {
		return compareMetric(q.Metric, top[i], top[j]) > 0
	})
	sort.SliceStable(bottom, func(i, j int) bool {
		return compareMetric(q.Metric, bottom[i], bottom[j]) < 0
	})

	return &types.RankedLists{
		Top:    truncate(top, q.Limit),
		Bottom: truncate(bottom, q.Limit),
	}, nil
}

func (s *service) RankAndEnrich(ctx context.Context, q types.RankingQuery) (*types.RankingResult, error) {
	started := time.Now()

	lists, err := s.Rank(ctx, q)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(lists.Top)+len(lists.Bottom))
	for _, e := range lists.Top {
		ids = append(ids, e.ArticleID)
	}
	for _, e := range lists.Bottom {
		ids = append(ids, e.ArticleID)
	}

	resolutions := s.enricher.ResolveAll(ctx, ids)

	result := &types.RankingResult{
		Top:    merge(lists.Top, resolutions[:len(lists.Top)]),
		Bottom: merge(lists.Bottom, resolutions[len(lists.Top):]),
	}

	s.metrics.ObserveRanking(q.Metric.String(), time.Since(started))
	return result, nil
}

func merge(entities []types.RankedEntity, resolutions []media.Resolution) []types.EnrichedEntity {
	out := make([]types.EnrichedEntity, len(entities))
	for i, entity := range entities {
		out[i] = types.EnrichedEntity{RankedEntity: entity}
		if res := resolutions[i]; res.OK() {
			url := res.Image.URL
			out[i].ImageURL = &url
			out[i].ImageExpiresAt = res.Image.ExpiresAt
		}
	}
	return out
}

// filterZeroSales drops entities without transactions and, when ranking by
// revenue, entities whose transactions were all free.
func filterZeroSales(entities []types.RankedEntity, metric enums.RankingMetric, includeZero bool) []types.RankedEntity {
	out := make([]types.RankedEntity, 0, len(entities))
	for _, e := range entities {
		if !includeZero && (e.UnitsSold == 0 || (metric == enums.RankingMetricRevenue && e.Revenue.Sign() <= 0)) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func compareMetric(metric enums.RankingMetric, a, b types.RankedEntity) int {
	if metric == enums.RankingMetricRevenue {
		return a.Revenue.Cmp(b.Revenue)
	}
	switch {
	case a.UnitsSold < b.UnitsSold:
		return -1
	case a.UnitsSold > b.UnitsSold:
		return 1
	default:
		return 0
	}
}

func truncate(entities []types.RankedEntity, limit int) []types.RankedEntity {
	if limit > 0 && len(entities) > limit {
		return entities[:limit]
	}
	return entities
}

func queryFields(q types.RankingQuery) map[string]any {
	fields := map[string]any{
		"metric":       q.Metric.String(),
		"limit":        q.Limit,
		"include_zero": q.IncludeZeroSales,
	}
	if q.ProductTypeNo != nil {
		fields["product_type_no"] = *q.ProductTypeNo
	} else {
		fields["product_type_name"] = q.ProductTypeName
	}
	if q.Start != nil {
		fields["from"] = q.Start.Format(dateLayout)
	}
	if q.End != nil {
		fields["to"] = q.End.Format(dateLayout)
	}
	if q.Channel != nil {
		fields["channel"] = int(*q.Channel)
	}
	return fields
}
