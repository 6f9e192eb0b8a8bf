package query

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/salesrank-backend/internal/analytics/types"
	"github.com/angelmondragon/salesrank-backend/pkg/enums"
)

// Source computes per-article sales aggregates for a ranking query. Top is
// ordered by the metric descending and Bottom ascending; ties are broken by
// article id ascending so repeated calls on unchanged data agree.
type Source interface {
	FetchRanked(ctx context.Context, q types.RankingQuery) (*types.RankedLists, error)
}

type direction string

const (
	descending direction = "DESC"
	ascending  direction = "ASC"

	dateLayout = "2006-01-02"
)

func metricColumn(metric enums.RankingMetric) (string, error) {
	switch metric {
	case enums.RankingMetricUnits:
		return "units_sold", nil
	case enums.RankingMetricRevenue:
		return "revenue", nil
	default:
		return "", fmt.Errorf("unsupported ranking metric %q", metric)
	}
}

// dayBounds returns the half-open [start, end+1d) window for inclusive days.
func dayBounds(q types.RankingQuery) (from, until string) {
	if q.Start != nil {
		from = q.Start.Format(dateLayout)
	}
	if q.End != nil {
		until = q.End.AddDate(0, 0, 1).Format(dateLayout)
	}
	return from, until
}

type rankedRow struct {
	ArticleID     int64
	DisplayName   string
	CategoryLabel string
	UnitsSold     int64
	Revenue       decimal.Decimal
}

func (r rankedRow) toEntity() types.RankedEntity {
	return types.RankedEntity{
		ArticleID:     strconv.FormatInt(r.ArticleID, 10),
		DisplayName:   r.DisplayName,
		CategoryLabel: r.CategoryLabel,
		UnitsSold:     r.UnitsSold,
		Revenue:       r.Revenue,
	}
}

func toEntities(rows []rankedRow) []types.RankedEntity {
	out := make([]types.RankedEntity, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out
}
