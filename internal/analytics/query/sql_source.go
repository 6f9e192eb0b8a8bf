package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/salesrank-backend/internal/analytics/types"
	"github.com/angelmondragon/salesrank-backend/pkg/enums"
)

const rankedArticlesSQL = `
SELECT
  a.article_id AS article_id,
  a.prod_name AS display_name,
  a.product_group_name AS category_label,
  COUNT(t.id) AS units_sold,
  COALESCE(SUM(t.price), 0) AS revenue
FROM articles a
LEFT JOIN transactions t ON t.article_id = a.article_id%s
WHERE %s
GROUP BY a.article_id, a.prod_name, a.product_group_name%s
ORDER BY %s %s, a.article_id ASC
LIMIT ?
`

// SQLSource aggregates rankings from the articles and transactions tables.
// It runs unchanged on Postgres and SQLite.
type SQLSource struct {
	db *gorm.DB
}

func NewSQLSource(db *gorm.DB) (*SQLSource, error) {
	if db == nil {
		return nil, errors.New("gorm db required")
	}
	return &SQLSource{db: db}, nil
}

func (s *SQLSource) FetchRanked(ctx context.Context, q types.RankingQuery) (*types.RankedLists, error) {
	top, err := s.fetch(ctx, q, descending)
	if err != nil {
		return nil, err
	}
	bottom, err := s.fetch(ctx, q, ascending)
	if err != nil {
		return nil, err
	}
	return &types.RankedLists{Top: top, Bottom: bottom}, nil
}

func (s *SQLSource) fetch(ctx context.Context, q types.RankingQuery, dir direction) ([]types.RankedEntity, error) {
	sql, args, err := buildRankedSQL(q, dir)
	if err != nil {
		return nil, err
	}

	var rows []rankedRow
	if err := s.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query ranked articles (%s): %w", strings.ToLower(string(dir)), err)
	}
	return toEntities(rows), nil
}

func buildRankedSQL(q types.RankingQuery, dir direction) (string, []any, error) {
	column, err := metricColumn(q.Metric)
	if err != nil {
		return "", nil, err
	}

	var joinClause strings.Builder
	args := []any{}

	from, until := dayBounds(q)
	if from != "" {
		joinClause.WriteString(" AND t.t_dat >= ?")
		args = append(args, from)
	}
	if until != "" {
		joinClause.WriteString(" AND t.t_dat < ?")
		args = append(args, until)
	}
	if q.Channel != nil {
		joinClause.WriteString(" AND t.sales_channel_id = ?")
		args = append(args, int(*q.Channel))
	}

	var where string
	switch {
	case q.ProductTypeNo != nil:
		where = "a.product_type_no = ?"
		args = append(args, *q.ProductTypeNo)
	case q.ProductTypeName != "":
		where = "a.product_type_name = ?"
		args = append(args, q.ProductTypeName)
	default:
		return "", nil, errors.New("ranking query has no scope filter")
	}

	having := ""
	if !q.IncludeZeroSales {
		having = "\nHAVING COUNT(t.id) > 0"
		if q.Metric == enums.RankingMetricRevenue {
			having += " AND COALESCE(SUM(t.price), 0) > 0"
		}
	}

	args = append(args, q.Limit)
	return fmt.Sprintf(rankedArticlesSQL, joinClause.String(), where, having, column, dir), args, nil
}
