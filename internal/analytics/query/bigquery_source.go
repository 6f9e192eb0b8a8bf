package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	cloudbigquery "cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"

	"github.com/angelmondragon/salesrank-backend/internal/analytics/types"
	"github.com/angelmondragon/salesrank-backend/pkg/bigquery"
	"github.com/angelmondragon/salesrank-backend/pkg/enums"
)

const bqRankedArticlesSQL = `
SELECT
  a.article_id AS article_id,
  a.prod_name AS display_name,
  a.product_group_name AS category_label,
  COUNT(t.article_id) AS units_sold,
  COALESCE(SUM(CAST(t.price AS NUMERIC)), 0) AS revenue_total,
  CAST(COALESCE(SUM(CAST(t.price AS NUMERIC)), 0) AS STRING) AS revenue
FROM %s a
LEFT JOIN %s t ON t.article_id = a.article_id%s
WHERE %s
GROUP BY a.article_id, a.prod_name, a.product_group_name%s
ORDER BY %s %s, article_id ASC
LIMIT @limit
`

type querier interface {
	Query(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (*cloudbigquery.RowIterator, error)
}

// BigQuerySource aggregates rankings from warehouse copies of the articles and
// transactions tables.
type BigQuerySource struct {
	client          querier
	articlesRef     string
	transactionsRef string
}

func NewBigQuerySource(client *bigquery.Client, articlesTable, transactionsTable string) (*BigQuerySource, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	if strings.TrimSpace(articlesTable) == "" || strings.TrimSpace(transactionsTable) == "" {
		return nil, errors.New("articles and transactions tables are required")
	}
	return &BigQuerySource{
		client:          client,
		articlesRef:     client.TableRef(articlesTable),
		transactionsRef: client.TableRef(transactionsTable),
	}, nil
}

func (s *BigQuerySource) FetchRanked(ctx context.Context, q types.RankingQuery) (*types.RankedLists, error) {
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

func (s *BigQuerySource) fetch(ctx context.Context, q types.RankingQuery, dir direction) ([]types.RankedEntity, error) {
	sql, params, err := s.buildSQL(q, dir)
	if err != nil {
		return nil, err
	}

	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("query ranked articles: %w", err)
	}

	var out []types.RankedEntity
	for {
		var row struct {
			ArticleID     int64  `bigquery:"article_id"`
			DisplayName   string `bigquery:"display_name"`
			CategoryLabel string `bigquery:"category_label"`
			UnitsSold     int64  `bigquery:"units_sold"`
			Revenue       string `bigquery:"revenue"`
		}
		if err := iter.Next(&row); err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("reading ranked row: %w", err)
		}
		revenue, err := decimal.NewFromString(row.Revenue)
		if err != nil {
			return nil, fmt.Errorf("parsing revenue for article %d: %w", row.ArticleID, err)
		}
		out = append(out, rankedRow{
			ArticleID:     row.ArticleID,
			DisplayName:   row.DisplayName,
			CategoryLabel: row.CategoryLabel,
			UnitsSold:     row.UnitsSold,
			Revenue:       revenue,
		}.toEntity())
	}
	return out, nil
}

func (s *BigQuerySource) buildSQL(q types.RankingQuery, dir direction) (string, []cloudbigquery.QueryParameter, error) {
	column, err := metricColumn(q.Metric)
	if err != nil {
		return "", nil, err
	}
	if column == "revenue" {
		column = "revenue_total"
	}

	var join strings.Builder
	params := []cloudbigquery.QueryParameter{{Name: "limit", Value: int64(q.Limit)}}

	from, until := dayBounds(q)
	if from != "" {
		join.WriteString(" AND t.t_dat >= CAST(@from AS DATE)")
		params = append(params, cloudbigquery.QueryParameter{Name: "from", Value: from})
	}
	if until != "" {
		join.WriteString(" AND t.t_dat < CAST(@until AS DATE)")
		params = append(params, cloudbigquery.QueryParameter{Name: "until", Value: until})
	}
	if q.Channel != nil {
		join.WriteString(" AND t.sales_channel_id = @channel")
		params = append(params, cloudbigquery.QueryParameter{Name: "channel", Value: int64(*q.Channel)})
	}

	var where string
	switch {
	case q.ProductTypeNo != nil:
		where = "a.product_type_no = @productTypeNo"
		params = append(params, cloudbigquery.QueryParameter{Name: "productTypeNo", Value: *q.ProductTypeNo})
	case q.ProductTypeName != "":
		where = "a.product_type_name = @productTypeName"
		params = append(params, cloudbigquery.QueryParameter{Name: "productTypeName", Value: q.ProductTypeName})
	default:
		return "", nil, errors.New("ranking query has no scope filter")
	}

	having := ""
	if !q.IncludeZeroSales {
		having = "\nHAVING COUNT(t.article_id) > 0"
		if q.Metric == enums.RankingMetricRevenue {
			having += " AND COALESCE(SUM(CAST(t.price AS NUMERIC)), 0) > 0"
		}
	}

	sql := fmt.Sprintf(bqRankedArticlesSQL, s.articlesRef, s.transactionsRef, join.String(), where, having, column, dir)
	return sql, params, nil
}
