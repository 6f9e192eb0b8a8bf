package analytics

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/salesrank-backend/api/validators"
	"github.com/angelmondragon/salesrank-backend/internal/analytics"
	"github.com/angelmondragon/salesrank-backend/internal/analytics/types"
)

const maxProductTypeNameLen = 128

func parseRankingParams(r *http.Request, defaults analytics.Defaults) (types.RankingParams, error) {
	query := r.URL.Query()

	params := types.RankingParams{
		ProductTypeName: validators.SanitizeString(query.Get("productTypeName"), maxProductTypeNameLen),
		From:            query.Get("from"),
		To:              query.Get("to"),
		Metric:          query.Get("metric"),
	}

	var err error
	if params.ProductTypeNo, err = validators.ParseQueryInt64Ptr(r, "productTypeNo"); err != nil {
		return types.RankingParams{}, err
	}
	if params.Channel, err = validators.ParseQueryIntPtr(r, "channel"); err != nil {
		return types.RankingParams{}, err
	}
	if params.IncludeZeroSales, err = validators.ParseQueryBoolPtr(r, "includeZero"); err != nil {
		return types.RankingParams{}, err
	}

	// a blank limit falls through to the configured default
	if strings.TrimSpace(query.Get("limit")) != "" {
		limit, err := validators.ParseQueryInt(r, "limit", defaults.Limit, analytics.MinLimit, analytics.MaxLimit)
		if err != nil {
			return types.RankingParams{}, err
		}
		params.Limit = &limit
	}

	return params, nil
}
