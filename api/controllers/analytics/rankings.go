package analytics

import (
	"net/http"

	"github.com/angelmondragon/salesrank-backend/api/responses"
	"github.com/angelmondragon/salesrank-backend/internal/analytics"
	"github.com/angelmondragon/salesrank-backend/pkg/logger"
)

// Rankings serves best and worst sellers for one product type with an image
// URL per article.
func Rankings(service analytics.Service, defaults analytics.Defaults, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		params, err := parseRankingParams(r, defaults)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		q, err := analytics.NormalizeQuery(params, defaults)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := service.RankAndEnrich(ctx, q)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
