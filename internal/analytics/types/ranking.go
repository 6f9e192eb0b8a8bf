package types

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/salesrank-backend/pkg/enums"
)

// RankedEntity is one article with its sales aggregates for the queried window.
type RankedEntity struct {
	ArticleID     string          `json:"article_id"`
	DisplayName   string          `json:"display_name"`
	CategoryLabel string          `json:"category_label"`
	UnitsSold     int64           `json:"units_sold"`
	Revenue       decimal.Decimal `json:"revenue"`
}

// EnrichedEntity is a RankedEntity with its image URL. A nil ImageURL means
// the image could not be resolved for this article.
type EnrichedEntity struct {
	RankedEntity
	ImageURL       *string    `json:"image_url,omitempty"`
	ImageExpiresAt *time.Time `json:"image_expires_at,omitempty"`
}

// RankingParams is the raw ranking request before defaults and validation.
type RankingParams struct {
	ProductTypeName  string
	ProductTypeNo    *int64
	From             string
	To               string
	Channel          *int
	Metric           string
	Limit            *int
	IncludeZeroSales *bool
}

// RankingQuery is a normalised ranking request. Exactly one of
// ProductTypeName and ProductTypeNo is set. Start and End are inclusive days.
type RankingQuery struct {
	ProductTypeName  string
	ProductTypeNo    *int64
	Start            *time.Time
	End              *time.Time
	Channel          *enums.SalesChannel
	Metric           enums.RankingMetric
	Limit            int
	IncludeZeroSales bool
}

// RankedLists holds best sellers (descending) and worst sellers (ascending).
type RankedLists struct {
	Top    []RankedEntity
	Bottom []RankedEntity
}

// RankingResult is the enriched response for a ranking request.
type RankingResult struct {
	Top    []EnrichedEntity `json:"top"`
	Bottom []EnrichedEntity `json:"bottom"`
}
