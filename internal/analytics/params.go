package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/salesrank-backend/internal/analytics/types"
	"github.com/angelmondragon/salesrank-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/salesrank-backend/pkg/errors"
)

const (
	MinLimit     = 1
	MaxLimit     = 10000
	DefaultLimit = 500

	dateLayout = "2006-01-02"
)

// Defaults are applied to parameters the caller left unset.
type Defaults struct {
	Limit            int
	Metric           enums.RankingMetric
	IncludeZeroSales bool
}

// DefaultDefaults mirrors the service configuration defaults.
func DefaultDefaults() Defaults {
	return Defaults{Limit: DefaultLimit, Metric: enums.RankingMetricUnits, IncludeZeroSales: true}
}

type rankingInput struct {
	From   string `validate:"omitempty,datetime=2006-01-02"`
	To     string `validate:"omitempty,datetime=2006-01-02"`
	Metric string `validate:"omitempty,oneof=units revenue"`
}

var validate = validator.New()

// NormalizeQuery applies defaults and validates raw ranking parameters.
// Every failure is a CodeValidation error.
func NormalizeQuery(params types.RankingParams, defaults Defaults) (types.RankingQuery, error) {
	name := strings.TrimSpace(params.ProductTypeName)
	switch {
	case name == "" && params.ProductTypeNo == nil:
		return types.RankingQuery{}, pkgerrors.New(pkgerrors.CodeValidation, "must provide one of productTypeName or productTypeNo")
	case name != "" && params.ProductTypeNo != nil:
		return types.RankingQuery{}, pkgerrors.New(pkgerrors.CodeValidation, "must provide only one of productTypeName or productTypeNo")
	}

	if params.Limit != nil && (*params.Limit < MinLimit || *params.Limit > MaxLimit) {
		return types.RankingQuery{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("limit out of range [%d, %d]", MinLimit, MaxLimit)).
			WithDetails(map[string]any{"field": "limit", "min": MinLimit, "max": MaxLimit})
	}

	input := rankingInput{
		From:   strings.TrimSpace(params.From),
		To:     strings.TrimSpace(params.To),
		Metric: strings.ToLower(strings.TrimSpace(params.Metric)),
	}
	if err := validate.Struct(input); err != nil {
		return types.RankingQuery{}, validationError(err)
	}

	q := types.RankingQuery{
		ProductTypeName:  name,
		ProductTypeNo:    params.ProductTypeNo,
		Metric:           defaults.Metric,
		Limit:            clampLimit(defaults.Limit),
		IncludeZeroSales: defaults.IncludeZeroSales,
	}
	if !q.Metric.IsValid() {
		q.Metric = enums.RankingMetricUnits
	}
	if input.Metric != "" {
		q.Metric = enums.RankingMetric(input.Metric)
	}
	if params.Limit != nil {
		q.Limit = *params.Limit
	}
	if params.IncludeZeroSales != nil {
		q.IncludeZeroSales = *params.IncludeZeroSales
	}
	if params.Channel != nil {
		channel, err := enums.ParseSalesChannel(*params.Channel)
		if err != nil {
			return types.RankingQuery{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "channel must be 1 or 2").
				WithDetails(map[string]string{"channel": "must be one of [1 2]"})
		}
		q.Channel = &channel
	}

	if input.From != "" {
		start, _ := time.Parse(dateLayout, input.From)
		q.Start = &start
	}
	if input.To != "" {
		end, _ := time.Parse(dateLayout, input.To)
		q.End = &end
	}
	if q.Start != nil && q.End != nil && q.End.Before(*q.Start) {
		return types.RankingQuery{}, pkgerrors.New(pkgerrors.CodeValidation, "from must not be after to").
			WithDetails(map[string]string{"from": input.From, "to": input.To})
	}

	return q, nil
}

func clampLimit(limit int) int {
	switch {
	case limit < MinLimit:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

var fieldNames = map[string]string{
	"From":   "from",
	"To":     "to",
	"Metric": "metric",
}

func validationError(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid ranking query")
	}

	details := map[string]string{}
	for _, fe := range errs {
		field := fieldNames[fe.Field()]
		if field == "" {
			field = fe.Field()
		}
		details[field] = fieldMessage(fe)
	}

	return pkgerrors.New(pkgerrors.CodeValidation, "invalid ranking query").WithDetails(details)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	}
	return "is invalid"
}
