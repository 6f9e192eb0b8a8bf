package analytics

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/salesrank-backend/internal/analytics/types"
	"github.com/angelmondragon/salesrank-backend/internal/media"
	"github.com/angelmondragon/salesrank-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/salesrank-backend/pkg/errors"
	"github.com/angelmondragon/salesrank-backend/pkg/logger"
)

type fakeSource struct {
	entities []types.RankedEntity
	err      error
	calls    int
}

func (f *fakeSource) FetchRanked(_ context.Context, _ types.RankingQuery) (*types.RankedLists, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	top := append([]types.RankedEntity(nil), f.entities...)
	bottom := append([]types.RankedEntity(nil), f.entities...)
	return &types.RankedLists{Top: top, Bottom: bottom}, nil
}

type fakeLocator struct {
	fail      map[string]bool
	expiresAt *time.Time
}

func (f *fakeLocator) Strategy() enums.StorageStrategy {
	return enums.StorageStrategyPresigned
}

func (f *fakeLocator) Resolve(_ context.Context, key string, _ time.Duration) (media.ResolvedImage, error) {
	if f.fail[key] {
		return media.ResolvedImage{}, errors.New("signature denied")
	}
	return media.ResolvedImage{Key: key, URL: "https://img.example.com/" + key + "?sig=abc", ExpiresAt: f.expiresAt}, nil
}

func entity(id string, units int64, revenue int64) types.RankedEntity {
	return types.RankedEntity{
		ArticleID:     id,
		DisplayName:   "article " + id,
		CategoryLabel: "Garment Upper body",
		UnitsSold:     units,
		Revenue:       decimal.NewFromInt(revenue),
	}
}

func newTestService(t *testing.T, src *fakeSource, loc media.Locator, out *bytes.Buffer) Service {
	t.Helper()
	var logg *logger.Logger
	if out != nil {
		logg = logger.New(logger.Options{ServiceName: "test", Output: out})
	}
	enricher, err := media.NewEnricher(media.EnricherParams{
		Keys:           media.NewKeyScheme(2, "jpg"),
		Locator:        loc,
		TTL:            time.Minute,
		MaxConcurrency: 4,
		Logger:         logg,
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{Source: src, Enricher: enricher, Logger: logg})
	require.NoError(t, err)
	return svc
}

func resultIDs(entities []types.EnrichedEntity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.ArticleID)
	}
	return out
}

func revenueQuery(limit int, includeZero bool) types.RankingQuery {
	return types.RankingQuery{
		ProductTypeName:  "Vest top",
		Metric:           enums.RankingMetricRevenue,
		Limit:            limit,
		IncludeZeroSales: includeZero,
	}
}

func TestRankAndEnrichRevenueTopAndBottom(t *testing.T) {
	src := &fakeSource{entities: []types.RankedEntity{
		entity("100001", 1, 10),
		entity("100002", 2, 50),
		entity("100003", 1, 5),
		entity("100004", 3, 100),
		entity("100005", 0, 0),
	}}
	svc := newTestService(t, src, &fakeLocator{}, nil)

	result, err := svc.RankAndEnrich(context.Background(), revenueQuery(2, true))
	require.NoError(t, err)

	assert.Equal(t, []string{"100004", "100002"}, resultIDs(result.Top))
	assert.Equal(t, []string{"100005", "100003"}, resultIDs(result.Bottom))

	for _, e := range append(result.Top, result.Bottom...) {
		require.NotNil(t, e.ImageURL, "article %s", e.ArticleID)
		assert.Equal(t, "https://img.example.com/10/"+e.ArticleID+".jpg?sig=abc", *e.ImageURL)
	}
}

func TestRankAndEnrichIsolatesImageFailure(t *testing.T) {
	src := &fakeSource{entities: []types.RankedEntity{
		entity("200001", 9, 90),
		entity("200002", 5, 50),
		entity("200003", 1, 10),
	}}
	loc := &fakeLocator{fail: map[string]bool{"20/200002.jpg": true}}
	var out bytes.Buffer
	svc := newTestService(t, src, loc, &out)

	result, err := svc.RankAndEnrich(context.Background(), revenueQuery(3, true))
	require.NoError(t, err)

	require.Equal(t, []string{"200001", "200002", "200003"}, resultIDs(result.Top))
	assert.NotNil(t, result.Top[0].ImageURL)
	assert.Nil(t, result.Top[1].ImageURL)
	assert.NotNil(t, result.Top[2].ImageURL)

	require.Equal(t, []string{"200003", "200002", "200001"}, resultIDs(result.Bottom))
	assert.Nil(t, result.Bottom[1].ImageURL)
	assert.NotNil(t, result.Bottom[0].ImageURL)

	assert.Contains(t, out.String(), "media.resolve.failed")
	assert.Contains(t, out.String(), "200002")
}

func TestRankAndEnrichCarriesExpiry(t *testing.T) {
	expires := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{entities: []types.RankedEntity{entity("300001", 1, 1)}}
	svc := newTestService(t, src, &fakeLocator{expiresAt: &expires}, nil)

	result, err := svc.RankAndEnrich(context.Background(), revenueQuery(1, true))
	require.NoError(t, err)
	require.Len(t, result.Top, 1)
	require.NotNil(t, result.Top[0].ImageExpiresAt)
	assert.True(t, result.Top[0].ImageExpiresAt.Equal(expires))
}

func TestRankDropsZeroSalesWhenExcluded(t *testing.T) {
	src := &fakeSource{entities: []types.RankedEntity{
		entity("400001", 0, 0),
		entity("400002", 4, 40),
		entity("400003", 2, 20),
	}}
	svc := newTestService(t, src, &fakeLocator{}, nil)

	q := types.RankingQuery{ProductTypeName: "Vest top", Metric: enums.RankingMetricUnits, Limit: 10}
	lists, err := svc.Rank(context.Background(), q)
	require.NoError(t, err)

	for _, list := range [][]types.RankedEntity{lists.Top, lists.Bottom} {
		for _, e := range list {
			assert.NotEqual(t, "400001", e.ArticleID)
		}
	}
	assert.Len(t, lists.Bottom, 2)
	assert.Equal(t, "400003", lists.Bottom[0].ArticleID)
}

func TestRankDropsZeroRevenueWhenRankingByRevenue(t *testing.T) {
	src := &fakeSource{entities: []types.RankedEntity{
		entity("600001", 2, 0),
		entity("600002", 1, 10),
	}}
	svc := newTestService(t, src, &fakeLocator{}, nil)

	lists, err := svc.Rank(context.Background(), revenueQuery(10, false))
	require.NoError(t, err)
	require.Len(t, lists.Bottom, 1)
	assert.Equal(t, "600002", lists.Bottom[0].ArticleID)
	require.Len(t, lists.Top, 1)
	assert.Equal(t, "600002", lists.Top[0].ArticleID)

	lists, err = svc.Rank(context.Background(), revenueQuery(10, true))
	require.NoError(t, err)
	assert.Equal(t, "600001", lists.Bottom[0].ArticleID)

	units := types.RankingQuery{ProductTypeName: "Vest top", Metric: enums.RankingMetricUnits, Limit: 10}
	lists, err = svc.Rank(context.Background(), units)
	require.NoError(t, err)
	assert.Len(t, lists.Bottom, 2)
}

func TestRankKeepsSourceOrderForTies(t *testing.T) {
	src := &fakeSource{entities: []types.RankedEntity{
		entity("500001", 3, 30),
		entity("500002", 3, 30),
		entity("500003", 3, 30),
	}}
	svc := newTestService(t, src, &fakeLocator{}, nil)

	q := types.RankingQuery{ProductTypeNo: ptr(int64(253)), Metric: enums.RankingMetricUnits, Limit: 2, IncludeZeroSales: true}
	first, err := svc.Rank(context.Background(), q)
	require.NoError(t, err)
	second, err := svc.Rank(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "500001", first.Top[0].ArticleID)
	assert.Equal(t, "500002", first.Top[1].ArticleID)
	assert.Equal(t, "500001", first.Bottom[0].ArticleID)
}

func TestRankWrapsSourceFailure(t *testing.T) {
	errRefused := errors.New("connection refused")
	src := &fakeSource{err: errRefused}
	var out bytes.Buffer
	svc := newTestService(t, src, &fakeLocator{}, &out)

	_, err := svc.RankAndEnrich(context.Background(), revenueQuery(5, true))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
	assert.ErrorIs(t, err, errRefused)
	assert.True(t, strings.Contains(out.String(), "analytics.rank.failed"))
	assert.Contains(t, out.String(), "Vest top")
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)

	_, err = NewService(ServiceParams{Source: &fakeSource{}})
	assert.Error(t, err)
}

func ptr[T any](v T) *T {
	return &v
}
