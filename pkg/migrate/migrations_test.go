package migrate_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/salesrank-backend/pkg/config"
	"github.com/angelmondragon/salesrank-backend/pkg/db"
	"github.com/angelmondragon/salesrank-backend/pkg/logger"
	"github.com/angelmondragon/salesrank-backend/pkg/migrate"
)

func TestEmbeddedMigrationsMatchSourceDir(t *testing.T) {
	require.NoError(t, migrate.Validate(migrate.Migrations()))
	require.NoError(t, migrate.Validate(os.DirFS("migrations")))

	embedded, err := fs.Glob(migrate.Migrations(), "*.sql")
	require.NoError(t, err)
	onDisk, err := fs.Glob(os.DirFS("migrations"), "*.sql")
	require.NoError(t, err)
	assert.Equal(t, onDisk, embedded)
}

func TestTransactionsMigrationContainsRankingIndexes(t *testing.T) {
	content := readMigration(t, "*_create_transactions.sql")

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS transactions",
		"FOREIGN KEY (article_id) REFERENCES articles(article_id) ON DELETE CASCADE",
		"CHECK (sales_channel_id IN (1, 2))",
		"ON transactions (article_id, t_dat)",
		"DROP TABLE IF EXISTS transactions",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestArticlesMigrationIndexesScopeFilters(t *testing.T) {
	content := readMigration(t, "*_create_articles.sql")

	for _, sub := range []string{
		"article_id BIGINT PRIMARY KEY",
		"ON articles (product_type_name)",
		"ON articles (product_type_no)",
		"DROP TABLE IF EXISTS articles",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC)

	path, err := migrate.CreateSQLMigration(dir, "Add Article Colours!", now)
	require.NoError(t, err)
	assert.Equal(t, "20250302093000_add_article_colours.sql", filepath.Base(path))
	assert.NoError(t, migrate.Validate(os.DirFS(dir)))

	_, err = migrate.CreateSQLMigration(dir, "add article colours", now)
	assert.Error(t, err, "same version and slug must not overwrite")

	_, err = migrate.CreateSQLMigration(dir, "!!!", now)
	assert.Error(t, err)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	fsys := fstest.MapFS{
		"bad-name.sql":                  {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20250101000000_no_down.sql":    {Data: []byte("-- +goose Up\nSELECT 1;\n")},
		"20250101000000_duplicate.sql":  {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20250102000000_unbalanced.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n")},
		"README.md":                     {Data: []byte("ignored")},
	}

	err := migrate.Validate(fsys)
	require.Error(t, err)

	errs := multierr.Errors(err)
	assert.Len(t, errs, 3)
	msg := err.Error()
	assert.Contains(t, msg, "bad-name.sql: expected YYYYMMDDHHMMSS_name.sql")
	assert.Contains(t, msg, "already used by 20250101000000_duplicate.sql")
	assert.Contains(t, msg, "20250102000000_unbalanced.sql: unterminated StatementBegin")
	assert.NotContains(t, msg, "README")
}

func TestParseVersion(t *testing.T) {
	v, err := migrate.ParseVersion("20250301120500")
	require.NoError(t, err)
	assert.Equal(t, int64(20250301120500), v)

	for _, raw := range []string{"", "2025", "2025030112050x", "202503011205001"} {
		_, err := migrate.ParseVersion(raw)
		assert.Error(t, err, raw)
	}
}

func TestMaybeRunDevAutoMigratesSQLite(t *testing.T) {
	ctx := context.Background()
	client, err := db.New(ctx, config.DBConfig{
		Driver: config.DBDriverSQLite,
		DSN:    "file:automigrate?mode=memory&cache=shared",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvDev},
		FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true},
	}
	require.NoError(t, migrate.MaybeRunDev(ctx, cfg, logger.New(logger.Options{ServiceName: "migrate-test"}), client))

	counts, err := client.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, db.Counts{}, counts)
}

func TestMaybeRunDevSkipsOutsideDev(t *testing.T) {
	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvProd},
		FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true},
	}
	assert.NoError(t, migrate.MaybeRunDev(context.Background(), cfg, nil, nil))
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := fs.Glob(migrate.Migrations(), pattern)
	require.NoError(t, err)
	require.NotEmpty(t, matches, "no migration matching %s", pattern)

	data, err := fs.ReadFile(migrate.Migrations(), matches[0])
	require.NoError(t, err)
	return string(data)
}
