package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/salesrank-backend/pkg/config"
	"github.com/angelmondragon/salesrank-backend/pkg/logger"
)

const metadataCheckTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// requiredColumns lists the columns the ranking query reads from each warehouse table.
var requiredColumns = map[string][]string{
	"articles":     {"article_id", "prod_name", "product_type_no", "product_type_name", "product_group_name"},
	"transactions": {"t_dat", "article_id", "price", "sales_channel_id"},
}

// Client runs read-only ranking queries against the warehouse copy of the
// sales tables.
type Client struct {
	client    *bigquery.Client
	dataset   *bigquery.Dataset
	projectID string
	location  string
	maxBytes  int64
	tables    map[string]string
}

// NewClient connects to BigQuery and checks that the dataset exists and both
// tables expose the columns the ranking query needs.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}
	tables, err := configuredTables(cfg)
	if err != nil {
		return nil, err
	}

	bqClient, err := bigquery.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	if cfg.Location != "" {
		bqClient.Location = cfg.Location
	}

	client := &Client{
		client:    bqClient,
		dataset:   bqClient.Dataset(datasetID),
		projectID: projectID,
		location:  cfg.Location,
		maxBytes:  cfg.MaxBytesBilled,
		tables:    tables,
	}
	if err := client.verifySchema(ctx); err != nil {
		_ = bqClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"dataset": datasetID, "location": cfg.Location}), "bigquery client initialized")
	}
	return client, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	default:
		return nil
	}
}

// configuredTables maps the logical table names onto their configured names.
func configuredTables(cfg config.BigQueryConfig) (map[string]string, error) {
	tables := map[string]string{
		"articles":     strings.TrimSpace(cfg.ArticlesTable),
		"transactions": strings.TrimSpace(cfg.TransactionsTable),
	}
	for logical, name := range tables {
		if name == "" {
			return nil, fmt.Errorf("bigquery %s table name is required", logical)
		}
	}
	return tables, nil
}

func (c *Client) verifySchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()

	if err := c.checkDataset(ctx); err != nil {
		return err
	}
	for _, logical := range []string{"articles", "transactions"} {
		name := c.tables[logical]
		md, err := c.dataset.Table(name).Metadata(ctx)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("table %q does not exist", name)
			}
			return fmt.Errorf("checking table %q: %w", name, err)
		}
		if missing := missingColumns(md.Schema, requiredColumns[logical]); len(missing) > 0 {
			return fmt.Errorf("table %q is missing columns: %s", name, strings.Join(missing, ", "))
		}
	}
	return nil
}

func (c *Client) checkDataset(ctx context.Context) error {
	if _, err := c.dataset.Metadata(ctx); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
		}
		return fmt.Errorf("checking dataset %q: %w", c.dataset.DatasetID, err)
	}
	return nil
}

func missingColumns(schema bigquery.Schema, want []string) []string {
	have := make(map[string]struct{}, len(schema))
	for _, field := range schema {
		if field != nil {
			have[strings.ToLower(field.Name)] = struct{}{}
		}
	}
	var missing []string
	for _, col := range want {
		if _, ok := have[col]; !ok {
			missing = append(missing, col)
		}
	}
	sort.Strings(missing)
	return missing
}

// Ping is the readiness probe; it only reads dataset metadata.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()
	return c.checkDataset(ctx)
}

// TableRef returns the backtick-quoted `project.dataset.table` reference.
func (c *Client) TableRef(table string) string {
	if c == nil || c.dataset == nil {
		return ""
	}
	return tableRef(c.projectID, c.dataset.DatasetID, table)
}

func tableRef(project, dataset, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", project, dataset, strings.TrimSpace(table))
}

// Query runs a parameterised read query and returns its row iterator.
// MaxBytesBilled, when configured, caps what a single ranking may scan.
func (c *Client) Query(ctx context.Context, sql string, params []bigquery.QueryParameter) (*bigquery.RowIterator, error) {
	q, err := c.newQuery(sql, params)
	if err != nil {
		return nil, err
	}
	return q.Read(ctx)
}

func (c *Client) newQuery(sql string, params []bigquery.QueryParameter) (*bigquery.Query, error) {
	if c == nil || c.client == nil {
		return nil, errClientNotInitialized
	}
	if strings.TrimSpace(sql) == "" {
		return nil, errors.New("sql query is required")
	}
	q := c.client.Query(sql)
	q.Parameters = params
	q.Labels = map[string]string{"service": "salesrank", "workload": "ranking"}
	if c.location != "" {
		q.Location = c.location
	}
	if c.maxBytes > 0 {
		q.MaxBytesBilled = c.maxBytes
	}
	return q, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
