package bigquery

import (
	"context"
	"net/http"
	"testing"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/salesrank-backend/pkg/config"
)

func TestConfiguredTables(t *testing.T) {
	tables, err := configuredTables(config.BigQueryConfig{ArticlesTable: " articles_v2 ", TransactionsTable: "transactions"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tables["articles"] != "articles_v2" || tables["transactions"] != "transactions" {
		t.Fatalf("unexpected tables %v", tables)
	}

	if _, err := configuredTables(config.BigQueryConfig{ArticlesTable: "articles"}); err == nil {
		t.Fatal("expected error when the transactions table is missing")
	}
}

func TestMissingColumns(t *testing.T) {
	schema := bigquery.Schema{
		{Name: "ARTICLE_ID"},
		{Name: "t_dat"},
		nil,
		{Name: "price"},
	}
	got := missingColumns(schema, requiredColumns["transactions"])
	if len(got) != 1 || got[0] != "sales_channel_id" {
		t.Fatalf("unexpected missing columns %v", got)
	}

	got = missingColumns(nil, requiredColumns["articles"])
	want := []string{"article_id", "prod_name", "product_group_name", "product_type_name", "product_type_no"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected sorted %v, got %v", want, got)
		}
	}
}

func TestTableRef(t *testing.T) {
	if got := tableRef("proj", "salesrank", " transactions "); got != "`proj.salesrank.transactions`" {
		t.Fatalf("unexpected table ref %s", got)
	}

	var client *Client
	if got := client.TableRef("articles"); got != "" {
		t.Fatalf("nil client should yield empty ref, got %s", got)
	}
}

func TestUninitializedClient(t *testing.T) {
	var client *Client
	if err := client.Ping(context.Background()); err != errClientNotInitialized {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if _, err := (&Client{}).Query(context.Background(), "SELECT 1", nil); err != errClientNotInitialized {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on nil client should be a no-op, got %v", err)
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(&googleapi.Error{Code: http.StatusNotFound}) {
		t.Fatal("404 should be not found")
	}
	if isNotFound(&googleapi.Error{Code: http.StatusForbidden}) {
		t.Fatal("403 should not be not found")
	}
	if isNotFound(context.DeadlineExceeded) {
		t.Fatal("plain errors should not be not found")
	}
}

func TestClientOptions(t *testing.T) {
	cases := map[string]struct {
		gcp  config.GCPConfig
		want int
	}{
		"json wins":  {gcp: config.GCPConfig{CredentialsJSON: `{"dummy": "value"}`, ApplicationCredentials: "/tmp/creds"}, want: 1},
		"file":       {gcp: config.GCPConfig{ApplicationCredentials: "/tmp/creds"}, want: 1},
		"ambient":    {gcp: config.GCPConfig{}, want: 0},
		"whitespace": {gcp: config.GCPConfig{CredentialsJSON: "  "}, want: 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := len(clientOptions(tc.gcp)); got != tc.want {
				t.Fatalf("expected %d options, got %d", tc.want, got)
			}
		})
	}
}
