package enums

import "testing"

func TestParseRankingMetric(t *testing.T) {
	cases := []struct {
		in      string
		want    RankingMetric
		wantErr bool
	}{
		{"units", RankingMetricUnits, false},
		{"revenue", RankingMetricRevenue, false},
		{"Revenue", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := ParseRankingMetric(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseRankingMetric(%q) = %q, %v", tc.in, got, err)
		}
	}
}

func TestParseStorageStrategy(t *testing.T) {
	if s, err := ParseStorageStrategy("presigned"); err != nil || s != StorageStrategyPresigned {
		t.Fatalf("unexpected result %q %v", s, err)
	}
	if _, err := ParseStorageStrategy("cdn"); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestParseSalesChannel(t *testing.T) {
	if c, err := ParseSalesChannel(2); err != nil || c != SalesChannelOnline {
		t.Fatalf("unexpected result %v %v", c, err)
	}
	if _, err := ParseSalesChannel(3); err == nil {
		t.Fatal("expected error for unknown channel")
	}
	if SalesChannelStore.String() != "store" {
		t.Fatalf("unexpected string %q", SalesChannelStore.String())
	}
}
