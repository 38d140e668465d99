package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterToleratesDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}
}

func TestObserveUpdatesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}

	ObserveIngest("upload")
	ObserveImputed("numeric", 3)
	ObserveImputed("numeric", 0)
	ObserveInsights(150*time.Millisecond, OutcomeAPIError)
	ObserveInsights(-time.Second, "weird")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	counters := map[string]float64{}
	var histCount uint64
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "/" + lp.GetValue()
			}
			if c := m.GetCounter(); c != nil {
				counters[key] = c.GetValue()
			}
			if h := m.GetHistogram(); h != nil {
				histCount = h.GetSampleCount()
			}
		}
	}

	if counters["edaloom_datasets_ingested_total/upload"] < 1 {
		t.Fatalf("ingest counter not incremented: %v", counters)
	}
	if counters["edaloom_cells_imputed_total/numeric"] < 3 {
		t.Fatalf("imputed counter = %v", counters["edaloom_cells_imputed_total/numeric"])
	}
	if counters["edaloom_insights_requests_total/api_error"] < 1 || counters["edaloom_insights_requests_total/transport_error"] < 1 {
		t.Fatalf("insights outcomes not recorded: %v", counters)
	}
	if histCount < 2 {
		t.Fatalf("histogram sample count = %d", histCount)
	}
}
