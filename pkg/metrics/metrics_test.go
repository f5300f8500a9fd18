package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var testCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "spacesync_metrics_test_total",
	Help: "Counter used by the metrics package tests",
})

func TestRegistry(t *testing.T) {
	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestHandler(t *testing.T) {
	testCounter.Add(3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "spacesync_metrics_test_total 3") {
		t.Errorf("body does not contain the test counter:\n%s", body)
	}
}

func TestNames(t *testing.T) {
	testCounter.Inc()

	names, err := Names()
	if err != nil {
		t.Fatalf("Names() error = %v", err)
	}
	found := false
	for _, n := range names {
		if !strings.HasPrefix(n, Prefix) {
			t.Errorf("Names() returned %q without prefix", n)
		}
		if n == "spacesync_metrics_test_total" {
			found = true
		}
	}
	if !found {
		t.Errorf("Names() = %v, want spacesync_metrics_test_total", names)
	}
}
