package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	job := "stock-alerts"

	m.ObserveDuration(job, 250*time.Millisecond)
	m.IncSuccess(job)
	m.IncFailure(job)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got := counterValue(t, mfs, "farmarket_cron_job_success_total", job); got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}
	if got := counterValue(t, mfs, "farmarket_cron_job_failure_total", job); got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}
	if got := histogramSum(t, mfs, "farmarket_cron_job_duration_seconds", job); got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
	if got := gaugeValue(t, mfs, "farmarket_cron_job_last_success_timestamp_seconds", job); got <= 0 {
		t.Fatalf("expected last success timestamp > 0, got %f", got)
	}
}

func TestCronJobMetricsNilReceiversAreSafe(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveDuration("x", time.Second)
	m.IncSuccess("x")
	m.IncFailure("x")

	unregistered := NewCronJobMetrics(nil)
	unregistered.IncSuccess("x")
}

func counterValue(t *testing.T, mfs []*dto.MetricFamily, name, job string) float64 {
	t.Helper()
	for _, metric := range metricsFor(mfs, name, job) {
		return metric.GetCounter().GetValue()
	}
	t.Fatalf("metric %q with job=%q not found", name, job)
	return 0
}

func histogramSum(t *testing.T, mfs []*dto.MetricFamily, name, job string) float64 {
	t.Helper()
	for _, metric := range metricsFor(mfs, name, job) {
		return metric.GetHistogram().GetSampleSum()
	}
	t.Fatalf("metric %q with job=%q not found", name, job)
	return 0
}

func gaugeValue(t *testing.T, mfs []*dto.MetricFamily, name, job string) float64 {
	t.Helper()
	for _, metric := range metricsFor(mfs, name, job) {
		return metric.GetGauge().GetValue()
	}
	t.Fatalf("metric %q with job=%q not found", name, job)
	return 0
}

func metricsFor(mfs []*dto.MetricFamily, name, job string) []*dto.Metric {
	var out []*dto.Metric
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "job" && label.GetValue() == job {
					out = append(out, metric)
				}
			}
		}
	}
	return out
}
