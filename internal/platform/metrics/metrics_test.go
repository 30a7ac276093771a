package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestRegisterAndRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	m.VoteRecorded("tts")
	m.VoteRecorded("tts")
	m.SetActiveSessions(3)
	m.SessionsSwept(2)
	m.SessionsSwept(0)

	votes := gather(t, reg, MetricVotesRecordedTotal)
	if votes == nil || votes.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Errorf("%s not recorded as 2", MetricVotesRecordedTotal)
	}
	active := gather(t, reg, MetricSessionsActive)
	if active == nil || active.GetMetric()[0].GetGauge().GetValue() != 3 {
		t.Errorf("%s != 3", MetricSessionsActive)
	}
	swept := gather(t, reg, MetricSessionsSweptTotal)
	if swept == nil || swept.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Errorf("%s != 2", MetricSessionsSweptTotal)
	}
}

func TestRegisterTwiceFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()
	if err := m.Register(reg); err != nil {
		t.Fatal(err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("second Register() = nil, want duplicate registration error")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.VoteRecorded("tts")
	m.VoteRejected("expired")
	m.SetActiveSessions(1)
	m.SessionsSwept(1)
	m.ObserveSynthesis("kokoro-v1", 0.5, true)
}
