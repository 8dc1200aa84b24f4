package hue

import (
	"context"
	"testing"
	"time"
)

type staticStats struct{ stats AdapterStatistics }

func (s staticStats) Stats() AdapterStatistics { return s.stats }

func TestHealthReporterStatus(t *testing.T) {
	tests := []struct {
		name       string
		connected  bool
		stats      StatsProvider
		wantStatus HealthStatus
	}{
		{"healthy", true, staticStats{AdapterStatistics{HardwareOK: true}}, HealthHealthy},
		{"mqtt down", false, staticStats{AdapterStatistics{HardwareOK: true}}, HealthDegraded},
		{"hardware failing", true, staticStats{AdapterStatistics{HardwareOK: false}}, HealthDegraded},
		{"no stats", true, nil, HealthHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthReporter(HealthReporterConfig{
				BridgeID:  "b",
				Publisher: &MockHealthPublisher{connected: tt.connected},
				Stats:     tt.stats,
			})
			if got, _ := h.Status(); got != tt.wantStatus {
				t.Errorf("Status() = %s, want %s", got, tt.wantStatus)
			}
		})
	}
}

func TestHealthReporterMessage(t *testing.T) {
	pub := &MockHealthPublisher{connected: true}
	h := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "hue-bridge-01",
		Version:   "1.2.3",
		Publisher: pub,
		Stats:     staticStats{AdapterStatistics{Commands: 4, Broadcasts: 6, Errors: 1, HardwareOK: true}},
	})
	h.SetDeviceCount(5)

	if err := h.PublishNow(); err != nil {
		t.Fatalf("PublishNow() error = %v", err)
	}

	msgs := pub.GetPublished()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	m := msgs[0]
	if m.Bridge != "hue-bridge-01" || m.Version != "1.2.3" || m.DevicesManaged != 5 {
		t.Errorf("message = %+v", m)
	}
	if m.Statistics.Commands != 4 || m.Statistics.Broadcasts != 6 || m.Statistics.Errors != 1 {
		t.Errorf("statistics = %+v", m.Statistics)
	}
}

func TestHealthReporterPeriodic(t *testing.T) {
	pub := &MockHealthPublisher{connected: true}
	h := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "b",
		Interval:  10 * time.Millisecond,
		Publisher: pub,
	})

	h.Start(context.Background())
	time.Sleep(55 * time.Millisecond)
	h.Stop()
	h.Stop()

	msgs := pub.GetPublished()
	if len(msgs) < 3 {
		t.Fatalf("published %d messages, want at least 3", len(msgs))
	}
	if msgs[len(msgs)-1].Status != HealthStopping {
		t.Errorf("last status = %s, want stopping", msgs[len(msgs)-1].Status)
	}
}

func TestHealthReporterNilPublisher(t *testing.T) {
	h := NewHealthReporter(HealthReporterConfig{BridgeID: "b"})
	if err := h.PublishNow(); err != nil {
		t.Errorf("PublishNow() error = %v", err)
	}
	if h.interval != defaultHealthInterval {
		t.Errorf("interval = %v, want default", h.interval)
	}
}
