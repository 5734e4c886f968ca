package health

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestStatus_States(t *testing.T) {
	tests := []struct {
		name                          string
		status                        Status
		healthy, degraded, unhealthy bool
	}{
		{"healthy", NewHealthy("nats", "connected"), true, false, false},
		{"degraded", NewDegraded("archive", "queue 90% full"), false, true, false},
		{"unhealthy", NewUnhealthy("storage", "closed"), false, false, true},
		{"empty", Status{}, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsHealthy(); got != tt.healthy {
				t.Errorf("IsHealthy() = %v, want %v", got, tt.healthy)
			}
			if got := tt.status.IsDegraded(); got != tt.degraded {
				t.Errorf("IsDegraded() = %v, want %v", got, tt.degraded)
			}
			if got := tt.status.IsUnhealthy(); got != tt.unhealthy {
				t.Errorf("IsUnhealthy() = %v, want %v", got, tt.unhealthy)
			}
			if tt.status.Healthy != tt.healthy {
				t.Errorf("Healthy field = %v, want %v", tt.status.Healthy, tt.healthy)
			}
		})
	}
}

func TestFromError(t *testing.T) {
	if s := FromError("storage", nil); !s.IsHealthy() {
		t.Fatalf("nil error should be healthy, got %s", s.Status)
	}

	s := FromError("storage", errors.New("dial postgres://scc:pw@10.0.0.5:5432/scc failed"))
	if !s.IsUnhealthy() {
		t.Fatalf("expected unhealthy, got %s", s.Status)
	}
	if strings.Contains(s.Message, "10.0.0.5") || strings.Contains(s.Message, "pw@") {
		t.Errorf("message not sanitized: %q", s.Message)
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"connect to nats://broker:4222 refused", "connect to [URL] refused"},
		{"dial tcp 10.1.2.3:5432: connection refused", "dial tcp [IP][PORT]: connection refused"},
		{"open /var/lib/scc/scc.db: permission denied", "open [PATH]: permission denied"},
		{"auth failed password=hunter2", "auth failed [REDACTED]"},
		{"bucket not found", "bucket not found"},
	}
	for _, tt := range tests {
		if got := sanitizeErrorMessage(tt.in); got != tt.want {
			t.Errorf("sanitizeErrorMessage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAggregate(t *testing.T) {
	if s := Aggregate("scc", nil); !s.IsHealthy() {
		t.Errorf("empty aggregate should be healthy")
	}

	s := Aggregate("scc", []Status{NewHealthy("nats", ""), NewDegraded("archive", "")})
	if !s.IsDegraded() || s.Message != "degraded: archive" {
		t.Errorf("got %s %q, want degraded naming archive", s.Status, s.Message)
	}
	if len(s.SubStatuses) != 2 {
		t.Errorf("expected 2 sub-statuses, got %d", len(s.SubStatuses))
	}

	s = Aggregate("scc", []Status{NewUnhealthy("nats", ""), NewDegraded("archive", ""), NewUnhealthy("storage", "")})
	if !s.IsUnhealthy() || s.Message != "unhealthy: nats, storage" {
		t.Errorf("got %s %q", s.Status, s.Message)
	}
}

func TestMonitor(t *testing.T) {
	m := NewMonitor("scc")
	if s := m.Check(); !s.IsHealthy() || s.Component != "scc" {
		t.Fatalf("empty monitor: %+v", s)
	}

	connected := true
	var mu sync.Mutex
	m.Register("nats", func() Status {
		mu.Lock()
		defer mu.Unlock()
		if connected {
			return NewHealthy("", "connected")
		}
		return NewUnhealthy("", "reconnecting")
	})
	m.Register("archive", func() Status { return NewHealthy("", "idle") })

	if got := m.Components(); len(got) != 2 || got[0] != "archive" || got[1] != "nats" {
		t.Errorf("Components() = %v", got)
	}

	s := m.Check()
	if !s.IsHealthy() {
		t.Fatalf("expected healthy, got %+v", s)
	}
	if s.SubStatuses[0].Component != "archive" || s.SubStatuses[1].Component != "nats" {
		t.Errorf("sub-statuses not named by registration: %+v", s.SubStatuses)
	}

	mu.Lock()
	connected = false
	mu.Unlock()
	if s := m.Check(); !s.IsUnhealthy() {
		t.Errorf("expected unhealthy after disconnect, got %s", s.Status)
	}

	m.Remove("nats")
	if s := m.Check(); !s.IsHealthy() {
		t.Errorf("expected healthy after removing nats, got %s", s.Status)
	}
}

func TestMonitor_ConcurrentAccess(t *testing.T) {
	m := NewMonitor("scc")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			m.Register(string(rune('a'+i)), func() Status { return NewHealthy("", "") })
		}(i)
		go func() {
			defer wg.Done()
			_ = m.Check()
		}()
	}
	wg.Wait()
	if n := len(m.Components()); n != 20 {
		t.Errorf("expected 20 components, got %d", n)
	}
}
