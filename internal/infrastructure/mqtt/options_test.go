package mqtt

import (
	"encoding/json"
	"testing"

	"github.com/vcstech/pulseline-core/internal/infrastructure/config"
)

func TestStatusPayload(t *testing.T) {
	payload := statusPayload(statusOffline, "pulseline-core", reasonGracefulShutdown)

	var status systemStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		t.Fatalf("status payload is not valid JSON: %v", err)
	}
	if status.Status != statusOffline {
		t.Errorf("status = %q, want %q", status.Status, statusOffline)
	}
	if status.ClientID != "pulseline-core" {
		t.Errorf("client_id = %q, want pulseline-core", status.ClientID)
	}
	if status.Reason != reasonGracefulShutdown {
		t.Errorf("reason = %q, want %q", status.Reason, reasonGracefulShutdown)
	}
	if status.Timestamp == "" {
		t.Error("timestamp missing")
	}
}

func TestStatusPayloadOmitsEmptyReason(t *testing.T) {
	payload := statusPayload(statusOnline, "pulseline-core", "")

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("status payload is not valid JSON: %v", err)
	}
	if _, ok := raw["reason"]; ok {
		t.Error("online status should not carry a reason field")
	}
}

func TestBuildClientOptionsBrokerURL(t *testing.T) {
	tests := []struct {
		name string
		tls  bool
		want string
	}{
		{name: "plaintext", tls: false, want: "tcp://broker.local:1883"},
		{name: "tls", tls: true, want: "ssl://broker.local:1883"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.MQTTConfig{
				Broker: config.MQTTBrokerConfig{
					Host:     "broker.local",
					Port:     1883,
					ClientID: "pulseline-core",
					TLS:      tt.tls,
				},
			}

			opts := buildClientOptions(cfg)
			if len(opts.Servers) != 1 {
				t.Fatalf("expected 1 broker URL, got %d", len(opts.Servers))
			}
			if got := opts.Servers[0].String(); got != tt.want {
				t.Errorf("broker URL = %q, want %q", got, tt.want)
			}
		})
	}
}
