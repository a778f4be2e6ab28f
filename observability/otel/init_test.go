package otel

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" api-key = abc ,broken, =x,tenant=loyalty")
	if len(got) != 2 {
		t.Fatalf("expected 2 headers, got %v", got)
	}
	if got["api-key"] != "abc" || got["tenant"] != "loyalty" {
		t.Fatalf("unexpected headers %v", got)
	}
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "loyalty-gateway"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitRequiresServiceName(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error without service name")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "false")
	cfg := FromEnv("loyalty-gateway", "prod", true)
	if cfg.Endpoint != "collector:4318" || cfg.Insecure || !cfg.Traces {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Metrics {
		t.Fatalf("otlp metrics must be opt-in")
	}
}

func TestFromEnvExporterSelection(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "none")
	t.Setenv("OTEL_METRICS_EXPORTER", "OTLP")
	cfg := FromEnv("loyalty-gateway", "", true)
	if cfg.Traces {
		t.Fatalf("OTEL_TRACES_EXPORTER=none must disable traces")
	}
	if !cfg.Metrics {
		t.Fatalf("OTEL_METRICS_EXPORTER=otlp must enable metrics")
	}
	if FromEnv("loyalty-gateway", "", false).Traces {
		t.Fatalf("tracing switch off must disable traces")
	}
}
