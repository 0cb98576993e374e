package main

import (
	"testing"

	"coupon-system/pkg/config"
)

func TestShippedConfigLoads(t *testing.T) {
	cfg, err := config.Load("../../configs/config.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Kafka.GenerationTopic == "" || cfg.Kafka.ConsumerGroup == "" {
		t.Errorf("expected a topic and consumer group, got %+v", cfg.Kafka)
	}
	if cfg.Kafka.MaxAttempts < 1 {
		t.Errorf("expected at least one delivery attempt, got %d", cfg.Kafka.MaxAttempts)
	}
	if cfg.Server.MetricsPort == "" {
		t.Error("expected a metrics port")
	}
}
