package main

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/tawa/internal/config"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage.Backend = config.StorageMemory
	cfg.STT.Provider = config.STTMock
	return cfg
}

func TestBuildDependencies_HumeWithoutKey(t *testing.T) {
	cfg := memoryConfig()
	cfg.Emotion.Provider = config.EmotionHume
	cfg.Emotion.HumeKey = ""

	d, err := buildDependencies(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Expected startup without a hume key, got %v", err)
	}
	defer d.Close()

	if d.Emotions != nil {
		t.Error("Expected no emotion analyzer without a hume key")
	}
	status := d.Status(cfg)
	if status.Emotion.Configured {
		t.Error("Expected emotion provider reported as unconfigured")
	}
	if status.Emotion.Provider != config.EmotionHume {
		t.Errorf("Expected provider %q, got %q", config.EmotionHume, status.Emotion.Provider)
	}
}

func TestBuildDependencies_EmotionProviders(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		key      string
		wantSet  bool
	}{
		{"hume with key", config.EmotionHume, "hume-key", true},
		{"mock", config.EmotionMock, "", true},
		{"none", config.EmotionNone, "hume-key", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig()
			cfg.Emotion.Provider = tt.provider
			cfg.Emotion.HumeKey = tt.key

			d, err := buildDependencies(context.Background(), cfg, zaptest.NewLogger(t))
			if err != nil {
				t.Fatalf("buildDependencies: %v", err)
			}
			defer d.Close()

			if (d.Emotions != nil) != tt.wantSet {
				t.Errorf("Expected analyzer set=%v, got %v", tt.wantSet, d.Emotions != nil)
			}
			if d.Status(cfg).Emotion.Configured != tt.wantSet {
				t.Errorf("Expected configured=%v", tt.wantSet)
			}
		})
	}
}
