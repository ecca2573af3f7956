package services_test

import (
	"context"
	"testing"

	"github.com/unsupervisednn/moonrider/internal/services"
)

func TestGenerationRoundTrip(t *testing.T) {
	ctx := services.WithGeneration(context.Background(), 42)
	if gen, ok := services.GenerationFromContext(ctx); !ok || gen != 42 {
		t.Fatalf("GenerationFromContext = %d, %v", gen, ok)
	}
	if _, ok := services.GenerationFromContext(context.Background()); ok {
		t.Fatal("expected no generation on a bare context")
	}
}

func TestStringValues(t *testing.T) {
	cases := []struct {
		name string
		with func(context.Context, string) context.Context
		from func(context.Context) (string, bool)
	}{
		{"stage", services.WithStage, services.StageFromContext},
		{"version", services.WithVersion, services.VersionFromContext},
		{"request id", services.WithRequestID, services.RequestIDFromContext},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := tc.with(context.Background(), "value-1")
			if got, ok := tc.from(ctx); !ok || got != "value-1" {
				t.Fatalf("got %q, %v", got, ok)
			}
			if _, ok := tc.from(tc.with(context.Background(), "")); ok {
				t.Fatal("blank value should not be stored")
			}
		})
	}
}

func TestValuesAreIndependent(t *testing.T) {
	ctx := services.WithStage(context.Background(), "fetching")
	ctx = services.WithVersion(ctx, "abc123")
	if stage, _ := services.StageFromContext(ctx); stage != "fetching" {
		t.Fatalf("stage = %q", stage)
	}
	if _, ok := services.RequestIDFromContext(ctx); ok {
		t.Fatal("request id should be unset")
	}
}
