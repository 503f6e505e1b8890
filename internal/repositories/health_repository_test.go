package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gearbelt/api/internal/domain"
)

func TestProbeHealthRepositoryAllHealthy(t *testing.T) {
	repo, err := NewProbeHealthRepository([]DependencyProbe{
		{Name: "firestore", Probe: func(context.Context) error { return nil }},
		{Name: "pubsub", Probe: func(context.Context) error { return nil }},
	})
	if err != nil {
		t.Fatalf("NewProbeHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected ok, got %s", report.Status)
	}
	if len(report.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(report.Checks))
	}
}

func TestProbeHealthRepositoryDegradedDependency(t *testing.T) {
	repo, err := NewProbeHealthRepository([]DependencyProbe{
		{Name: "firestore", Probe: func(context.Context) error { return nil }},
		{Name: "pubsub", Probe: func(context.Context) error { return errors.New("topic missing") }},
	})
	if err != nil {
		t.Fatalf("NewProbeHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	if report.Checks["pubsub"].Detail != "topic missing" {
		t.Fatalf("unexpected detail %q", report.Checks["pubsub"].Detail)
	}
}

func TestProbeHealthRepositoryTimeout(t *testing.T) {
	repo, err := NewProbeHealthRepository([]DependencyProbe{
		{
			Name:    "firestore",
			Timeout: 10 * time.Millisecond,
			Probe: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
	}, WithProbeTimeout(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewProbeHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected error status, got %s", report.Status)
	}
	if report.Checks["firestore"].Detail != "timeout" {
		t.Fatalf("unexpected detail %q", report.Checks["firestore"].Detail)
	}
}

func TestProbeHealthRepositoryRejectsInvalidProbes(t *testing.T) {
	if _, err := NewProbeHealthRepository(nil); err == nil {
		t.Fatal("expected error for empty probe set")
	}
	if _, err := NewProbeHealthRepository([]DependencyProbe{{Name: ""}}); err == nil {
		t.Fatal("expected error for unnamed probe")
	}
	if _, err := NewProbeHealthRepository([]DependencyProbe{{Name: "firestore"}}); err == nil {
		t.Fatal("expected error for probe without function")
	}
}
