//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/gearbelt/api/internal/domain"
	pconfig "github.com/gearbelt/api/internal/platform/config"
	pfirestore "github.com/gearbelt/api/internal/platform/firestore"
	"github.com/gearbelt/api/internal/repositories"
)

func TestInventoryRepositoryIntegration(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}

	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })

	waitForEndpoint(t, endpoint, 30*time.Second)

	cfg := pconfig.FirestoreConfig{
		ProjectID:    "inventory-test",
		EmulatorHost: endpoint,
	}

	provider := pfirestore.NewProvider(cfg)
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	repo, err := NewInventoryRepository(provider)
	if err != nil {
		t.Fatalf("new inventory repository: %v", err)
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		t.Fatalf("new product repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Second)
	seed := []domain.Product{
		{ID: "prod_brake", PartNumber: "BRK-100", Name: "Brake Pad Set", PriceCents: 4999, Weight: 4.5, Quantity: 5, CreatedAt: now, UpdatedAt: now},
		{ID: "prod_filter", PartNumber: "FLT-200", Name: "Oil Filter", PriceCents: 1299, Weight: 1.0, Quantity: 2, CreatedAt: now, UpdatedAt: now},
	}
	for _, product := range seed {
		if err := products.Insert(ctx, product); err != nil {
			t.Fatalf("seed product %s: %v", product.ID, err)
		}
	}

	// Receiving desk replenishment.
	addResult, err := repo.Adjust(ctx, repositories.InventoryAdjustRequest{
		Adjustments: []repositories.InventoryAdjustment{
			{EntryID: "ile_add_1", ProductID: "prod_brake", QuantityChange: 10},
		},
		ActorID: "staff_receiving",
		Reason:  domain.ReasonStockAdded,
		Now:     now,
	})
	if err != nil {
		t.Fatalf("adjust add stock: %v", err)
	}
	if got := addResult.Products["prod_brake"].Quantity; got != 15 {
		t.Fatalf("expected quantity 15 after add, got %d", got)
	}
	if len(addResult.Entries) != 1 || addResult.Entries[0].QuantityAfter != 15 {
		t.Fatalf("unexpected ledger entries %+v", addResult.Entries)
	}

	// Order placement deduction across two products.
	deductResult, err := repo.Adjust(ctx, repositories.InventoryAdjustRequest{
		Adjustments: []repositories.InventoryAdjustment{
			{EntryID: "ile_ded_1", ProductID: "prod_brake", QuantityChange: -3},
			{EntryID: "ile_ded_2", ProductID: "prod_filter", QuantityChange: -2},
		},
		Reason:  domain.ReasonOrderPlaced,
		OrderID: "ord_test_1",
		Now:     now.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("adjust deduct: %v", err)
	}
	if got := deductResult.Products["prod_filter"].Quantity; got != 0 {
		t.Fatalf("expected filter quantity 0, got %d", got)
	}

	// A deduction driving any product negative aborts the whole batch.
	_, err = repo.Adjust(ctx, repositories.InventoryAdjustRequest{
		Adjustments: []repositories.InventoryAdjustment{
			{EntryID: "ile_bad_1", ProductID: "prod_brake", QuantityChange: -1},
			{EntryID: "ile_bad_2", ProductID: "prod_filter", QuantityChange: -1},
		},
		Reason:  domain.ReasonOrderPlaced,
		OrderID: "ord_test_2",
		Now:     now.Add(2 * time.Minute),
	})
	if err == nil {
		t.Fatalf("expected insufficient stock error")
	}
	var invErr *repositories.InventoryError
	if !errors.As(err, &invErr) || invErr.Code != repositories.InventoryErrorInsufficientStock {
		t.Fatalf("expected insufficient stock code, got %v", err)
	}
	if len(invErr.ProductIDs) != 1 || invErr.ProductIDs[0] != "prod_filter" {
		t.Fatalf("expected offending product prod_filter, got %v", invErr.ProductIDs)
	}

	brake, err := products.FindByID(ctx, "prod_brake")
	if err != nil {
		t.Fatalf("find brake: %v", err)
	}
	if brake.Quantity != 12 {
		t.Fatalf("failed batch must not change quantities, got %d", brake.Quantity)
	}

	// Ledger reflects only the committed batches, newest first.
	history, err := repo.History(ctx, repositories.InventoryHistoryFilter{ProductID: "prod_brake"})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 ledger entries for prod_brake, got %d", len(history))
	}
	if history[0].Reason != domain.ReasonOrderPlaced || history[1].Reason != domain.ReasonStockAdded {
		t.Fatalf("unexpected ledger order: %+v", history)
	}

	orderHistory, err := repo.History(ctx, repositories.InventoryHistoryFilter{OrderID: "ord_test_1"})
	if err != nil {
		t.Fatalf("history by order: %v", err)
	}
	if len(orderHistory) != 2 {
		t.Fatalf("expected 2 entries for ord_test_1, got %d", len(orderHistory))
	}

	// A product deleted from the catalog fails a plain restore batch.
	if err := products.Delete(ctx, "prod_filter"); err != nil {
		t.Fatalf("delete product: %v", err)
	}
	_, err = repo.Adjust(ctx, repositories.InventoryAdjustRequest{
		Adjustments: []repositories.InventoryAdjustment{
			{EntryID: "ile_res_1", ProductID: "prod_brake", QuantityChange: 3},
			{EntryID: "ile_res_2", ProductID: "prod_filter", QuantityChange: 2},
		},
		Reason:  domain.ReasonOrderCancelled,
		OrderID: "ord_test_1",
		Now:     now.Add(3 * time.Minute),
	})
	if !errors.As(err, &invErr) || invErr.Code != repositories.InventoryErrorProductNotFound {
		t.Fatalf("expected product not found for deleted catalog entry, got %v", err)
	}

	// With SkipMissing the vanished line is dropped and the rest commits.
	restoreResult, err := repo.Adjust(ctx, repositories.InventoryAdjustRequest{
		Adjustments: []repositories.InventoryAdjustment{
			{EntryID: "ile_res_3", ProductID: "prod_brake", QuantityChange: 3},
			{EntryID: "ile_res_4", ProductID: "prod_filter", QuantityChange: 2},
		},
		Reason:      domain.ReasonOrderCancelled,
		OrderID:     "ord_test_1",
		Now:         now.Add(4 * time.Minute),
		SkipMissing: true,
	})
	if err != nil {
		t.Fatalf("adjust restore with skip: %v", err)
	}
	if got := restoreResult.Products["prod_brake"].Quantity; got != 15 {
		t.Fatalf("expected brake quantity 15 after restore, got %d", got)
	}
	if len(restoreResult.SkippedProducts) != 1 || restoreResult.SkippedProducts[0] != "prod_filter" {
		t.Fatalf("expected prod_filter reported as skipped, got %v", restoreResult.SkippedProducts)
	}
	if len(restoreResult.Entries) != 1 {
		t.Fatalf("no ledger entry must be written for a skipped line, got %+v", restoreResult.Entries)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	addr, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to allocate port: %v", err)
	}
	defer addr.Close()
	return addr.Addr().(*net.TCPAddr).Port
}

func startFirestoreEmulator(t *testing.T, port int) string {
	t.Helper()
	args := []string{
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		firestoreEmulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080",
		"--quiet",
	}

	cmd := exec.Command("docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start firestore emulator: %v - %s", err, string(out))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "info")
	if err := cmd.Run(); err != nil {
		t.Fatalf("docker daemon not available: %v", err)
	}
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "stop", id)
	_ = cmd.Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatalf("firestore emulator at %s did not become ready within %s", endpoint, timeout)
}

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"
