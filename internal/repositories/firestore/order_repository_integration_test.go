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

	domain "github.com/Alae213/gayla-shop-sub001/internal/domain"
	pconfig "github.com/Alae213/gayla-shop-sub001/internal/platform/config"
	pfirestore "github.com/Alae213/gayla-shop-sub001/internal/platform/firestore"
	"github.com/Alae213/gayla-shop-sub001/internal/repositories"
)

func TestOrderRepositoryIntegration(t *testing.T) {
	provider := startEmulatorProvider(t, "orders-test")

	repo, err := NewOrderRepository(provider)
	if err != nil {
		t.Fatalf("new order repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	order := domain.Order{
		ID:            "ord_it_1",
		OrderNumber:   "GAY-000001-AAAA",
		Customer:      domain.Customer{Name: "Amina", Phone: "0550123456", Destination: domain.Destination{ID: "16"}},
		DeliveryMode:  domain.DeliveryModeDomicile,
		DeliveryCost:  400,
		Items:         []domain.OrderLineItem{{ProductID: "prod-1", Name: "Tote", Quantity: 2, UnitPrice: 2000, LineTotal: 4000}},
		TotalAmount:   4400,
		Status:        domain.OrderStatusNew,
		StatusHistory: []domain.StatusHistoryEntry{{Status: domain.OrderStatusNew, Timestamp: now}},
		CreatedAt:     now,
		LastUpdated:   now,
	}
	if err := repo.Insert(ctx, order); err != nil {
		t.Fatalf("insert: %v", err)
	}

	exists, err := repo.OrderNumberExists(ctx, order.OrderNumber)
	if err != nil || !exists {
		t.Fatalf("expected order number to exist, got %v %v", exists, err)
	}

	duplicate := order
	duplicate.ID = "ord_it_2"
	err = repo.Insert(ctx, duplicate)
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict for duplicate order number, got %v", err)
	}

	updated, err := repo.Mutate(ctx, order.ID, func(o *domain.Order) error {
		o.CallLog = append(o.CallLog, domain.CallLogEntry{Timestamp: now, Outcome: domain.CallOutcomeNoAnswer})
		o.CallAttempts++
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if updated.CallAttempts != 1 {
		t.Fatalf("expected 1 call attempt got %d", updated.CallAttempts)
	}

	aborted := errors.New("abort")
	if _, err := repo.Mutate(ctx, order.ID, func(*domain.Order) error { return aborted }); !errors.Is(err, aborted) {
		t.Fatalf("expected mutation error to surface, got %v", err)
	}

	if _, err := repo.Mutate(ctx, "ord_missing", func(*domain.Order) error { return nil }); !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := repo.Delete(ctx, order.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.FindByID(ctx, order.ID); !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if exists, _ := repo.OrderNumberExists(ctx, order.OrderNumber); exists {
		t.Fatalf("expected order number reservation to be released")
	}
}

func TestCatalogRepositoriesIntegration(t *testing.T) {
	provider := startEmulatorProvider(t, "catalog-test")
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	bans, err := NewBanRepository(provider)
	if err != nil {
		t.Fatalf("new ban repository: %v", err)
	}
	if err := bans.Ban(ctx, "+213 550 12 34 56", "fake orders"); err != nil {
		t.Fatalf("ban: %v", err)
	}
	banned, err := bans.IsBanned(ctx, "0550123456")
	if err != nil || !banned {
		t.Fatalf("expected phone to be banned, got %v %v", banned, err)
	}

	rates, err := NewDeliveryRateRepository(provider)
	if err != nil {
		t.Fatalf("new delivery rate repository: %v", err)
	}
	if err := rates.SetRates(ctx, domain.DeliveryRates{DestinationID: "16", DomicileCost: 400, StopdeskCost: 250}, "Alger"); err != nil {
		t.Fatalf("set rates: %v", err)
	}
	got, err := rates.FindRates(ctx, "16")
	if err != nil {
		t.Fatalf("find rates: %v", err)
	}
	if got.DomicileCost != 400 || got.StopdeskCost != 250 {
		t.Fatalf("unexpected rates %+v", got)
	}

	var repoErr repositories.RepositoryError
	if _, err := rates.FindRates(ctx, "99"); !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not found for unknown destination, got %v", err)
	}
}

func startEmulatorProvider(t *testing.T, projectID string) *pfirestore.Provider {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}
	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })

	waitForEndpoint(t, endpoint, 30*time.Second)

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    projectID,
		EmulatorHost: endpoint,
	})
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})
	return provider
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

	out, err := exec.Command("docker", args...).CombinedOutput()
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
	if err := exec.CommandContext(ctx, "docker", "info").Run(); err != nil {
		t.Fatalf("docker daemon not available: %v", err)
	}
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = exec.CommandContext(ctx, "docker", "stop", id).Run()
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
