//go:build integration

package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
)

// setupRedisContainer starts a Redis container for testing
func setupRedisContainer(t *testing.T) (*redis.RedisContainer, string) {
	t.Helper()

	ctx := context.Background()

	redisContainer, err := redis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
		redis.WithSnapshotting(10, 1),
		redis.WithLogLevel(redis.LogLevelVerbose),
	)
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	endpoint, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}

	// Strip "redis://" prefix if present
	addr := endpoint
	if len(endpoint) > 8 && endpoint[:8] == "redis://" {
		addr = endpoint[8:]
	}

	t.Cleanup(func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return redisContainer, addr
}

func TestRedisStore_NewRedisStore_Success(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestRedisStore_NewRedisStore_EmptyAddr(t *testing.T) {
	_, err := NewRedisStore("", "", 0, 1*time.Minute)
	if err == nil {
		t.Fatal("expected error for empty address, got nil")
	}
	if err.Error() != "redis address cannot be empty" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestRedisStore_NewRedisStore_InvalidDB(t *testing.T) {
	_, err := NewRedisStore("localhost:6379", "", -1, 1*time.Minute)
	if err == nil {
		t.Fatal("expected error for negative db number, got nil")
	}
	if err.Error() != "redis database number must be >= 0" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestRedisStore_PutGet(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	original := testSnapshot("receiver01_2026_050_to_100")
	original.SolvedAt = original.SolvedAt.Truncate(time.Second)

	if err := store.Put(context.Background(), original); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Verify the key layout.
	ctx := context.Background()
	exists, err := store.client.Exists(ctx, "rxcal:solution:receiver01_2026_050_to_100").Result()
	if err != nil {
		t.Fatalf("failed to check key existence: %v", err)
	}
	if exists != 1 {
		t.Error("expected key to exist in Redis")
	}

	got, found, err := store.GetLatest(ctx, original.Observation)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if !found {
		t.Fatal("expected snapshot to be found")
	}
	if got.Observation != original.Observation {
		t.Errorf("observation mismatch: got %s, want %s", got.Observation, original.Observation)
	}
	if got.CTerms != original.CTerms || got.WTerms != original.WTerms {
		t.Errorf("term counts mismatch: got (%d, %d), want (%d, %d)",
			got.CTerms, got.WTerms, original.CTerms, original.WTerms)
	}
	if len(got.C1.Coeffs) != len(original.C1.Coeffs) {
		t.Fatalf("C1 coefficients length mismatch: got %d, want %d", len(got.C1.Coeffs), len(original.C1.Coeffs))
	}
	for i := range original.C1.Coeffs {
		if got.C1.Coeffs[i] != original.C1.Coeffs[i] {
			t.Errorf("C1 coeff[%d] mismatch: got %g, want %g", i, got.C1.Coeffs[i], original.C1.Coeffs[i])
		}
	}
	if got.Tsin.FMin != original.Tsin.FMin || got.Tsin.FMax != original.Tsin.FMax {
		t.Errorf("Tsin window mismatch: got [%g, %g]", got.Tsin.FMin, got.Tsin.FMax)
	}
}

func TestRedisStore_Put_EmptyObservation(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	err = store.Put(context.Background(), testSnapshot(""))
	if err == nil {
		t.Fatal("expected error for empty observation, got nil")
	}
	if err.Error() != "observation name required" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestRedisStore_Put_InvalidObservationName(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	if err := store.Put(context.Background(), testSnapshot("bad/observation")); err == nil {
		t.Fatal("expected error for invalid observation name, got nil")
	}
}

func TestRedisStore_GetLatest_NotFound(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	snapshot, found, err := store.GetLatest(context.Background(), "nonexistent")
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if found {
		t.Error("expected snapshot not to be found")
	}
	if snapshot.Observation != "" {
		t.Error("expected zero-value snapshot")
	}
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 2*time.Second)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	if err := store.Put(context.Background(), testSnapshot("ttl-test")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	_, found, err := store.GetLatest(context.Background(), "ttl-test")
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if !found {
		t.Fatal("expected snapshot to be found immediately after Put")
	}

	time.Sleep(3 * time.Second)

	_, found, err = store.GetLatest(context.Background(), "ttl-test")
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if found {
		t.Error("expected snapshot to be expired")
	}
}

func TestRedisStore_Concurrency_MultiplePuts(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	var wg sync.WaitGroup
	numGoroutines := 10
	numPutsPerGoroutine := 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(goroutineID int) {
			defer wg.Done()

			for j := 0; j < numPutsPerGoroutine; j++ {
				snap := testSnapshot(fmt.Sprintf("observation-%d-%d", goroutineID, j))
				if err := store.Put(context.Background(), snap); err != nil {
					t.Errorf("Put failed in goroutine %d: %v", goroutineID, err)
				}
			}
		}(i)
	}

	wg.Wait()

	for i := 0; i < numGoroutines; i++ {
		for j := 0; j < numPutsPerGoroutine; j++ {
			observation := fmt.Sprintf("observation-%d-%d", i, j)
			_, found, err := store.GetLatest(context.Background(), observation)
			if err != nil {
				t.Errorf("GetLatest failed for %s: %v", observation, err)
			}
			if !found {
				t.Errorf("snapshot not found for %s", observation)
			}
		}
	}
}

func TestRedisStore_Close_Idempotent(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
