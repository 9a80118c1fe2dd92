package storage_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/db"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/storage"
	"github.com/zulandar/signalbox/internal/storage/storagetest"
	"gorm.io/gorm"
)

func countAtoms(t *testing.T, gdb *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := gdb.Model(&models.KnowledgeAtom{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func insertAtom(id string) func(*gorm.DB) error {
	return func(tx *gorm.DB) error {
		return tx.Create(&models.KnowledgeAtom{ID: id, Title: id, ContentHash: id}).Error
	}
}

func TestNew_Validation(t *testing.T) {
	gdb := storagetest.OpenDB(t)
	tests := []struct {
		name    string
		opts    storage.Options
		wantErr string
	}{
		{"no providers", storage.Options{}, "at least one provider is required"},
		{"missing name", storage.Options{Providers: []storage.ProviderSpec{{DB: gdb}}}, "name is required"},
		{"missing db", storage.Options{Providers: []storage.ProviderSpec{{Name: "a"}}}, "needs a DB or a Dial func"},
		{"duplicate", storage.Options{Providers: []storage.ProviderSpec{{Name: "a", DB: gdb}, {Name: "a", DB: gdb}}}, "is duplicated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := storage.New(tt.opts)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDo_UsesPrimary(t *testing.T) {
	pool, dbs := storagetest.NewPool(t, "primary", "fallback")
	if err := pool.Do(context.Background(), insertAtom("a1")); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if countAtoms(t, dbs["primary"]) != 1 {
		t.Error("write should land on primary")
	}
	if countAtoms(t, dbs["fallback"]) != 0 {
		t.Error("fallback should be untouched")
	}
}

func TestDo_FailsOverMidFlight(t *testing.T) {
	pool, dbs := storagetest.NewPool(t, "primary", "fallback")
	storagetest.Break(t, dbs["primary"])

	if err := pool.Do(context.Background(), insertAtom("a1")); err != nil {
		t.Fatalf("Do should succeed on fallback: %v", err)
	}
	if countAtoms(t, dbs["fallback"]) != 1 {
		t.Error("write should land on fallback")
	}
	if h, _ := pool.Health("primary"); h != storage.Unhealthy {
		t.Errorf("primary health = %v, want unhealthy", h)
	}
	if h, _ := pool.Health("fallback"); h != storage.Healthy {
		t.Errorf("fallback health = %v, want healthy", h)
	}

	// Subsequent operations skip the unhealthy primary without retrying it.
	if err := pool.Do(context.Background(), insertAtom("a2")); err != nil {
		t.Fatalf("second Do: %v", err)
	}
	if countAtoms(t, dbs["fallback"]) != 2 {
		t.Error("second write should land on fallback")
	}
}

func TestDo_AllUnhealthy(t *testing.T) {
	pool, dbs := storagetest.NewPool(t, "primary", "fallback")
	storagetest.Break(t, dbs["primary"])
	storagetest.Break(t, dbs["fallback"])

	err := pool.Do(context.Background(), insertAtom("a1"))
	if !errors.Is(err, storage.ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}

	// Both are now unhealthy; the pool fails fast without touching them.
	calls := 0
	err = pool.Do(context.Background(), func(*gorm.DB) error { calls++; return nil })
	if !errors.Is(err, storage.ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
	if calls != 0 {
		t.Errorf("fn called %d times with no healthy provider", calls)
	}
}

func TestDo_RetriesOnlyOnce(t *testing.T) {
	pool, _ := storagetest.NewPool(t, "a", "b", "c")
	calls := 0
	err := pool.Do(context.Background(), func(*gorm.DB) error {
		calls++
		return errors.New("connection reset")
	})
	if !errors.Is(err, storage.ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", calls)
	}
	if h, _ := pool.Health("c"); h != storage.Healthy {
		t.Errorf("untried provider c = %v, want healthy", h)
	}
}

func TestDo_LogicalErrorsDoNotFailOver(t *testing.T) {
	logical := errors.New("bad input")
	tests := []struct {
		name string
		err  error
	}{
		{"record not found", gorm.ErrRecordNotFound},
		{"duplicate key", gorm.ErrDuplicatedKey},
		{"permanent", storage.Permanent(logical)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, _ := storagetest.NewPool(t, "primary", "fallback")
			calls := 0
			err := pool.Do(context.Background(), func(*gorm.DB) error {
				calls++
				return tt.err
			})
			if !errors.Is(err, tt.err) && !errors.Is(err, logical) {
				t.Errorf("err = %v, want %v", err, tt.err)
			}
			if calls != 1 {
				t.Errorf("calls = %d, want 1", calls)
			}
			if h, _ := pool.Health("primary"); h != storage.Healthy {
				t.Errorf("primary = %v, want healthy", h)
			}
		})
	}
}

func TestDo_RealDuplicateKeyIsLogical(t *testing.T) {
	pool, _ := storagetest.NewPool(t, "primary", "fallback")
	ctx := context.Background()
	if err := pool.Do(ctx, insertAtom("dup")); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := pool.Do(ctx, insertAtom("dup"))
	if err == nil {
		t.Fatal("expected duplicate key error")
	}
	if errors.Is(err, storage.ErrStorageUnavailable) {
		t.Fatalf("duplicate key must not fail over: %v", err)
	}
	if h, _ := pool.Health("primary"); h != storage.Healthy {
		t.Errorf("primary = %v, want healthy", h)
	}
}

func TestDo_CallerCancellation(t *testing.T) {
	pool, _ := storagetest.NewPool(t, "primary", "fallback")
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := pool.Do(ctx, func(*gorm.DB) error {
		calls++
		cancel()
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if h, _ := pool.Health("primary"); h != storage.Healthy {
		t.Errorf("primary = %v, want healthy after caller cancellation", h)
	}

	// An already-cancelled context never reaches a provider.
	if err := pool.Do(ctx, func(*gorm.DB) error { calls++; return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Error("fn must not run with a cancelled context")
	}
}

func TestCheckNow_RecoveryPath(t *testing.T) {
	broken := true
	dials := 0
	dial := func() (*gorm.DB, error) {
		dials++
		if broken {
			return nil, errors.New("dial tcp: connection refused")
		}
		gdb, err := db.Connect(config.ProviderConfig{Name: "primary", Driver: "sqlite", Path: ":memory:"})
		if err != nil {
			return nil, err
		}
		return gdb, db.AutoMigrate(gdb)
	}
	fallback := storagetest.OpenDB(t)
	pool, err := storage.New(storage.Options{Providers: []storage.ProviderSpec{
		{Name: "primary", Dial: dial},
		{Name: "fallback", DB: fallback},
	}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()
	if h, _ := pool.Health("primary"); h != storage.Unhealthy {
		t.Fatalf("primary = %v, want unhealthy after failed dial", h)
	}

	pool.CheckNow(ctx)
	if h, _ := pool.Health("primary"); h != storage.Unhealthy {
		t.Errorf("primary = %v, want still unhealthy", h)
	}

	broken = false
	pool.CheckNow(ctx)
	if h, _ := pool.Health("primary"); h != storage.Recovering {
		t.Errorf("primary = %v, want recovering after first good probe", h)
	}

	// Recovering providers do not serve traffic yet.
	if err := pool.Do(ctx, insertAtom("r1")); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if countAtoms(t, fallback) != 1 {
		t.Error("write during recovery should land on fallback")
	}

	pool.CheckNow(ctx)
	if h, _ := pool.Health("primary"); h != storage.Healthy {
		t.Errorf("primary = %v, want healthy after second good probe", h)
	}
	if dials != 3 {
		t.Errorf("dials = %d, want 3", dials)
	}
}

func TestCheckNow_RecoveringFailsBackToUnhealthy(t *testing.T) {
	fail := true
	dial := func() (*gorm.DB, error) {
		if fail {
			return nil, errors.New("refused")
		}
		return db.Connect(config.ProviderConfig{Name: "p", Driver: "sqlite", Path: ":memory:"})
	}
	pool, err := storage.New(storage.Options{Providers: []storage.ProviderSpec{{Name: "p", Dial: dial}}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()
	fail = false
	pool.CheckNow(ctx)
	if h, _ := pool.Health("p"); h != storage.Recovering {
		t.Fatalf("p = %v, want recovering", h)
	}
	// Break the freshly dialled handle; the next probe fails.
	status := pool.Status()
	if status[0].Health != "recovering" {
		t.Fatalf("status = %+v", status)
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	fail = true
	pool.CheckNow(ctx)
	if h, _ := pool.Health("p"); h != storage.Unhealthy {
		t.Errorf("p = %v, want unhealthy after failed probe while recovering", h)
	}
}

func TestCheckNow_ClosedProviderBecomesUnhealthy(t *testing.T) {
	pool, dbs := storagetest.NewPool(t, "primary", "fallback")
	storagetest.Break(t, dbs["primary"])
	pool.CheckNow(context.Background())
	if h, _ := pool.Health("primary"); h != storage.Unhealthy {
		t.Errorf("primary = %v, want unhealthy", h)
	}
	status := pool.Status()
	if status[0].LastError == "" {
		t.Error("status should carry the probe error")
	}
}

func TestSetOrder(t *testing.T) {
	pool, dbs := storagetest.NewPool(t, "primary", "fallback")
	if err := pool.SetOrder([]string{"fallback"}); err != nil {
		t.Fatalf("SetOrder: %v", err)
	}
	status := pool.Status()
	if status[0].Name != "fallback" || status[1].Name != "primary" {
		t.Errorf("order = %s,%s, want fallback,primary", status[0].Name, status[1].Name)
	}
	if err := pool.Do(context.Background(), insertAtom("a1")); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if countAtoms(t, dbs["fallback"]) != 1 {
		t.Error("write should follow the new priority order")
	}
	if err := pool.SetOrder([]string{"nope"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	pool, dbs := storagetest.NewPool(t, "primary")
	storagetest.Break(t, dbs["primary"])

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx, 10*time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for {
		if h, _ := pool.Health("primary"); h == storage.Unhealthy {
			break
		}
		select {
		case <-deadline:
			t.Fatal("health loop never marked the broken provider")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_RejectsZeroInterval(t *testing.T) {
	pool, _ := storagetest.NewPool(t)
	if err := pool.Run(context.Background(), 0); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestEach(t *testing.T) {
	pool, dbs := storagetest.NewPool(t, "a", "b")
	var seen []string
	err := pool.Each(func(name string, gdb *gorm.DB) error {
		seen = append(seen, name)
		return gdb.Create(&models.KnowledgeAtom{ID: "x", Title: "x", ContentHash: "x"}).Error
	})
	if err != nil {
		t.Fatalf("Each: %v", err)
	}
	if strings.Join(seen, ",") != "a,b" {
		t.Errorf("seen = %v", seen)
	}
	if countAtoms(t, dbs["b"]) != 1 {
		t.Error("Each should visit every provider")
	}
}
