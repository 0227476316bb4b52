package tenant

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-ai-api/internal/domain/entity"
	"z-novel-ai-api/internal/domain/repository"
	"z-novel-ai-api/internal/infrastructure/persistence/postgres"
)

type fakeTenantRepo struct {
	repository.TenantRepository
	getByIDCalls int32
	tenant       *entity.Tenant
}

func (f *fakeTenantRepo) GetByID(_ context.Context, id string) (*entity.Tenant, error) {
	atomic.AddInt32(&f.getByIDCalls, 1)
	time.Sleep(5 * time.Millisecond) // widen the race window for the singleflight test
	if f.tenant == nil {
		return nil, nil
	}
	t := *f.tenant
	t.ID = id
	return &t, nil
}

type fakeStyleRepo struct {
	repository.WritingStyleRepository
	mu         sync.Mutex
	global     []*entity.WritingStyle
	createCall int32
}

func (f *fakeStyleRepo) ListGlobal(_ context.Context) ([]*entity.WritingStyle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*entity.WritingStyle(nil), f.global...), nil
}

func (f *fakeStyleRepo) Create(_ context.Context, style *entity.WritingStyle) error {
	atomic.AddInt32(&f.createCall, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.global = append(f.global, style)
	return nil
}

func newTestRegistry(tenantRepo *fakeTenantRepo, styleRepo *fakeStyleRepo) *Registry {
	return NewRegistry(&postgres.Client{}, tenantRepo, styleRepo)
}

func TestRegistry_AcquireCachesHandle(t *testing.T) {
	tenantRepo := &fakeTenantRepo{tenant: entity.NewTenant("acme", "acme")}
	styleRepo := &fakeStyleRepo{}
	reg := newTestRegistry(tenantRepo, styleRepo)

	h1, err := reg.Acquire(context.Background(), "tenant-1")
	require.NoError(t, err)
	h2, err := reg.Acquire(context.Background(), "tenant-1")
	require.NoError(t, err)

	assert.Same(t, h1, h2, "second Acquire should return the cached handle")
	assert.EqualValues(t, 1, tenantRepo.getByIDCalls, "handle should be resolved exactly once")
}

func TestRegistry_AcquireSingleflightsConcurrentInit(t *testing.T) {
	tenantRepo := &fakeTenantRepo{tenant: entity.NewTenant("acme", "acme")}
	styleRepo := &fakeStyleRepo{}
	reg := newTestRegistry(tenantRepo, styleRepo)

	const n = 20
	var wg sync.WaitGroup
	handles := make([]*Handle, n)
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = reg.Acquire(context.Background(), "tenant-shared")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, handles[0], handles[i])
	}
	assert.EqualValues(t, 1, tenantRepo.getByIDCalls, "concurrent Acquire for the same tenant must init exactly once")
}

func TestRegistry_AcquireUnknownTenant(t *testing.T) {
	tenantRepo := &fakeTenantRepo{tenant: nil}
	styleRepo := &fakeStyleRepo{}
	reg := newTestRegistry(tenantRepo, styleRepo)

	_, err := reg.Acquire(context.Background(), "ghost")
	require.Error(t, err)
}

func TestRegistry_GlobalSeedRunsOnce(t *testing.T) {
	tenantRepo := &fakeTenantRepo{tenant: entity.NewTenant("acme", "acme")}
	styleRepo := &fakeStyleRepo{}
	reg := newTestRegistry(tenantRepo, styleRepo)

	_, err := reg.Acquire(context.Background(), "tenant-a")
	require.NoError(t, err)
	_, err = reg.Acquire(context.Background(), "tenant-b")
	require.NoError(t, err)

	assert.EqualValues(t, len(defaultGlobalStylePresets), styleRepo.createCall,
		"global presets should be seeded exactly once regardless of tenant count")
}

func TestRegistry_GlobalSeedSkippedWhenAlreadyPresent(t *testing.T) {
	tenantRepo := &fakeTenantRepo{tenant: entity.NewTenant("acme", "acme")}
	styleRepo := &fakeStyleRepo{global: []*entity.WritingStyle{entity.NewGlobalWritingStyle("默认", "", "")}}
	reg := newTestRegistry(tenantRepo, styleRepo)

	_, err := reg.Acquire(context.Background(), "tenant-a")
	require.NoError(t, err)

	assert.EqualValues(t, 0, styleRepo.createCall, "seed must not run when presets already exist")
}

func TestHandle_WriteLockExcludesConcurrentWriters(t *testing.T) {
	tenantRepo := &fakeTenantRepo{tenant: entity.NewTenant("acme", "acme")}
	styleRepo := &fakeStyleRepo{}
	reg := newTestRegistry(tenantRepo, styleRepo)

	h, err := reg.Acquire(context.Background(), "tenant-1")
	require.NoError(t, err)

	_, release, err := h.WriteLock(context.Background())
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		ctx, release2, err := h.WriteLock(context.Background())
		require.NoError(t, err)
		_ = ctx
		close(acquired)
		release2()
	}()

	select {
	case <-acquired:
		t.Fatal("second writer should not acquire the lock while the first holds it")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second writer should acquire the lock after release")
	}
}

func TestHandle_WriteLockIsReentrant(t *testing.T) {
	tenantRepo := &fakeTenantRepo{tenant: entity.NewTenant("acme", "acme")}
	styleRepo := &fakeStyleRepo{}
	reg := newTestRegistry(tenantRepo, styleRepo)

	h, err := reg.Acquire(context.Background(), "tenant-1")
	require.NoError(t, err)

	ctx, release1, err := h.WriteLock(context.Background())
	require.NoError(t, err)
	defer release1()

	// Same logical task (same context chain) re-enters without blocking.
	done := make(chan struct{})
	go func() {
		_, release2, err := h.WriteLock(ctx)
		require.NoError(t, err)
		release2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reentrant WriteLock on the same context chain should not block")
	}
}

func TestRegistry_CloseAllClearsCache(t *testing.T) {
	tenantRepo := &fakeTenantRepo{tenant: entity.NewTenant("acme", "acme")}
	styleRepo := &fakeStyleRepo{}
	reg := newTestRegistry(tenantRepo, styleRepo)

	_, err := reg.Acquire(context.Background(), "tenant-1")
	require.NoError(t, err)

	require.NoError(t, reg.CloseAll(context.Background()))

	_, err = reg.Acquire(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, tenantRepo.getByIDCalls, "after CloseAll, the next Acquire should re-resolve the tenant")
}
