package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/services"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage/sqlite"
)

func newService(t *testing.T) *services.NamespaceService {
	t.Helper()
	b, err := sqlite.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return services.NewNamespaceService(b.DB(), services.DialectSQLite)
}

func TestCreateNamespaceIfMissing(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	id, err := svc.CreateNamespaceIfMissing(ctx, "ops")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	again, err := svc.CreateNamespaceIfMissing(ctx, "  ops ")
	require.NoError(t, err)
	assert.Equal(t, id, again, "existing namespace keeps its id")

	other, err := svc.CreateNamespaceIfMissing(ctx, "finance")
	require.NoError(t, err)
	assert.NotEqual(t, id, other)

	names, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"finance", "ops"}, names)
}

func TestCreateNamespaceIfMissing_Concurrent(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	ids := make([]string, 8)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := svc.CreateNamespaceIfMissing(ctx, "shared")
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestNamespaceService_Errors(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, err := svc.CreateNamespaceIfMissing(ctx, " ")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
