package cart

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"shopcore/internal/clock"
	"shopcore/internal/model"

	"github.com/docker/go-connections/nat"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type fakeCatalog map[int64]*model.Product

func (c fakeCatalog) GetByID(_ context.Context, id int64) (*model.Product, error) {
	return c[id], nil
}

var testNow = time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)

// setupRedis starts a Redis container and returns a client bound to it.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, nat.Port("6379/tcp"))
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func newTestStore(t *testing.T, catalog fakeCatalog) (*Store, *redis.Client) {
	client := setupRedis(t)
	return NewStore(client, catalog, time.Hour, clock.NewFixedClock(testNow), zerolog.Nop()), client
}

func testCatalog() fakeCatalog {
	return fakeCatalog{
		1: {ID: 1, Name: "Mug", Price: decimal.RequireFromString("8.50"), IsActive: true},
		2: {ID: 2, Name: "Tea", Price: decimal.RequireFromString("4.25"), IsActive: true},
		3: {ID: 3, Name: "Retired", Price: decimal.RequireFromString("1.00"), IsActive: false},
	}
}

func pid(id int64) *int64 { return &id }

func TestStore_AddItemCapturesPriceAndMerges(t *testing.T) {
	catalog := testCatalog()
	store, client := newTestStore(t, catalog)
	ctx := context.Background()

	_, err := store.AddItem(ctx, 42, AddItemRequest{ProductID: pid(1), Quantity: 2})
	require.NoError(t, err)

	// Later price changes do not touch the captured price.
	catalog[1].Price = decimal.RequireFromString("99.00")

	cart, err := store.AddItem(ctx, 42, AddItemRequest{ProductID: pid(1), Quantity: 3})
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("8.50").Equal(cart.Items[0].CapturedPrice))
	assert.Equal(t, "Mug", cart.Items[0].Name)
	assert.Equal(t, testNow, cart.UpdatedAt)

	ttl, err := client.TTL(ctx, cartKey(42)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
}

func TestStore_DropshipLines(t *testing.T) {
	store, _ := newTestStore(t, testCatalog())
	ctx := context.Background()
	price := decimal.RequireFromString("12.345")

	cart, err := store.AddItem(ctx, 7, AddItemRequest{ExternalCode: "SUP-1", Name: "Supplier lamp", Price: &price, Quantity: 1})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Nil(t, cart.Items[0].ProductID)
	assert.True(t, decimal.RequireFromString("12.35").Equal(cart.Items[0].CapturedPrice))

	cart, err = store.RemoveExternal(ctx, 7, "SUP-1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestStore_AddItemRejections(t *testing.T) {
	store, _ := newTestStore(t, testCatalog())
	ctx := context.Background()

	tests := []struct {
		name     string
		req      AddItemRequest
		expected model.ErrorKind
	}{
		{name: "zero quantity", req: AddItemRequest{ProductID: pid(1)}, expected: model.KindValidation},
		{name: "unknown product", req: AddItemRequest{ProductID: pid(99), Quantity: 1}, expected: model.KindNotFound},
		{name: "inactive product", req: AddItemRequest{ProductID: pid(3), Quantity: 1}, expected: model.KindUnavailable},
		{name: "no product or code", req: AddItemRequest{Quantity: 1}, expected: model.KindValidation},
		{name: "dropship without price", req: AddItemRequest{ExternalCode: "X", Name: "x", Quantity: 1}, expected: model.KindValidation},
		{name: "both product and code", req: AddItemRequest{ProductID: pid(1), ExternalCode: "X", Quantity: 1}, expected: model.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.AddItem(ctx, 1, tt.req)
			assert.Equal(t, tt.expected, model.KindOf(err))
		})
	}
}

func TestStore_GetRemoveClear(t *testing.T) {
	store, _ := newTestStore(t, testCatalog())
	ctx := context.Background()

	empty, err := store.Get(ctx, 5)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, int64(5), empty.CustomerID)

	_, err = store.AddItem(ctx, 5, AddItemRequest{ProductID: pid(2), Quantity: 1})
	require.NoError(t, err)
	_, err = store.AddItem(ctx, 5, AddItemRequest{ProductID: pid(1), Quantity: 1})
	require.NoError(t, err)

	cart, err := store.Get(ctx, 5)
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, int64(1), *cart.Items[0].ProductID)

	cart, err = store.RemoveItem(ctx, 5, 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	_, err = store.RemoveItem(ctx, 5, 1)
	assert.Equal(t, model.KindNotFound, model.KindOf(err))

	require.NoError(t, store.Clear(ctx, 5))
	cart, err = store.Get(ctx, 5)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestStore_ConcurrentAddsMerge(t *testing.T) {
	store, _ := newTestStore(t, testCatalog())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.AddItem(ctx, 9, AddItemRequest{ProductID: pid(2), Quantity: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cart, err := store.Get(ctx, 9)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 4, cart.Items[0].Quantity)
}
