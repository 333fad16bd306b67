package business

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client), mr
}

func TestStore_GetReturnsDefault(t *testing.T) {
	store, _ := newTestStore(t)

	cfg, err := store.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.BusinessID)
	assert.Len(t, cfg.PriceTiers, 3)
	assert.Equal(t, DefaultGreeting, cfg.GreetingText())
}

func TestStore_SetThenGet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	cfg := DefaultConfig("acme")
	cfg.Name = "Acme Web"
	cfg.Notifications.SMSRecipients = []string{"+15550001111", "+15550001111", " "}
	require.NoError(t, store.Set(ctx, cfg))
	assert.True(t, mr.Exists("business:config:acme"))

	got, err := store.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Web", got.Name)
	assert.Equal(t, []string{"+15550001111"}, got.Notifications.Recipients())
}

func TestStore_IDs(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ids, err := store.IDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, store.Set(ctx, DefaultConfig("zeta")))
	require.NoError(t, store.Set(ctx, DefaultConfig("acme")))
	require.NoError(t, store.Set(ctx, DefaultConfig("acme")))

	ids, err = store.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "zeta"}, ids)
}

func TestStore_SetRequiresBusinessID(t *testing.T) {
	store, _ := newTestStore(t)
	assert.Error(t, store.Set(context.Background(), &Config{}))
}

func TestStore_CorruptPayload(t *testing.T) {
	store, mr := newTestStore(t)
	require.NoError(t, mr.Set("business:config:acme", "{not json"))

	_, err := store.Get(context.Background(), "acme")
	assert.Error(t, err)
}

func TestConfig_TierAndPriceTable(t *testing.T) {
	cfg := DefaultConfig("acme")
	assert.Equal(t, "$500 - $1,500", cfg.Tier("one_page").Range)
	assert.Equal(t, "$5,000 - $15,000", cfg.Tier("ecommerce").Range)
	assert.Equal(t, "one_page", cfg.Tier("unknown").Key)
	assert.Contains(t, cfg.PriceTable(), "Business site (business): $2,500 - $5,000")

	var missing *Config
	assert.Equal(t, DefaultGreeting, missing.GreetingText())
	assert.Equal(t, "one_page", missing.Tier("one_page").Key)
}

func TestStaticProvider(t *testing.T) {
	base := DefaultConfig("template")
	base.Name = "Pixel Co"
	cfg, err := StaticProvider{Base: base}.Get(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", cfg.BusinessID)
	assert.Equal(t, "Pixel Co", cfg.Name)
	assert.Equal(t, "template", base.BusinessID)

	cfg, err = StaticProvider{}.Get(context.Background(), "tenant-2")
	require.NoError(t, err)
	assert.Equal(t, "tenant-2", cfg.BusinessID)
}
