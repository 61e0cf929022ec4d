package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestPostgres(t *testing.T, profile string) *PostgresStore {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("storefront"),
		postgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://storefront:storefront@%s:%d/storefront?sslmode=disable", host, port.Int())
	db, err := ConnectPostgres(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := NewPostgresStore(ctx, db, profile)
	require.NoError(t, err)
	return s
}

func TestPostgresStore(t *testing.T) {
	exerciseKV(t, setupTestPostgres(t, "kiosk-1"))
}

func TestPostgresStore_SchemaIsIdempotent(t *testing.T) {
	s := setupTestPostgres(t, "kiosk-1")

	_, err := NewPostgresStore(context.Background(), s.db, "kiosk-1")
	require.NoError(t, err)
}

func TestPostgresStore_ProfilesAreIsolated(t *testing.T) {
	alice := setupTestPostgres(t, "alice")
	ctx := context.Background()
	bob, err := NewPostgresStore(ctx, alice.db, "bob")
	require.NoError(t, err)

	require.NoError(t, alice.Set(ctx, KeyUserToken, "alice-token"))
	require.NoError(t, bob.Set(ctx, KeyCartItems, "[]"))

	_, err = bob.Get(ctx, KeyUserToken)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = alice.Get(ctx, KeyCartItems)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, bob.Delete(ctx, KeyUserToken))
	v, err := alice.Get(ctx, KeyUserToken)
	require.NoError(t, err)
	assert.Equal(t, "alice-token", v)
}
