//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"GameSync/internal/model"
	"GameSync/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const postgresPort = "5432/tcp"

func openPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{postgresPort},
			Env: map[string]string{
				"POSTGRES_USER":     "gamesync",
				"POSTGRES_PASSWORD": "gamesync",
				"POSTGRES_DB":       "gamesync",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, postgresPort)
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://gamesync:gamesync@%s:%s/gamesync?sslmode=disable", host, port.Port())
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	// 迁移需幂等
	require.NoError(t, repository.AutoMigrate(db))
	return db
}

func TestPostgresUniquenessInvariants(t *testing.T) {
	db := openPostgres(t)
	games := repository.NewGameRepository(db)
	ctx := context.Background()

	require.NoError(t, games.CreateBatch(ctx, []*model.CanonicalGame{
		newGame("bloodborne", nil, strPtr("CUSA00900")),
		newGame("bloodborne", nil, nil),
	}))
	require.ErrorIs(t, games.CreateBatch(ctx, []*model.CanonicalGame{newGame("bloodborne", nil, nil)}), gorm.ErrDuplicatedKey)

	err := games.CreateBatch(ctx, []*model.CanonicalGame{newGame("bloodborne", nil, strPtr("CUSA00900"))})
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	dup := newGame("bloodborne", nil, strPtr("CUSA00900"))
	inserted, err := games.CreateIgnoreConflict(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Zero(t, dup.ID)

	a := newGame("bloodborne", nil, nil)
	a.CatalogID = i64Ptr(1042)
	require.NoError(t, games.CreateBatch(ctx, []*model.CanonicalGame{a}))
	b := newGame("bloodborne goty", nil, nil)
	b.CatalogID = i64Ptr(1042)
	require.ErrorIs(t, games.CreateBatch(ctx, []*model.CanonicalGame{b}), gorm.ErrDuplicatedKey)
}

func TestPostgresOwnershipUpsert(t *testing.T) {
	db := openPostgres(t)
	owns := repository.NewOwnershipRepository(db)
	ctx := context.Background()

	require.NoError(t, owns.Upsert(ctx, &model.Ownership{GameID: 7, UserID: "u", Platform: model.PlatformPSN, ProgressCount: 1}))
	require.NoError(t, owns.Upsert(ctx, &model.Ownership{GameID: 7, UserID: "u", Platform: model.PlatformPSN, ProgressCount: 4, PlayDuration: 10}))

	got, err := owns.Get(ctx, 7, "u", model.PlatformPSN)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(4), got.ProgressCount)
	assert.Equal(t, int64(10), got.PlayDuration)
}
