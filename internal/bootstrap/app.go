package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"ragapi/internal/config"
	"ragapi/internal/model"
	postgresClient "ragapi/internal/platform/postgres"
	redisClient "ragapi/internal/platform/redis"
)

type App struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	db, err := postgresClient.New(ctx, cfg.PostgresDSN())
	if err != nil {
		return nil, err
	}
	if err := migrate(db, cfg.Embedding.Dimension); err != nil {
		return nil, err
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:    cfg,
		DB:        db,
		Redis:     redisCli,
		StartedAt: time.Now(),
	}, nil
}

// migrate prepares the schema. The chunk table is created by hand because its
// vector column dimension is fixed at configuration time, which AutoMigrate
// cannot express.
func migrate(db *gorm.DB, embeddingDim int) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("create vector extension failed: %w", err)
	}

	if err := db.AutoMigrate(
		&model.User{},
		&model.Document{},
		&model.ChatSession{},
		&model.ChatMessage{},
	); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}

	chunkDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
		id bigserial PRIMARY KEY,
		document_id bigint NOT NULL REFERENCES documents(id),
		chunk_index bigint NOT NULL,
		content text NOT NULL,
		embedding vector(%d),
		metadata jsonb DEFAULT '{}',
		created_at timestamptz NOT NULL DEFAULT now()
	)`, embeddingDim)
	if err := db.Exec(chunkDDL).Error; err != nil {
		return fmt.Errorf("create document_chunks table failed: %w", err)
	}

	indexDDLs := []string{
		"CREATE INDEX IF NOT EXISTS idx_document_chunks_document_id ON document_chunks (document_id)",
		"CREATE INDEX IF NOT EXISTS idx_document_chunks_embedding ON document_chunks USING hnsw (embedding vector_cosine_ops)",
	}
	for _, ddl := range indexDDLs {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("create chunk index failed: %w", err)
		}
	}
	return nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
