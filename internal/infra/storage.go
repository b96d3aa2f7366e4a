package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/taole4114/2.-Script-YTB/internal/config"
	"github.com/taole4114/2.-Script-YTB/internal/storage"
)

// Resources 启动时建立的外部资源
type Resources struct {
	KV    storage.KeyValueStore
	Redis redis.UniversalClient // storage.backend=redis 或启用队列时非空
	DB    *gorm.DB              // sqlite / postgres 后端时非空
}

// Open 按配置建立键值存储及其依赖的连接
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Resources, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	res := &Resources{}

	if cfg.Storage.Backend == config.StorageRedis || cfg.Queue.Enabled {
		rdb, err := NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		res.Redis = rdb
	}

	var err error
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		logger.Warn("使用内存存储，重启后 API Key 将丢失")
		res.KV = storage.NewMemoryStore()
	case config.StorageFile:
		res.KV, err = storage.NewFileStore(cfg.Storage.FilePath)
	case config.StorageRedis:
		res.KV = storage.NewRedisStore(res.Redis, cfg.Storage.RedisPrefix)
	case config.StorageSQLite:
		res.DB, err = OpenSQLite(cfg.Storage.SQLitePath, logger)
		if err == nil {
			res.KV, err = storage.NewGormStore(res.DB)
		}
	case config.StoragePostgres:
		res.DB, err = OpenPostgres(cfg.Database, logger)
		if err == nil {
			res.KV, err = storage.NewGormStore(res.DB)
		}
	default:
		err = fmt.Errorf("不支持的存储后端: %q", cfg.Storage.Backend)
	}
	if err != nil {
		_ = res.Close()
		return nil, err
	}

	logger.Info("存储初始化完成", zap.String("backend", cfg.Storage.Backend))
	return res, nil
}

// Close 释放全部连接
func (r *Resources) Close() error {
	var errs []error
	if r.DB != nil {
		errs = append(errs, CloseDatabase(r.DB))
	}
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	return errors.Join(errs...)
}
