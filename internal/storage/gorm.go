package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVEntry 键值表记录
type KVEntry struct {
	Key       string    `gorm:"column:kv_key;primaryKey;size:191"`
	Value     string    `gorm:"column:kv_value;type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName 表名
func (KVEntry) TableName() string {
	return "kv_entries"
}

// GormStore 基于关系数据库（SQLite / PostgreSQL）的键值存储
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建数据库存储并确保表结构存在
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&KVEntry{}); err != nil {
		return nil, fmt.Errorf("迁移 kv_entries 表失败: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Get 读取键值
func (s *GormStore) Get(ctx context.Context, key string) (string, error) {
	var entry KVEntry
	err := s.db.WithContext(ctx).Where("kv_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("查询键值失败: %w", err)
	}
	return entry.Value, nil
}

// Set 写入键值（存在则覆盖）
func (s *GormStore) Set(ctx context.Context, key, value string) error {
	entry := KVEntry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kv_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"kv_value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("写入键值失败: %w", err)
	}
	return nil
}

// Delete 删除键
func (s *GormStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("kv_key = ?", key).Delete(&KVEntry{}).Error; err != nil {
		return fmt.Errorf("删除键值失败: %w", err)
	}
	return nil
}

// Ping 健康检查
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
