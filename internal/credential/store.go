package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taole4114/2.-Script-YTB/internal/storage"
)

// SnapshotKey 凭证快照在键值存储中的固定键名
const SnapshotKey = "llm-api-keys-list"

// ErrCredentialNotFound 凭证不存在（可能已被整体替换）
var ErrCredentialNotFound = errors.New("凭证不存在")

// LoadResult 加载结果
type LoadResult struct {
	// Reset 为 true 表示快照损坏已被清空，调用方应重置“已配置 Key”的状态
	Reset bool
}

// entry 内存中的单个凭证
type entry struct {
	use  sync.Mutex // 串行化同一凭证的读-改-写（含冷却等待）
	cred Credential // 受 Store.mu 保护
}

// Store 凭证存储
// 内存中保存权威状态，每次变更后把完整快照写回键值存储
type Store struct {
	kv     storage.KeyValueStore
	codec  *Codec
	logger *zap.Logger
	key    string

	mu           sync.RWMutex
	entries      []*entry
	loaded       bool
	resetPending bool

	persistMu sync.Mutex
}

// NewStore 创建凭证存储
func NewStore(kv storage.KeyValueStore, codec *Codec, logger *zap.Logger) *Store {
	if codec == nil {
		codec = NewCodec(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		kv:     kv,
		codec:  codec,
		logger: logger,
		key:    SnapshotKey,
	}
}

// Load 从键值存储读取快照并替换内存状态
// 快照无法解码时删除快照、返回空集合并设置 Reset，不视为错误
func (s *Store) Load(ctx context.Context) ([]Credential, LoadResult, error) {
	encoded, err := s.kv.Get(ctx, s.key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, LoadResult{}, fmt.Errorf("读取凭证快照失败: %w", err)
	}

	var (
		creds  []Credential
		result LoadResult
	)
	if err == nil && encoded != "" {
		decoded, decodeErr := s.codec.Decode(encoded)
		if decodeErr != nil {
			s.logger.Warn("凭证快照已损坏，清空存储", zap.Error(decodeErr))
			if delErr := s.kv.Delete(ctx, s.key); delErr != nil {
				s.logger.Error("删除损坏的凭证快照失败", zap.Error(delErr))
			}
			result.Reset = true
		} else {
			creds = decoded
		}
	}

	s.mu.Lock()
	s.replaceLocked(creds)
	s.loaded = true
	if result.Reset {
		s.resetPending = true
	}
	out := s.snapshotLocked()
	s.mu.Unlock()

	return out, result, nil
}

// Save 用给定列表整体替换并持久化
func (s *Store) Save(ctx context.Context, creds []Credential) error {
	s.mu.Lock()
	s.replaceLocked(creds)
	s.loaded = true
	s.mu.Unlock()
	return s.persist(ctx)
}

// All 返回全部凭证副本（按插入顺序）
func (s *Store) All(ctx context.Context) ([]Credential, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(), nil
}

// ForProvider 返回指定提供商的凭证副本（按插入顺序）
func (s *Store) ForProvider(ctx context.Context, provider Provider) ([]Credential, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Credential
	for _, e := range s.entries {
		if e.cred.Provider == provider {
			out = append(out, e.cred)
		}
	}
	return out, nil
}

// Get 按 ID 读取当前状态
func (s *Store) Get(id string) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e := s.findLocked(id); e != nil {
		return e.cred, true
	}
	return Credential{}, false
}

// TakeReset 返回并清除“快照已被重置”的标记
func (s *Store) TakeReset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	reset := s.resetPending
	s.resetPending = false
	return reset
}

// Update 在该凭证的独占锁内执行读-改-写，随后尽力持久化
// fn 可以阻塞（例如冷却等待），期间其他调用方无法使用同一凭证。
// 持久化失败只记录日志，不返回错误。
func (s *Store) Update(ctx context.Context, id string, fn func(cur Credential) (Credential, error)) (Credential, error) {
	s.mu.RLock()
	e := s.findLocked(id)
	s.mu.RUnlock()
	if e == nil {
		return Credential{}, ErrCredentialNotFound
	}

	e.use.Lock()
	defer e.use.Unlock()

	s.mu.RLock()
	cur := e.cred
	s.mu.RUnlock()

	next, err := fn(cur)
	if err != nil {
		return cur, err
	}
	next.ID = cur.ID
	if next.LastUsedAt.Before(cur.LastUsedAt) {
		next.LastUsedAt = cur.LastUsedAt
	}

	s.mu.Lock()
	if s.findLocked(id) != e {
		s.mu.Unlock()
		return next, ErrCredentialNotFound
	}
	e.cred = next
	s.mu.Unlock()

	if err := s.persist(ctx); err != nil {
		s.logger.Warn("持久化凭证状态失败，继续执行",
			zap.String("key", next.Masked()),
			zap.Error(err),
		)
	}
	return next, nil
}

func (s *Store) ensureLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	_, _, err := s.Load(ctx)
	return err
}

// persist 写入完整快照，写入过程串行化，保证最终落盘的是最新状态
func (s *Store) persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	creds := s.snapshotLocked()
	s.mu.RUnlock()

	encoded, err := s.codec.Encode(creds)
	if err != nil {
		s.logger.Error("编码凭证快照失败", zap.Error(err))
		return err
	}
	if err := s.kv.Set(ctx, s.key, encoded); err != nil {
		s.logger.Error("保存凭证快照失败", zap.Error(err))
		return fmt.Errorf("保存凭证快照失败: %w", err)
	}
	return nil
}

// replaceLocked 替换全部条目，相同 ID 复用原条目以保持锁的有效性
func (s *Store) replaceLocked(creds []Credential) {
	existing := make(map[string]*entry, len(s.entries))
	for _, e := range s.entries {
		existing[e.cred.ID] = e
	}
	entries := make([]*entry, 0, len(creds))
	seen := make(map[string]struct{}, len(creds))
	for _, cred := range creds {
		if cred.ID == "" {
			cred.ID = uuid.NewString()
		}
		if _, dup := seen[cred.ID]; dup {
			cred.ID = uuid.NewString()
		}
		seen[cred.ID] = struct{}{}
		e, ok := existing[cred.ID]
		if !ok {
			e = &entry{}
		}
		e.cred = cred
		entries = append(entries, e)
	}
	s.entries = entries
}

func (s *Store) snapshotLocked() []Credential {
	out := make([]Credential, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.cred
	}
	return out
}

func (s *Store) findLocked(id string) *entry {
	for _, e := range s.entries {
		if e.cred.ID == id {
			return e
		}
	}
	return nil
}
