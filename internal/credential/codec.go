package credential

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taole4114/2.-Script-YTB/internal/security"
)

// snapshotEntry 快照中单个 Key 的 JSON 结构
// 字段名与早期前端版本保持一致，旧快照可直接读取
type snapshotEntry struct {
	ID             string   `json:"id,omitempty"`
	Key            string   `json:"key"`
	Provider       Provider `json:"provider"`
	Model          string   `json:"model,omitempty"`
	LastUsed       int64    `json:"lastUsed"`
	ExhaustedUntil *int64   `json:"exhaustedUntil,omitempty"`
}

// Codec 快照编解码
type Codec struct {
	sealer *security.Sealer
}

// NewCodec 创建编解码器，sealer 为 nil 时快照为 base64(JSON)
func NewCodec(sealer *security.Sealer) *Codec {
	return &Codec{sealer: sealer}
}

// Encode 将完整凭证列表编码为不透明字符串
func (c *Codec) Encode(creds []Credential) (string, error) {
	entries := make([]snapshotEntry, 0, len(creds))
	for _, cred := range creds {
		entry := snapshotEntry{
			ID:       cred.ID,
			Key:      cred.Secret,
			Provider: cred.Provider,
			Model:    cred.ModelID,
			LastUsed: toMillis(cred.LastUsedAt),
		}
		if !cred.ExhaustedUntil.IsZero() {
			ms := toMillis(cred.ExhaustedUntil)
			entry.ExhaustedUntil = &ms
		}
		entries = append(entries, entry)
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("序列化凭证快照失败: %w", err)
	}
	if c.sealer != nil {
		if raw, err = c.sealer.Seal(raw); err != nil {
			return "", fmt.Errorf("加密凭证快照失败: %w", err)
		}
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode 解码快照，缺少 ID 的旧记录会分配新 ID
func (c *Codec) Decode(encoded string) ([]Credential, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 解码失败: %w", err)
	}
	if c.sealer != nil {
		if raw, err = c.sealer.Open(raw); err != nil {
			return nil, err
		}
	}

	var entries []snapshotEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("解析凭证快照失败: %w", err)
	}

	creds := make([]Credential, 0, len(entries))
	for _, entry := range entries {
		cred := Credential{
			ID:         entry.ID,
			Secret:     entry.Key,
			Provider:   entry.Provider,
			ModelID:    entry.Model,
			LastUsedAt: fromMillis(entry.LastUsed),
		}
		if cred.ID == "" {
			cred.ID = uuid.NewString()
		}
		if entry.ExhaustedUntil != nil {
			cred.ExhaustedUntil = fromMillis(*entry.ExhaustedUntil)
		}
		creds = append(creds, cred)
	}
	return creds, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
