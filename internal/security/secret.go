package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// hkdfInfo 密钥派生的上下文标签，修改后旧密文将无法解密
const hkdfInfo = "script-ytb credential snapshot v1"

// Sealer 使用 AES-256-GCM 加解密凭证快照
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer 由配置的口令派生 AES 密钥并创建 Sealer
func NewSealer(passphrase string) (*Sealer, error) {
	passphrase = strings.TrimSpace(passphrase)
	if passphrase == "" {
		return nil, fmt.Errorf("加密口令不能为空")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(passphrase), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("派生密钥失败: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("初始化密钥失败: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("初始化 GCM 失败: %w", err)
	}
	return &Sealer{aead: gcm}, nil
}

// Seal 加密明文，返回 nonce + 密文
func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("生成随机数失败: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plain, nil), nil
}

// Open 解密 Seal 生成的数据
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("密文长度无效")
	}
	plain, err := s.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("解密失败: %w", err)
	}
	return plain, nil
}
