package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	sealedPrefix   = "enc:v1:"
	sealingKeyInfo = "tourbook/payment-setting/v1"
)

// secretSealer 网关密钥落库加密（XChaCha20-Poly1305，密钥由主密钥经 HKDF 派生）
type secretSealer struct {
	key []byte
}

func newSecretSealer(master string) (*secretSealer, error) {
	master = strings.TrimSpace(master)
	if master == "" {
		return &secretSealer{}, nil
	}
	key := make([]byte, chacha20poly1305.KeySize)
	reader := hkdf.New(sha256.New, []byte(master), nil, []byte(sealingKeyInfo))
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("%w: derive key: %v", ErrSettingSealFailed, err)
	}
	return &secretSealer{key: key}, nil
}

// Enabled 未配置主密钥时明文存储
func (s *secretSealer) Enabled() bool {
	return s != nil && len(s.key) > 0
}

// Seal 加密单个字段，gateway 作为附加数据绑定
func (s *secretSealer) Seal(gateway, plaintext string) (string, error) {
	if !s.Enabled() || plaintext == "" || IsSealed(plaintext) {
		return plaintext, nil
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSettingSealFailed, err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSettingSealFailed, err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(gateway))
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Open 解密单个字段，未加密的值原样返回
func (s *secretSealer) Open(gateway, value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	if !s.Enabled() {
		return "", fmt.Errorf("%w: sealed value without master key", ErrSettingSealFailed)
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSettingSealFailed, err)
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSettingSealFailed, err)
	}
	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrSettingSealFailed)
	}
	plaintext, err := aead.Open(nil, raw[:aead.NonceSize()], raw[aead.NonceSize():], []byte(gateway))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSettingSealFailed, err)
	}
	return string(plaintext), nil
}

// IsSealed 判断是否为加密后的字段
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}

// MaskSecret 保留首尾少量字符，中间打码
func MaskSecret(value string) string {
	runes := []rune(value)
	switch n := len(runes); {
	case n == 0:
		return ""
	case n <= 4:
		return strings.Repeat("*", n)
	case n <= 8:
		return string(runes[:1]) + strings.Repeat("*", n-2) + string(runes[n-1:])
	default:
		return string(runes[:3]) + strings.Repeat("*", n-6) + string(runes[n-3:])
	}
}
