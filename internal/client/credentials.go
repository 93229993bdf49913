package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CredentialProvider 提供附加到请求上的 Bearer 令牌，返回空串表示未登录
type CredentialProvider interface {
	Token() (string, error)
}

// StaticToken 是固定令牌，常用于测试与脚本
type StaticToken string

// Token 返回令牌本身
func (t StaticToken) Token() (string, error) {
	return strings.TrimSpace(string(t)), nil
}

// FileToken 从文件读取 intakectl login 保存的令牌
type FileToken struct {
	Path string
}

// Token 读取令牌，文件不存在视为未登录
func (f FileToken) Token() (string, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// Save 写入令牌，仅当前用户可读
func (f FileToken) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(f.Path, []byte(strings.TrimSpace(token)+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// Clear 删除令牌文件
func (f FileToken) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}
