package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Save 把配置写成 TOML。先写临时文件再改名，中途失败不会留下半个文件。
func Save(path string, cfg Config) error {
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return errors.New("config path is empty and $HOME is not set")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// WriteDefaultIfMissing 在首次运行时把 Default() 写到 path（空则用 DefaultPath），
// 让使用者有一份可编辑的模板。文件已存在时什么都不做，返回实际路径与是否新建。
func WriteDefaultIfMissing(path string) (string, bool, error) {
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return "", false, errors.New("config path is empty and $HOME is not set")
	}
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return path, false, err
	}
	if err := Save(path, Default()); err != nil {
		return path, false, err
	}
	return path, true, nil
}
