package utils

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// AppName 配置目录名
	AppName = "polycanvas"
	// EnvConfigHome 设置后直接作为配置目录
	EnvConfigHome = "POLYCANVAS_CONFIG_HOME"
)

// GetConfigDir 返回配置目录：EnvConfigHome 优先，否则为系统用户配置目录下的 polycanvas
// (Linux 为 $XDG_CONFIG_HOME 或 ~/.config，macOS 为 ~/Library/Application Support，Windows 为 %AppData%)
func GetConfigDir() (string, error) {
	if dir := os.Getenv(EnvConfigHome); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, AppName), nil
}

// ConfigFile 返回配置目录下某个文件的完整路径
func ConfigFile(name string) (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// DisplayPath 把用户主目录缩写为 ~，用于提示信息
func DisplayPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if path == home {
		return "~"
	}
	if rel, ok := strings.CutPrefix(path, home+string(filepath.Separator)); ok {
		return filepath.Join("~", rel)
	}
	return path
}
