package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch 监听配置文件变更，变更后重新加载并回调 onChange
// 未加载配置文件时直接返回（仅依赖环境变量的部署无需热更新）
// 重新加载失败（如校验不通过）时回调 onError，保留旧配置
func Watch(cfg *Config, onChange func(*Config), onError func(error)) {
	if cfg.File() == "" {
		return
	}

	v := viper.New()
	v.SetConfigFile(cfg.File())
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := Load(e.Name)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(next)
	})
	v.WatchConfig()
}
