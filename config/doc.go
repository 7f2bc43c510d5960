// Package config 提供 companion 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → COMPANION_ 前缀环境变量 的顺序合并，
// 最后运行注册的验证器。Watcher 轮询配置文件并在变更时重新加载，
// 用于运行时调整日志级别等可热更新的项。
package config
