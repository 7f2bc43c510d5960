/*
包 cache 提供基于 Redis 的缓存管理能力，以及目录数据的读穿缓存。

# 核心类型

  - Manager：持有 go-redis 客户端，以 JSON 快照形式 Load/Store/Invalidate，
    键自动附加前缀；可选 TLS，后台探测维护 Healthy 状态。
  - CatalogClient：包装 api.Client，预置消息与指令两个目录优先读取缓存，
    未命中时回源并写入，并发未命中经 singleflight 合并为一次回源；
    缓存不健康时直接回源；其余调用直接透传。

# 错误语义

ErrCacheMiss 表示未命中；ErrClosed 表示 Manager 已关闭。
缓存读写失败只记录日志，不影响回源结果，回源失败不会写入缓存。
*/
package cache
