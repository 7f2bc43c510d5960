/*
包 server 管理 companion 的 HTTP 监听，承载 WebSocket 桥接、
Prometheus 指标与健康检查端点。

# 核心类型

  - Manager：封装 net/http.Server，提供非阻塞 Start、优雅 Shutdown
    以及随 context 取消而退出的 Wait。
  - Config：监听地址、读写/空闲超时与关闭超时，可由
    config.ServerConfig 转换得到。
  - Routes / NewRouter：挂载 /ws、/metrics、/healthz、/readyz，
    并套上 Recovery、RequestID、OTelTracing、MetricsMiddleware、
    RequestLogger 与 SecurityHeaders 中间件。

中间件包装的 ResponseWriter 转发 Hijack，WebSocket 升级不受影响。
*/
package server
