/*
companion 是对话编排器的命令行入口。

# 子命令

  - serve：加载配置，连接后端（远程 HTTP 或本地数据库），启动
    HTTP 服务，在 /ws 上通过 WebSocket 向 UI 客户端转发事件，
    并暴露 /metrics、/healthz 与 /readyz。配置文件变更时热更新日志级别。
  - chat：在终端内运行同一个编排器，数字命令按下最近一条脚本消息的按钮。
  - health：请求运行中服务的健康检查端点。
  - version：打印构建时注入的版本信息。

# 配置

配置由 --config 指定的 YAML 文件与 COMPANION_ 前缀的环境变量组成，
详见 config 包。
*/
package main
