// Package telemetry 初始化 OpenTelemetry SDK，为 companion 提供
// TracerProvider 与 MeterProvider。flow 包的每个回合 span 经由全局
// provider 导出；禁用时使用 noop 实现，不连接任何外部服务。
package telemetry
