// =============================================================================
// 📦 Companion 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Backend:   DefaultBackendConfig(),
		LLM:       DefaultLLMConfig(),
		Retrieval: DefaultRetrievalConfig(),
		Flow:      DefaultFlowConfig(),
		Schedule:  DefaultScheduleConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultBackendConfig 返回默认后端配置
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		Mode:       BackendLocal,
		BaseURL:    "http://localhost:8000",
		Timeout:    15 * time.Second,
		RateLimit:  20,
		Burst:      40,
		CatalogTTL: 10 * time.Minute,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:          "https://api.openai.com",
		Model:            "gpt-4o-mini",
		Timeout:          30 * time.Second,
		StreamTimeout:    2 * time.Minute,
		MaxHistoryTokens: 6000,
		Temperature:      0.7,
	}
}

// DefaultRetrievalConfig 返回默认检索配置
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		Enabled: false,
		BaseURL: "http://localhost:8001",
		TopK:    3,
		Timeout: 10 * time.Second,
	}
}

// DefaultFlowConfig 返回默认流程配置
func DefaultFlowConfig() FlowConfig {
	return FlowConfig{
		UserID:        "local-user",
		BootstrapID:   "week1_day0",
		OffTopicAgent: "offtopic",
		OffTopicID:    "offtopic",
		WelcomeText:   "Hello! Let's get started.",
	}
}

// DefaultScheduleConfig 返回默认调度配置
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{Timezone: "Local"}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "companion:",
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "companion",
		Password:        "",
		Name:            "companion.db",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "auto",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:        false,
		OTLPEndpoint:   "localhost:4317",
		ServiceName:    "companion",
		SampleRate:     0.1,
		ExportInterval: 30 * time.Second,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "companion",
		Path:      "/metrics",
	}
}
