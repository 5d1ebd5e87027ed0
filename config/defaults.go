package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		LLM:       DefaultLLMConfig(),
		Agent:     DefaultAgentConfig(),
		Workflow:  DefaultWorkflowConfig(),
		Sandbox:   DefaultSandboxConfig(),
		Redis:     DefaultRedisConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultLLMConfig returns the default backend configuration.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider: "openai",
		Model:    "gpt-4o",
		Timeout:  2 * time.Minute,
	}
}

// DefaultAgentConfig returns the default runner configuration.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		MaxIterations: 10,
		MaxTokens:     4096,
		Temperature:   0.2,
		UsageBuffer:   256,
	}
}

// DefaultWorkflowConfig returns the default workflow engine configuration.
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		Store:          "memory",
		MaxFixAttempts: 3,
		TTL:            24 * time.Hour,
	}
}

// DefaultSandboxConfig returns the default sandbox configuration.
func DefaultSandboxConfig() SandboxConfig {
	return SandboxConfig{
		Root:         ".",
		CheckCommand: "go build ./...",
	}
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns the default telemetry configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "fixflow",
		SampleRate:   0.1,
	}
}
