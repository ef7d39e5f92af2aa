// Package observability provides monitoring and debugging capabilities for
// agentcore through Prometheus metrics and structured logging.
//
// # Overview
//
// The observability package covers two pillars:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//
// # Architecture
//
// The package is designed to be:
//   - Low-overhead: Minimal performance impact on production systems
//   - Type-safe: Strongly-typed APIs reduce configuration errors
//   - Standards-based: Uses Prometheus and slog
//
// # Metrics
//
// Metrics are implemented using Prometheus client libraries and track:
//   - LLM request latency, token usage, and estimated cost
//   - Tool execution performance
//   - Error rates by component and type
//   - Concurrent agent-graph turns and their outcomes
//   - Repository (database) query performance
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//
//	// Track a turn
//	metrics.TurnStarted()
//	defer metrics.TurnEnded("success", time.Since(start).Seconds())
//
//	// Track LLM requests
//	start := time.Now()
//	// ... make LLM request ...
//	metrics.RecordLLMRequest("anthropic", "claude-3-5-sonnet", "success",
//	    time.Since(start).Seconds(), promptTokens, completionTokens)
//
//	// Track tool execution
//	start = time.Now()
//	// ... execute tool ...
//	metrics.RecordToolExecution("web_search", "success", time.Since(start).Seconds())
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request ID correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens)
//   - JSON output for production, text for development
//   - Configurable log levels
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    AddSource: true,
//	})
//
//	// Add context IDs for correlation
//	ctx := observability.AddRequestID(ctx, requestID)
//	ctx = observability.AddSessionID(ctx, conversationID)
//
//	// Structured logging with automatic context correlation
//	logger.Info(ctx, "processing turn",
//	    "user_id", principal.ID,
//	    "message_length", len(text),
//	)
//
//	// Error logging with automatic redaction
//	logger.Error(ctx, "LLM request failed",
//	    "error", err,
//	    "provider", "anthropic",
//	    "api_key", apiKey, // Automatically redacted
//	)
//
// # Context Propagation
//
// Both components integrate with Go's context for automatic correlation:
//
//	// Add IDs to context
//	ctx = observability.AddRequestID(ctx, "req-123")
//	ctx = observability.AddSessionID(ctx, conversationID)
//	ctx = observability.AddUserID(ctx, principal.ID.String())
//
//	// IDs automatically appear in logs
//	logger.Info(ctx, "processing") // Includes request_id, session_id, user_id
//
// # Integration Example
//
// Complete example integrating both components around one agent-graph turn:
//
//	func (s *Service) Chat(ctx context.Context, principal models.Principal, text string) (ChatResult, error) {
//	    ctx = observability.AddRequestID(ctx, generateID())
//	    ctx = observability.AddUserID(ctx, principal.ID.String())
//
//	    start := time.Now()
//	    s.metrics.TurnStarted()
//	    defer func() { s.metrics.TurnEnded("success", time.Since(start).Seconds()) }()
//
//	    s.logger.Info(ctx, "turn started", "message_length", len(text))
//
//	    llmStart := time.Now()
//	    response, err := s.mux.Complete(ctx, cfg, req)
//	    llmDuration := time.Since(llmStart).Seconds()
//
//	    if err != nil {
//	        s.metrics.RecordError("agentgraph", "llm_request_failed")
//	        s.logger.Error(ctx, "LLM request failed", "error", err)
//	        s.metrics.RecordLLMRequest(cfg.Family, cfg.Model, "error", llmDuration, 0, 0)
//	        return ChatResult{}, err
//	    }
//
//	    s.metrics.RecordLLMRequest(cfg.Family, cfg.Model, "success",
//	        llmDuration, response.PromptTokens, response.CompletionTokens)
//	    s.logger.Info(ctx, "turn completed", "duration_ms", llmDuration*1000)
//
//	    return result, nil
//	}
//
// # Security Considerations
//
// The logging component automatically redacts:
//   - API keys (Anthropic, OpenAI, generic)
//   - Passwords and secrets
//   - JWT tokens
//   - Bearer tokens
//   - Custom patterns via configuration
//
// Sensitive fields in maps are also redacted:
//   - password, passwd, pwd
//   - secret, api_key, apikey
//   - token, auth, authorization
//   - private_key, privatekey
//
// # Performance
//
// The observability system is designed for minimal overhead:
//   - Metrics use lock-free counters where possible
//   - Logging with slog is highly efficient
//   - Context propagation is zero-allocation in most cases
//
// Typical overhead:
//   - Metrics: <1% CPU, ~10KB memory per metric
//   - Logging: ~1-5μs per log call
//
// # Configuration
//
// Both components support configuration via structs:
//
//	// Metrics - no configuration needed, auto-registered
//	metrics := observability.NewMetrics()
//
//	// Logging - configurable output, level, format
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:          os.Getenv("LOG_LEVEL"),
//	    Format:         "json",
//	    AddSource:      true,
//	    RedactPatterns: []string{`custom-secret-\d+`},
//	})
//
// # Testing
//
// Both components provide testable interfaces:
//   - Metrics can be verified using prometheus/testutil
//   - Logging can write to bytes.Buffer for assertions
//
// # Best Practices
//
//  1. Always propagate context to enable correlation
//  2. Record errors on the error counter with a specific error_type
//  3. Use structured logging with key-value pairs
//  4. Use typed metric labels (avoid high-cardinality values like raw message text)
//
// # Monitoring Dashboard
//
// The metrics exposed can be used to build dashboards:
//
//	# Turn throughput
//	rate(agentcore_chat_outcomes_total[5m])
//
//	# LLM request latency (95th percentile)
//	histogram_quantile(0.95, rate(agentcore_llm_request_duration_seconds_bucket[5m]))
//
//	# Error rate
//	rate(agentcore_errors_total[5m])
//
//	# Active turns
//	agentcore_active_turns
//
//	# Tool execution time
//	rate(agentcore_tool_execution_duration_seconds_sum[5m]) /
//	rate(agentcore_tool_execution_duration_seconds_count[5m])
//
// # Alerting
//
// Recommended alerts based on metrics:
//   - High error rate: rate(agentcore_errors_total[5m]) > threshold
//   - High LLM latency: p95 latency > 10s
//   - Turn accumulation: agentcore_active_turns growing unbounded
//   - Recursion cap hits: rate(agentcore_tool_loop_iterations_total{status="recursion_cap"}[5m]) > 0
//
// # Further Reading
//
//   - Prometheus best practices: https://prometheus.io/docs/practices/naming/
//   - slog documentation: https://pkg.go.dev/log/slog
package observability
