// Package main provides the CLI entry point for the agentcore assistant.
//
// agentcore wires the provider multiplexer (C4), tool registry (C5), memory
// manager (C7), training tracker (C9), and agent graph (C8) behind the
// AgentService contract, then exposes it through a terminal chat loop for
// local use and a "status" command for operators.
//
// # Basic usage
//
// Start an interactive session:
//
//	agentcore chat --config agentcore.yaml --user alice
//
// Check the provider roster a config file resolves to:
//
//	agentcore status --config agentcore.yaml
//
// # Environment variables
//
// Configuration can be overridden without editing the YAML file:
//
//   - AGENTCORE_HOST, AGENTCORE_PORT
//   - DATABASE_DSN
//   - WEB_SEARCH_API_KEY
//   - AGENTCORE_PROVIDER_<NAME>_API_KEY (per provider, name upper-cased)
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nexus-assistant/core/internal/agentgraph"
	"github.com/nexus-assistant/core/internal/config"
	"github.com/nexus-assistant/core/internal/datetime"
	"github.com/nexus-assistant/core/internal/format"
	modelcatalog "github.com/nexus-assistant/core/internal/models"
	"github.com/nexus-assistant/core/internal/observability"
	"github.com/nexus-assistant/core/internal/providers"
	"github.com/nexus-assistant/core/internal/providers/adapters"
	"github.com/nexus-assistant/core/internal/providers/venice"
	"github.com/nexus-assistant/core/internal/repository"
	"github.com/nexus-assistant/core/internal/repository/memstore"
	"github.com/nexus-assistant/core/internal/semanticmemory"
	"github.com/nexus-assistant/core/internal/telemetry"
	"github.com/nexus-assistant/core/internal/tools"
	"github.com/nexus-assistant/core/internal/tools/websearch"
	"github.com/nexus-assistant/core/internal/usage"
	"github.com/nexus-assistant/core/pkg/models"
)

// Build information, populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// This is separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "agentcore",
		Short:   "agentcore - multi-user conversational assistant core",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Long: `agentcore runs the agent graph behind a chat-capable AgentService:
provider failover across Anthropic, OpenAI, Google, Bedrock, Ollama, and
Venice, a tool runtime, encrypted per-user memory, and skill training.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(buildChatCmd(), buildStatusCmd(), buildHistoryCmd(), buildModelsCmd())
	return rootCmd
}

func buildChatCmd() *cobra.Command {
	var (
		configPath string
		username   string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive terminal chat session",
		Example: `  agentcore chat --config agentcore.yaml --user alice
  agentcore chat --user bob --config /etc/agentcore/production.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(username) == "" {
				return fmt.Errorf("--user is required")
			}
			return runChat(cmd.Context(), configPath, username)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agentcore.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVarP(&username, "user", "u", "", "Username to chat as (created on first use)")
	return cmd
}

func buildStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Load a config file and report the resolved provider roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "server: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
			fmt.Fprintf(out, "timezone: %s\n", datetime.ResolveUserTimezone(""))
			fmt.Fprintf(out, "database: %s\n", cfg.Database.Driver)
			fmt.Fprintf(out, "providers:\n")
			for _, p := range cfg.Providers {
				state := "enabled"
				if !p.IsEnabled() {
					state = "disabled"
				}
				fmt.Fprintf(out, "  - %-20s family=%-10s model=%-30s priority=%d [%s]\n",
					p.Name, p.Family, p.Model, p.Priority, state)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agentcore.yaml", "Path to YAML configuration file")
	return cmd
}

func buildHistoryCmd() *cobra.Command {
	var (
		configPath string
		username   string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show a user's recent recalled messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(username) == "" {
				return fmt.Errorf("--user is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			svc, repo, err := buildService(cfg)
			if err != nil {
				return fmt.Errorf("build service: %w", err)
			}
			principal, err := repo.GetUserByUsername(cmd.Context(), username)
			if err != nil {
				return fmt.Errorf("unknown user %q: %w", username, err)
			}
			messages, err := svc.Recall(cmd.Context(), *principal, limit)
			if err != nil {
				return fmt.Errorf("recall: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, m := range messages {
				fmt.Fprintf(out, "[%s] %-9s %s\n", formatMessageTimestamp(m.Timestamp), m.Role, m.Content)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agentcore.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVarP(&username, "user", "u", "", "Username whose history to show")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of messages (max 50)")
	return cmd
}

// formatMessageTimestamp normalizes ts through datetime.NormalizeTimestamp
// and renders it alongside how long ago it was.
func formatMessageTimestamp(ts time.Time) string {
	result := datetime.NormalizeTimestamp(ts)
	if result == nil {
		return "unknown time"
	}
	ago := format.FormatDurationMsInt(time.Since(ts).Milliseconds())
	return fmt.Sprintf("%s, %s ago", result.TimestampUTC, ago)
}

func buildModelsCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the built-in model catalog (capabilities, context window, pricing)",
		Example: `  agentcore models
  agentcore models --provider anthropic`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *modelcatalog.Filter
			if provider != "" {
				filter = &modelcatalog.Filter{Providers: []modelcatalog.Provider{modelcatalog.Provider(provider)}}
			}
			catalog := modelcatalog.List(filter)
			out := cmd.OutOrStdout()
			for _, m := range catalog {
				fmt.Fprintf(out, "%-28s provider=%-10s tier=%-9s context=%-8d caps=%s\n",
					m.ID, m.Provider, m.Tier, m.ContextWindow, formatCapabilities(m.Capabilities))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Filter to one provider (anthropic, openai, google, bedrock, ollama, ...)")
	return cmd
}

func formatCapabilities(caps []modelcatalog.Capability) string {
	parts := make([]string, len(caps))
	for i, c := range caps {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

// runChat loads cfg, wires a Service, ensures username exists, and drives an
// interactive stdin/stdout chat loop until EOF or "exit".
func runChat(ctx context.Context, configPath, username string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	svc, repo, err := buildService(cfg)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}

	principal, err := repo.GetUserByUsername(ctx, username)
	if err != nil {
		principal, err = repo.AddUser(ctx, username)
		if err != nil {
			return fmt.Errorf("create user %q: %w", username, err)
		}
	}

	if reminder, err := svc.LoginReminder(ctx, *principal); err != nil {
		slog.Warn("login reminder failed", "error", err)
	} else if reminder != "" {
		fmt.Println(reminder)
	}

	ctx = observability.AddChannel(ctx, "cli")
	ctx = observability.AddUserID(ctx, username)

	fmt.Printf("chatting as %s. type \"exit\" to quit.\n", username)
	scanner := bufio.NewScanner(os.Stdin)
	conversationID := ""
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			break
		}

		turnCtx := observability.AddRequestID(ctx, uuid.NewString())
		result, err := svc.Chat(turnCtx, *principal, text, "", conversationID)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		conversationID = result.ConversationID
		fmt.Println(result.ResponseText)
	}

	if err := svc.SaveProgressOnLogout(ctx, *principal, nil); err != nil {
		slog.Warn("save progress on logout failed", "error", err)
	}
	printUsageSummary(svc)
	return nil
}

// printUsageSummary reports accumulated token usage and estimated cost for
// the session, keyed by "provider:model".
func printUsageSummary(svc *agentgraph.Service) {
	summary := svc.UsageSummary()
	if len(summary) == 0 {
		return
	}
	fmt.Println("\nusage this session:")
	for key, u := range summary {
		fmt.Printf("  %-40s %s\n", key, usage.FormatUsageDetailed(u))
	}
}

// buildService wires a Repository, provider Multiplexer, stateless tool
// Registry, and agentgraph.Service from cfg.
func buildService(cfg *config.Config) (*agentgraph.Service, repository.Repository, error) {
	if cfg.Database.Driver != "memstore" {
		return nil, nil, fmt.Errorf("database driver %q has no Repository implementation yet; use memstore", cfg.Database.Driver)
	}
	metrics := observability.NewMetrics()
	repo := repository.NewInstrumented(memstore.New(), metrics)
	logger := observability.NewLogger(cfg.Logging.ToLogConfig())
	observer := telemetry.NewSlogObserver(logger, context.Background())
	tracker := usage.NewTracker(usage.DefaultTrackerConfig())
	costs := make(map[string]usage.Cost, len(cfg.Providers))
	for _, p := range cfg.Providers {
		costs[p.Name+":"+p.Model] = p.Cost()
	}

	mux := providers.NewMultiplexer()
	for _, p := range cfg.Providers {
		if !p.IsEnabled() {
			continue
		}
		client, err := buildProviderClient(p)
		if err != nil {
			return nil, nil, fmt.Errorf("provider %q: %w", p.Name, err)
		}
		mux.Register(providerConfigFor(p), client)
	}

	registry := tools.NewRegistry()
	registry.Register(tools.NewClarifyCommunicationTool())
	registry.Register(tools.NewFormatOutputTool())
	if cfg.Tools.WebSearchAPIKey != "" || cfg.Tools.WebSearchBaseURL != "" {
		registry.Register(websearch.NewWebSearchTool(&websearch.Config{
			BraveAPIKey:    cfg.Tools.WebSearchAPIKey,
			SearXNGURL:     cfg.Tools.WebSearchBaseURL,
			DefaultBackend: websearch.BackendBraveSearch,
		}))
	}

	semantic, err := semanticmemory.NewManager(cfg.SemanticMemory.ToSemanticMemoryConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("semantic memory: %w", err)
	}

	svc := agentgraph.New(repo, mux, registry, cfg.Graph.ToAgentGraphConfig(),
		agentgraph.WithMetrics(metrics), agentgraph.WithObserver(observer),
		agentgraph.WithUsageTracking(tracker, costs),
		agentgraph.WithSemanticMemory(semantic))
	return svc, repo, nil
}

func providerConfigFor(p config.ProviderEntry) models.ProviderConfig {
	return models.ProviderConfig{
		Name:                 p.Name,
		Family:               p.Family,
		Model:                p.Model,
		Key:                  p.APIKey,
		Endpoint:             p.Endpoint,
		MaxRequestsPerMinute: p.MaxRequestsPerMinute,
		MaxTokens:            p.MaxTokens,
		Temperature:          p.Temperature,
		Priority:             p.Priority,
		IsAvailable:          true,
	}
}

// buildProviderClient constructs the adapters.* client matching p.Family and
// wraps it in a blocking Client for Multiplexer.Register.
func buildProviderClient(p config.ProviderEntry) (providers.Client, error) {
	switch p.Family {
	case "anthropic":
		provider, err := adapters.NewAnthropicProvider(adapters.AnthropicConfig{
			APIKey:       p.APIKey,
			BaseURL:      p.Endpoint,
			DefaultModel: p.Model,
		})
		if err != nil {
			return nil, err
		}
		return providers.NewBlockingClient(provider), nil

	case "openai":
		return providers.NewBlockingClient(adapters.NewOpenAIProvider(p.APIKey)), nil

	case "google":
		provider, err := adapters.NewGoogleProvider(adapters.GoogleConfig{
			APIKey:       p.APIKey,
			DefaultModel: p.Model,
		})
		if err != nil {
			return nil, err
		}
		return providers.NewBlockingClient(provider), nil

	case "bedrock":
		provider, err := adapters.NewBedrockProvider(adapters.BedrockConfig{
			Region:       p.Region,
			DefaultModel: p.Model,
		})
		if err != nil {
			return nil, err
		}
		return providers.NewBlockingClient(provider), nil

	case "ollama":
		provider := adapters.NewOllamaProvider(adapters.OllamaConfig{
			BaseURL:      p.Endpoint,
			DefaultModel: p.Model,
		})
		return providers.NewBlockingClient(provider), nil

	case "venice":
		provider, err := venice.NewVeniceProvider(venice.VeniceConfig{
			APIKey:       p.APIKey,
			DefaultModel: p.Model,
		})
		if err != nil {
			return nil, err
		}
		return providers.NewBlockingClient(provider), nil

	default:
		return nil, fmt.Errorf("unknown provider family %q", p.Family)
	}
}
