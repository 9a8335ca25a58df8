// ABOUTME: Entry point for the slack-dispatch bot server.
// ABOUTME: Wires config, the responder directory, and the events server together.

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/slack-dispatch/internal/agents"
	"github.com/2389/slack-dispatch/internal/config"
	"github.com/2389/slack-dispatch/internal/dedupe"
	"github.com/2389/slack-dispatch/internal/llm"
	"github.com/2389/slack-dispatch/internal/server"
	"github.com/2389/slack-dispatch/internal/slackapi"
	"github.com/2389/slack-dispatch/internal/transfer"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
     _                  _           _ _                 _       _
 ___| | __ _  ___ _ __ | |_      __| (_)___ _ __   __ _| |_ ___| |__
/ __| |/ _' |/ __| '_ \| __|____/ _' | / __| '_ \ / _' | __/ __| '_ \
\__ \ | (_| | (__| < < | ||_____| (_| | \__ \ |_) | (_| | || (__| | | |
|___/_|\__,_|\___|_|\_\ \__|     \__,_|_|___/ .__/ \__,_|\__\___|_| |_|
                                            |_|
`

// getConfigPath returns the path to the config file.
// Priority: DISPATCH_CONFIG env var > XDG_CONFIG_HOME/slack-dispatch/config.yaml > ~/.config/slack-dispatch/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("DISPATCH_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "slack-dispatch", "config.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: slack-dispatch <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                    Start the bot server")
		fmt.Println("  init                     Create a new config file interactively")
		fmt.Println("  copy-thread SRC DEST     Copy a thread between channels")
		fmt.Println("  health                   Check server health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "copy-thread":
		err = runCopyThread(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config: %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:   %s\n", cfg.Server.HTTPAddr)
	fmt.Println()

	logger.Info("starting slack-dispatch",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	srv, err := buildServer(cfg, logger)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

// buildServer assembles the full dispatch stack from config.
func buildServer(cfg *config.Config, logger *slog.Logger) (*server.Server, error) {
	slackClient := slackapi.New(cfg.Slack.BotToken, logger)

	llmClient, err := llm.NewOpenAIClient(llm.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		MaxRetries: cfg.Retries.Max,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	registry := agents.NewRegistry(logger)
	classifier := agents.NewClassifier(llmClient, cfg.Models.Classifier, cfg.Timeouts.Generate, logger)

	copier := transfer.NewCopier(slackClient, logger)
	summarizer := transfer.NewSummarizer(slackClient, llmClient, cfg.Models.Supervisor, cfg.Timeouts.Generate, logger)

	if err := registry.Register(agents.NewChatResponder(llmClient, classifier, cfg.Models.Chat, cfg.Timeouts.Generate, logger)); err != nil {
		return nil, err
	}
	if err := registry.Register(agents.NewSupervisorResponder(llmClient, registry, cfg.Models.Supervisor, cfg.Models.Planner, cfg.Timeouts.Generate, logger)); err != nil {
		return nil, err
	}
	specialized := []agents.Responder{
		agents.NewWeatherResponder(llmClient, cfg.Models.Chat, cfg.Timeouts.Tool, logger),
		agents.NewSearchResponder(llmClient, cfg.Models.Chat, cfg.Timeouts.Tool, cfg.Search.APIKey, cfg.Search.BaseURL, logger),
		agents.NewMetricsResponder(&agents.StaticSource{}, logger),
		agents.NewThreadsResponder(copier, summarizer, logger),
	}
	for _, resp := range specialized {
		if err := registry.RegisterSpecialized(resp); err != nil {
			return nil, err
		}
	}

	return server.New(
		server.Options{
			Addr:          cfg.Server.HTTPAddr,
			SigningSecret: cfg.Slack.SigningSecret,
			Verbose:       cfg.Logging.Verbose,
		},
		slackClient,
		agents.NewOrchestrator(registry, logger),
		dedupe.New(dedupe.DefaultTTL, dedupe.DefaultMaxEntries),
		logger,
	), nil
}

// runCopyThread copies a thread directly from the command line, without
// going through the bot conversation flow.
func runCopyThread(ctx context.Context) error {
	args := os.Args[2:]
	if len(args) != 2 {
		return fmt.Errorf("usage: slack-dispatch copy-thread SOURCE_LINK DEST_LINK")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg.Logging)

	slackClient := slackapi.New(cfg.Slack.BotToken, logger)
	copier := transfer.NewCopier(slackClient, logger)

	res := copier.Copy(ctx, args[0], args[1])

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	if !res.Success {
		red.Printf("✗ %s\n", res.Message)
		os.Exit(1)
	}

	green.Printf("✓ %s\n", res.Message)
	fmt.Printf("  source:   %s\n", res.SourceChannel)
	fmt.Printf("  dest:     %s\n", res.DestChannel)
	fmt.Printf("  messages: %d\n", res.MessageCount)
	fmt.Printf("  chunks:   %d\n", res.ChunkCount)
	fmt.Printf("  access:   %s\n", res.Access)
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("slack-dispatch configuration setup")
	fmt.Println("==================================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	fmt.Println("\n--- Slack Configuration ---")
	fmt.Println("Leave as-is to read credentials from the environment at startup.")
	botToken := prompt(reader, "Bot token", "${SLACK_BOT_TOKEN}")
	signingSecret := prompt(reader, "Signing secret", "${SLACK_SIGNING_SECRET}")

	fmt.Println("\n--- Model Configuration ---")
	apiKey := prompt(reader, "OpenAI API key", "${OPENAI_API_KEY}")
	chatModel := prompt(reader, "Chat model", config.DefaultChatModel)
	supervisorModel := prompt(reader, "Supervisor model", config.DefaultSupervisorModel)

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# slack-dispatch configuration\n")
	cfg.WriteString("# Generated by slack-dispatch init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("slack:\n")
	cfg.WriteString(fmt.Sprintf("  bot_token: \"%s\"\n", botToken))
	cfg.WriteString(fmt.Sprintf("  signing_secret: \"%s\"\n", signingSecret))
	cfg.WriteString("\n")

	cfg.WriteString("openai:\n")
	cfg.WriteString(fmt.Sprintf("  api_key: \"%s\"\n", apiKey))
	cfg.WriteString("\n")

	cfg.WriteString("models:\n")
	cfg.WriteString(fmt.Sprintf("  chat: \"%s\"\n", chatModel))
	cfg.WriteString(fmt.Sprintf("  supervisor: \"%s\"\n", supervisorModel))
	cfg.WriteString("\n")

	cfg.WriteString("timeouts:\n")
	cfg.WriteString("  generate: \"30s\"\n")
	cfg.WriteString("  platform: \"15s\"\n")
	cfg.WriteString("  tool: \"20s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("retries:\n")
	cfg.WriteString("  max: 3\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  slack-dispatch serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
