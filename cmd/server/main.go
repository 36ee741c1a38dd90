// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/shufflebox/internal/api/connect"
	"github.com/osa030/shufflebox/internal/app/notification"
	"github.com/osa030/shufflebox/internal/app/session"
	"github.com/osa030/shufflebox/internal/app/source"
	"github.com/osa030/shufflebox/internal/infra/config"
	"github.com/osa030/shufflebox/internal/infra/lastfm"
	"github.com/osa030/shufflebox/internal/infra/logger"
	"github.com/osa030/shufflebox/internal/infra/spotify"
	"github.com/osa030/shufflebox/internal/infra/store"
)

var (
	app        = kingpin.New("shufflebox-server", "shufflebox shuffle session server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-sources command
	listSourcesCmd = app.Command("list-sources", "List configured sources and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	// Override with command-line flags if specified
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	// Handle list-sources command
	if command == listSourcesCmd.FullCommand() {
		printSources(cfg)
		return
	}

	// Run server (defer ensures shutdown hook is called)
	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	// Open snapshot store
	snapshots, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := snapshots.Close(); err != nil {
			zlog.Error().Msgf("Failed to close store: %v", err)
		}
	}()

	// Create remote API clients only when a source needs them
	var clients source.Clients
	if cfg.HasSpotifySource() {
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RefreshToken: cfg.Spotify.RefreshToken,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return fmt.Errorf("failed to create Spotify client: %w", err)
		}
		if err := validatePlaylists(ctx, cfg, client); err != nil {
			return fmt.Errorf("playlist validation failed: %w", err)
		}
		clients.Spotify = client
	}
	if cfg.HasLastFMSource() {
		client, err := lastfm.New(lastfm.Config{APIKey: cfg.LastFM.APIKey})
		if err != nil {
			return fmt.Errorf("failed to create Last.fm client: %w", err)
		}
		clients.LastFM = client
	}

	// Build sources
	sources, err := source.NewRegistryFromConfig(cfg, clients)
	if err != nil {
		return fmt.Errorf("failed to build sources: %w", err)
	}

	// Create session manager
	notifier := notification.NewManager()
	sessionMgr := session.NewManager(session.Config{
		ChunkSize: cfg.Shuffle.ChunkSize,
	}, sources, snapshots, notifier)

	// Create RPC service
	shuffleService := apiconnect.NewShuffleService(sessionMgr, sources, notifier)

	// Create HTTP mux
	mux := http.NewServeMux()
	path, handler := shuffleService.Handler(
		connect.WithInterceptors(apiconnect.NewAuthInterceptor(cfg.API.Token)),
	)
	mux.Handle(path, handler)

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	// Channel to capture server startup errors
	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	// Start server
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s sources=%v", cfg.Server.Addr, sources.Names())
		// Signal that we're about to start listening
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	// Wait for server to start listening
	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	// Execute startup hook if configured (after server is running)
	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	// Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// End subscription streams first so Shutdown does not wait on them.
	// Sessions are dropped but their snapshots stay for resume.
	shuffleService.Close()
	sessionMgr.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	// Execute shutdown hook if configured
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// printSources prints the configured sources.
func printSources(cfg *config.Config) {
	fmt.Println("Configured Sources:")
	for _, s := range cfg.Sources {
		fmt.Printf("  %-30s - %s\n", s.Name, s.Type)
	}
}

// validatePlaylists checks that every configured Spotify playlist exists.
// This uses lightweight checks to avoid fetching all tracks during startup.
// It includes retry logic to handle transient errors during startup.
func validatePlaylists(ctx context.Context, cfg *config.Config, spotifyClient *spotify.Client) error {
	maxRetries := 5
	baseDelay := 1 * time.Second

	validate := func(name, url string) error {
		zlog.Info().Msgf("Validating playlist: source=%s url=%s", name, url)

		var lastErr error
		for i := 0; i < maxRetries; i++ {
			if i > 0 {
				delay := baseDelay * time.Duration(1<<uint(i-1))
				zlog.Info().Msgf("Retrying playlist validation in %v: source=%s", delay, name)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}

			title, err := spotifyClient.PlaylistName(ctx, url)
			if err != nil {
				lastErr = err
				zlog.Warn().Msgf("Failed to validate playlist (attempt %d/%d): source=%s error=%v", i+1, maxRetries, name, err)
				continue
			}

			zlog.Info().Msgf("Playlist validated successfully: source=%s playlist=%q", name, title)
			return nil
		}
		return fmt.Errorf("failed after %d attempts: %v", maxRetries, lastErr)
	}

	for _, s := range cfg.Sources {
		if s.Type != source.TypeSpotify {
			continue
		}
		url, _ := s.Settings["playlist_url"].(string)
		if err := validate(s.Name, url); err != nil {
			return fmt.Errorf("source %s (%s): %w", s.Name, url, err)
		}
	}
	return nil
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
