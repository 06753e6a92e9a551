package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"medassist/internal/config"
	"medassist/internal/core"
	"medassist/internal/db"
	"medassist/internal/grounding"
	httpserver "medassist/internal/http"
	"medassist/internal/intent"
	"medassist/internal/llm"
	"medassist/internal/metrics"
	"medassist/internal/speech"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "assistant",
		Short:         "Medical front-desk assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runChat(cfg)
		},
	}
	cmd.Flags().String("classifier", "", "Intent classifier: llm or regex")
	cmd.Flags().Bool("voice", false, "Listen and speak instead of typing")
	cmd.Flags().String("patients-file", "", "Path to the patient records file")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the patient records over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
	cmd.Flags().String("port", "", "Port to listen on")
	cmd.Flags().String("patients-file", "", "Path to the patient records file")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the patients table in DATABASE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL must be set")
			}
			logger := newLogger(cfg)
			conn, err := openPostgres(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := db.Migrate(cmd.Context(), conn); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			logger.Info().Msg("migrations applied")
			return nil
		},
	}
}

// loadConfig reads the environment and applies the command's flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("classifier") {
		cfg.Classifier, _ = flags.GetString("classifier")
	}
	if flags.Changed("voice") {
		cfg.VoiceEnabled, _ = flags.GetBool("voice")
	}
	if flags.Changed("patients-file") {
		cfg.PatientsFile, _ = flags.GetString("patients-file")
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetString("port")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	// The conversation owns stdout.
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return logger.Level(level)
}

func openPostgres(ctx context.Context, url string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return conn, nil
}

// openStore builds the configured patient store.  The returned close func
// releases any database connection.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (db.Store, func(), error) {
	switch cfg.StoreBackend {
	case "postgres":
		conn, err := openPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx, conn); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		notifier := db.NewNotifier(conn, cfg.PostgresNotifyChannel)
		return db.NewPostgresStore(conn, notifier, logger), func() { conn.Close() }, nil
	case "memory":
		return db.NewMemoryStore(), func() {}, nil
	default:
		return db.NewFileStore(cfg.PatientsFile, logger), func() {}, nil
	}
}

func newClassifier(cfg *config.Config, logger zerolog.Logger) core.IntentClassifier {
	if cfg.Classifier == "regex" {
		return intent.NewRegexClassifier()
	}
	client := llm.NewOpenAIClient(llm.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModelChat,
		MaxTokens:   150,
		Temperature: 0.1,
		JSONMode:    true,
	})
	if !client.Configured() {
		logger.Warn().Msg("OPENAI_API_KEY not set; every turn will fall back to general conversation")
	}
	return intent.NewLLMClassifier(client, cfg.ClassifierTimeout, logger)
}

func newIO(cfg *config.Config, logger zerolog.Logger) (core.Input, core.Output) {
	text := core.NewTextInput(os.Stdin, os.Stdout, "You: ")
	if !cfg.VoiceEnabled {
		return text, core.NewTextOutput(os.Stdout)
	}
	in := speech.NewVoiceInput(
		speech.CommandRecorder{Command: cfg.RecordCommand},
		speech.NewHTTPTranscriber(cfg.STTURL, 0),
		text,
		cfg.ListenAttempts,
		os.Stdout,
		logger,
	)
	out := speech.NewVoiceOutput(
		speech.NewHTTPSynthesizer(cfg.TTSURL, cfg.TTSAPIKey, cfg.TTSVoiceID, 0),
		speech.CommandPlayer{Command: cfg.PlayCommand},
		os.Stdout,
	)
	return in, &speakOrPrint{out: out, log: logger}
}

// speakOrPrint keeps the conversation going when speech output fails; the
// text has already been printed by then.
type speakOrPrint struct {
	out *speech.VoiceOutput
	log zerolog.Logger
}

func (s *speakOrPrint) Say(ctx context.Context, text string) error {
	if err := s.out.Say(ctx, text); err != nil {
		s.log.Warn().Err(err).Msg("speech output failed")
	}
	return nil
}

func runChat(cfg *config.Config) error {
	logger := newLogger(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	rec := metrics.New()
	repo := db.NewRepository(store)
	repo.Metrics = rec
	if _, err := repo.LoadAll(ctx); err != nil {
		if errors.Is(err, db.ErrStoreCorrupt) {
			return fmt.Errorf("patient records are unreadable, fix or move them before starting: %w", err)
		}
		return fmt.Errorf("load patient records: %w", err)
	}

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: rec.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server error")
			}
		}()
		defer srv.Close()
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
	}

	var gc grounding.Client
	if cfg.PhenoMLBase != "" && cfg.PhenoMLJWT != "" {
		gc = grounding.NewPhenoMLClient(cfg.PhenoMLBase, cfg.PhenoMLJWT, cfg.GroundingTimeout)
	} else {
		logger.Info().Msg("PHENOML_BASE/PHENOML_JWT not set; symptoms will not be grounded")
	}

	engine := core.NewEngine(repo, newClassifier(cfg, logger), gc, rec, logger)
	in, out := newIO(cfg, logger)

	return core.NewSession(engine, in, out, logger).Run(ctx)
}

func runServer(cfg *config.Config) error {
	logger := newLogger(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	s := httpserver.NewServer(store, metrics.New(), cfg.CORSOrigins, logger)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
