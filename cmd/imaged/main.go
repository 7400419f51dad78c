package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"imaged/internal/artifact"
	"imaged/internal/config"
	"imaged/internal/engine"
	"imaged/internal/gpu"
	"imaged/internal/httpapi"
	"imaged/internal/pipeline"
	"imaged/internal/registry"
	"imaged/internal/textgen"
	"imaged/pkg/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "imaged:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "imaged",
		Short:         "Image generation daemon with single-slot model residency",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg config.Config
			if configPath != "" {
				var err error
				cfg, err = config.Load(configPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}

			// Explicit flags win over the config file; flag defaults fill
			// whatever the file left unset.
			fl := cmd.Flags()
			strVal := func(name string, fileVal string) string {
				if fl.Changed(name) || fileVal == "" {
					v, _ := fl.GetString(name)
					return v
				}
				return fileVal
			}
			intVal := func(name string, fileVal int) int {
				if fl.Changed(name) || fileVal == 0 {
					v, _ := fl.GetInt(name)
					return v
				}
				return fileVal
			}
			boolVal := func(name string, fileVal bool) bool {
				if fl.Changed(name) {
					v, _ := fl.GetBool(name)
					return v
				}
				return fileVal
			}
			csvVal := func(name string, fileVal []string) []string {
				if fl.Changed(name) || len(fileVal) == 0 {
					v, _ := fl.GetString(name)
					return splitCSV(v)
				}
				return fileVal
			}

			cfg.Addr = strVal("addr", cfg.Addr)
			cfg.ModelsDir = strVal("models-dir", cfg.ModelsDir)
			cfg.OutputDir = strVal("output-dir", cfg.OutputDir)
			cfg.ArtifactDB = strVal("artifact-db", cfg.ArtifactDB)
			cfg.VRAMHeadroomMB = intVal("vram-headroom-mb", cfg.VRAMHeadroomMB)
			cfg.DefaultFamily = strVal("default-family", cfg.DefaultFamily)
			cfg.Offload = boolVal("offload", cfg.Offload)
			cfg.MaxQueueDepth = intVal("max-queue-depth", cfg.MaxQueueDepth)
			cfg.MaxWaitSeconds = intVal("max-wait-seconds", cfg.MaxWaitSeconds)
			cfg.MaxBodyMB = intVal("max-body-mb", cfg.MaxBodyMB)
			cfg.LogLevel = strVal("log-level", cfg.LogLevel)
			cfg.TextModelPath = strVal("text-model", cfg.TextModelPath)
			cfg.CORSEnabled = boolVal("cors", cfg.CORSEnabled)
			cfg.CORSOrigins = csvVal("cors-origins", cfg.CORSOrigins)
			cfg.CORSMethods = csvVal("cors-methods", cfg.CORSMethods)
			cfg.CORSHeaders = csvVal("cors-headers", cfg.CORSHeaders)

			return run(cfg)
		},
	}

	fl := root.Flags()
	fl.StringVar(&configPath, "config", envStr("IMAGED_CONFIG", ""), "Optional config file (.yaml/.json/.toml)")
	fl.String("addr", envStr("IMAGED_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	fl.String("models-dir", envStr("IMAGED_MODELS_DIR", "~/models/image"), "Models root directory")
	fl.String("output-dir", envStr("IMAGED_OUTPUT_DIR", "output"), "Directory for generated images")
	fl.String("artifact-db", envStr("IMAGED_ARTIFACT_DB", ""), "Path to the sqlite artifact index (empty disables)")
	fl.Int("vram-headroom-mb", 1024, "Accelerator memory that must be free before a model load")
	fl.String("default-family", "", "Family used when requests omit one (sdxl|flux)")
	fl.Bool("offload", false, "Keep pipeline weights in host memory, streamed on demand")
	fl.Int("max-queue-depth", 32, "Queued generation requests before 429")
	fl.Int("max-wait-seconds", 30, "Max seconds a request may wait for the generation slot")
	fl.Int("max-body-mb", 32, "Max JSON request body size in MiB")
	fl.String("log-level", envStr("IMAGED_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	fl.String("text-model", envStr("IMAGED_TEXT_MODEL", ""), "GGUF text model path (empty disables text endpoints)")
	fl.Bool("cors", false, "Enable CORS middleware")
	fl.String("cors-origins", "*", "Comma-separated allowed CORS origins")
	fl.String("cors-methods", "GET,POST,OPTIONS", "Comma-separated allowed CORS methods")
	fl.String("cors-headers", "Accept,Content-Type", "Comma-separated allowed CORS headers")

	return root
}

func run(cfg config.Config) error {
	logger := newLogger(cfg.LogLevel)

	reg, err := registry.New(cfg.ModelsDir)
	if err != nil {
		return fmt.Errorf("models dir: %w", err)
	}
	if cfg.DefaultFamily != "" {
		if err := reg.SetDefaultFamily(types.Family(cfg.DefaultFamily)); err != nil {
			return err
		}
	}

	device := gpu.NewHostDevice()
	guard := gpu.NewGuard(device, uint64(cfg.VRAMHeadroomMB)<<20)
	loader := pipeline.NewLoader(pipeline.UnavailableBackend{})

	var index *artifact.Index
	if cfg.ArtifactDB != "" {
		index, err = artifact.OpenIndex(cfg.ArtifactDB)
		if err != nil {
			return fmt.Errorf("artifact index: %w", err)
		}
		defer index.Close()
	}
	store, err := artifact.NewStore(cfg.OutputDir, "/images", index, logger)
	if err != nil {
		return fmt.Errorf("artifact store: %w", err)
	}

	eng := engine.New(engine.Config{
		Catalog:       reg,
		Guard:         guard,
		Loader:        loader,
		Store:         store,
		Offload:       cfg.Offload,
		MaxQueueDepth: cfg.MaxQueueDepth,
		MaxWait:       time.Duration(cfg.MaxWaitSeconds) * time.Second,
		Logger:        logger,
	})
	defer eng.Close()

	opts := httpapi.Options{
		Artifacts: store,
		ImagesDir: store.Dir(),
	}
	if cfg.TextModelPath != "" {
		text := textgen.New(textgen.NewLlamaAdapter(4096, 8), cfg.TextModelPath, logger)
		defer text.Close()
		opts.Text = text
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetLogger(logger)
	httpapi.SetMaxBodyBytes(int64(cfg.MaxBodyMB) << 20)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, cfg.CORSMethods, cfg.CORSHeaders)

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(eng, opts)}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("models_dir", reg.Root()).Msg("imaged listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	// Cancel in-flight batches, then drain the listener.
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// splitCSV splits a comma-separated list, trimming blanks.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
