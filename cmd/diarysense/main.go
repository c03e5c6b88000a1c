package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/diarysense/internal/profile"
	"github.com/hrygo/diarysense/internal/version"
	"github.com/hrygo/diarysense/metrics"
	"github.com/hrygo/diarysense/nlp/analyzer"
	"github.com/hrygo/diarysense/nlp/llm"
	"github.com/hrygo/diarysense/server"
	"github.com/hrygo/diarysense/store"
	"github.com/hrygo/diarysense/store/cache"
	"github.com/hrygo/diarysense/store/db/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "diarysense",
	Short: `A diary analysis service. Extracts structured activities and achievements from free-form diary entries.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Skip .env loading when running under systemd, which injects the
		// environment itself. Otherwise a missing .env is fine.
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode: viper.GetString("mode"),
			Addr: viper.GetString("addr"),
			Port: viper.GetInt("port"),
			Data: viper.GetString("data"),
		}
		instanceProfile.FromEnv()
		instanceProfile.Version = version.GetCurrentVersion(instanceProfile.Mode)
		if err := instanceProfile.Validate(); err != nil {
			panic(err)
		}

		setupLogger(instanceProfile)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		dbDriver, err := sqlite.NewDB(instanceProfile)
		if err != nil {
			slog.Error("failed to create db driver", "error", err)
			return
		}
		storeInstance := store.New(dbDriver, instanceProfile)
		if err := storeInstance.Migrate(ctx); err != nil {
			slog.Error("failed to migrate", "error", err)
			return
		}

		cacheSvc := buildCache(instanceProfile)
		exporter := metrics.NewExporter()
		llmParser := buildLLMParser(instanceProfile)

		analyzerInstance := analyzer.New(analyzer.Config{
			UseLLMFallback:               instanceProfile.UseLLMFallback,
			CacheEnabled:                 instanceProfile.CacheEnabled,
			HeuristicConfidenceThreshold: instanceProfile.HeuristicConfidenceThreshold,
			DefaultTimeMinutes:           instanceProfile.DefaultTimeMinutes,
			AchievementDefaultWeight:     instanceProfile.AchievementDefaultWeight,
			RedactPII:                    instanceProfile.PIIRedactionEnabled,
		}, storeInstance, cacheSvc, llmParser, exporter)

		s, err := server.NewServer(ctx, instanceProfile, storeInstance, cacheSvc, analyzerInstance, exporter)
		if err != nil {
			slog.Error("failed to create server", "error", err)
			return
		}

		c := make(chan os.Signal, 1)
		// Trigger graceful shutdown on SIGINT or SIGTERM.
		// The default signal sent by the `kill` command is SIGTERM,
		// which is taken as the graceful shutdown signal for many systems, eg., Kubernetes, Gunicorn.
		signal.Notify(c, terminationSignals...)

		go func() {
			<-c
			s.Shutdown(ctx)
			cancel()
		}()

		printGreetings(instanceProfile)

		if err := s.Start(ctx); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				slog.Error("failed to start server", "error", err)
				cancel()
			}
		}

		<-ctx.Done()
	},
}

func setupLogger(p *profile.Profile) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: p.SlogLevel()}
	if p.IsDev() {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func buildCache(p *profile.Profile) cache.Service {
	if !p.CacheEnabled {
		return cache.NewMemory()
	}
	return cache.New(p.RedisURL, time.Duration(p.CacheTTL)*time.Second)
}

func buildLLMParser(p *profile.Profile) llm.Parser {
	if !p.IsLLMEnabled() {
		slog.Info("llm fallback disabled", "use_llm_fallback", p.UseLLMFallback, "api_key_set", p.OpenAIAPIKey != "")
		return nil
	}
	return llm.NewOpenAIParser(llm.Config{
		APIKey:        p.OpenAIAPIKey,
		BaseURL:       p.OpenAIBaseURL,
		Model:         p.OpenAIModel,
		MaxTokens:     p.OpenAIMaxTokens,
		Temperature:   p.OpenAITemperature,
		Timeout:       time.Duration(p.LLMTimeout) * time.Second,
		MaxRetries:    p.LLMMaxRetries,
		RatePerMinute: p.LLMRatePerMinute,
		MaxConcurrent: 4,
	})
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("port", 28090)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28090, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")

	for _, flag := range []string{"mode", "addr", "port", "data"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("diarysense")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("DiarySense %s started successfully!\n", p.Version)

	if p.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}

	fmt.Printf("Data directory: %s\n", p.Data)
	fmt.Printf("History database: %s\n", p.DatabaseURL)
	fmt.Printf("Mode: %s\n", p.Mode)

	if len(p.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", p.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", p.Addr, p.Port)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
