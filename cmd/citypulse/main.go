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

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/citypulse/internal/profile"
	"github.com/hrygo/citypulse/internal/version"
	"github.com/hrygo/citypulse/search"
	"github.com/hrygo/citypulse/search/cache"
	"github.com/hrygo/citypulse/search/executor"
	"github.com/hrygo/citypulse/search/flags"
	"github.com/hrygo/citypulse/search/geo"
	"github.com/hrygo/citypulse/search/intent"
	"github.com/hrygo/citypulse/search/metrics"
	"github.com/hrygo/citypulse/search/plan"
	"github.com/hrygo/citypulse/search/provider"
	"github.com/hrygo/citypulse/server"
)

var rootCmd = &cobra.Command{
	Use:   "citypulse",
	Short: `A hyperlocal discovery engine. Find places and events around you with natural-language search.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// .env is a development convenience; production uses real env vars.
		_ = godotenv.Load()
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Version: version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			panic(err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		engine, exporter, err := buildEngine(instanceProfile)
		if err != nil {
			slog.Error("failed to build engine", "error", err)
			return
		}

		s, err := server.NewServer(ctx, instanceProfile, engine, exporter)
		if err != nil {
			slog.Error("failed to create server", "error", err)
			return
		}

		c := make(chan os.Signal, 1)
		// The default signal sent by `kill` is SIGTERM, which most process
		// managers use to request graceful shutdown.
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
			}
		}
		<-ctx.Done()
	},
}

// buildEngine assembles the pipeline from the profile: model classifier,
// cache backend, gazetteer, providers, and metrics.
func buildEngine(p *profile.Profile) (*search.Engine, *metrics.PrometheusExporter, error) {
	flagSet := flags.NewFromEnv()
	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())

	var model intent.ModelClassifier
	if p.IsModelEnabled() {
		m, err := intent.NewModelClassifier(intent.ModelConfig{
			Provider:       p.ModelProvider,
			Model:          p.ModelName,
			APIKey:         p.ModelAPIKey,
			BaseURL:        p.ModelBaseURL,
			TimeoutSeconds: p.ModelTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		model = m
		slog.Info("model classifier enabled", "provider", p.ModelProvider, "model", p.ModelName)
	}
	classifier := intent.NewHybridClassifier(model, func() bool {
		return flagSet.Enabled(flags.ModelClassifier)
	})

	var store cache.Store
	if p.RedisAddr != "" && flagSet.Enabled(flags.DistributedCache) {
		client := redis.NewClient(&redis.Options{
			Addr:     p.RedisAddr,
			Password: p.RedisPassword,
			DB:       p.RedisDB,
		})
		store = cache.NewRedisStore(client, "citypulse:")
		slog.Info("using redis cache backend", "addr", p.RedisAddr)
	}

	var cities geo.CityResolver
	var zips geo.ZipResolver
	if p.GeoDBPath != "" {
		geoStore, err := geo.OpenSQLiteStore(p.GeoDBPath)
		if err != nil {
			return nil, nil, err
		}
		cities, zips = geoStore, geoStore
		slog.Info("using sqlite gazetteer", "path", p.GeoDBPath)
	}

	catalog := newCatalog(p)
	exec := executor.New(executor.Config{
		Places:  catalog,
		Events:  catalog,
		Store:   store,
		Flags:   flagSet,
		Metrics: exporter,
	})

	engine := search.NewEngine(search.Config{
		Classifier: classifier,
		Resolver:   plan.NewResolver(cities, zips),
		Executor:   exec,
		Flags:      flagSet,
		Metrics:    exporter,
	})
	return engine, exporter, nil
}

// newCatalog returns the provider backend. Only the built-in sample catalog
// ships today; outside demo mode that deserves a loud warning so nobody
// mistakes canned results for live data.
func newCatalog(p *profile.Profile) *provider.MockCatalog {
	if p.Mode != "demo" {
		slog.Warn("no live provider integration configured, serving the built-in sample catalog",
			"mode", p.Mode)
	}
	return provider.NewMockCatalog()
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("port", 28090)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28090, "port of server")

	for _, name := range []string{"mode", "addr", "port"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("citypulse")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("CityPulse %s started successfully!\n", p.Version)
	if p.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}
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
