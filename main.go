package main

import (
	"context"
	"errors"
	"imageblender/internal/adapters/blend"
	"imageblender/internal/adapters/encoder"
	"imageblender/internal/adapters/file"
	"imageblender/internal/adapters/handler"
	"imageblender/internal/adapters/script"
	"imageblender/internal/core/service"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func main() {
	log.Info().Msg("starting imageblender...")

	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("toml")
	viper.SetEnvPrefix("blender")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	log.Info().Msg("reading config file...")
	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatal().Err(err).Msg("could not read config file")
		}
		log.Info().Msg("no config file found, using defaults")
	}

	if viper.GetBool("log.pretty") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	var logLevel zerolog.Level

	switch viper.GetString("log.level") {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "info":
		logLevel = zerolog.InfoLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pluginPath := viper.GetString("script.plugin")

	chain := &service.ProviderChain{}
	chain.Register(script.NewMemoryProvider(pluginPath, script.OpenPlugin))
	chain.Register(script.NewPathProvider(pluginPath, script.OpenPlugin))
	chain.Register(script.NewCommandProvider(
		viper.GetStringSlice("script.command"),
		viper.GetString("script.dir"),
		viper.GetString("script.output_flag"),
		viper.GetDuration("script.timeout")))

	workspaces := file.NewWorkspaceManager(viper.GetString("workspace.root"), viper.GetString("workspace.prefix"))

	blender := service.NewBlender(chain, workspaces, blend.NewAverageBlender(), encoder.NewPNGEncoder())

	srv := &http.Server{
		Addr:              viper.GetString("server.address"),
		Handler:           handler.NewRouter(handler.NewBlendHandler(blender), log.Logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       viper.GetDuration("server.read_timeout"),
		WriteTimeout:      viper.GetDuration("server.write_timeout"),
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("server.shutdown_timeout"))
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	log.Info().Str("address", srv.Addr).Strs("providers", chain.ListProviders()).Msg("server listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func setDefaults() {
	viper.SetDefault("server.address", ":8000")
	viper.SetDefault("server.read_timeout", "2m")
	viper.SetDefault("server.write_timeout", "2m")
	viper.SetDefault("server.shutdown_timeout", "45s")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.pretty", false)
	viper.SetDefault("workspace.root", "")
	viper.SetDefault("workspace.prefix", "blend_")
	viper.SetDefault("script.plugin", "blend.so")
	viper.SetDefault("script.command", []string{"./blend"})
	viper.SetDefault("script.dir", ".")
	viper.SetDefault("script.output_flag", script.DefaultOutputFlag)
	viper.SetDefault("script.timeout", script.DefaultTimeout.String())
}
