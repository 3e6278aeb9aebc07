package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/starkhealth/backend/internal"
	"github.com/starkhealth/backend/internal/config"
	"github.com/starkhealth/backend/internal/logging"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

// secrets come from the environment only, never from the config file.
type secrets struct {
	WhoopClientID        string `env:"STARK_WHOOP_CLIENT_ID"`
	WhoopClientSecret    string `env:"STARK_WHOOP_CLIENT_SECRET"`
	WithingsClientID     string `env:"STARK_WITHINGS_CLIENT_ID"`
	WithingsClientSecret string `env:"STARK_WITHINGS_CLIENT_SECRET"`
	OpenAIAPIKey         string `env:"STARK_OPENAI_API_KEY"`
	CronSecret           string `env:"STARK_CRON_SECRET"`
	RedisPassword        string `env:"STARK_REDIS_PASS"`
	SentryDSN            string `env:"SENTRY_DSN"`
}

func main() {
	fmt.Println("starting ...")

	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	log.Warnf("---->> running in [%s] environment", *env)

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	var sec secrets
	if err := envconfig.Process(ctx, &sec); err != nil {
		log.Fatalf("process env secrets: %s", err)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    false,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        sec.SentryDSN,
		SentryServerName: "stark-health-service",
	})

	log.Debugf("using port: %d", cfg.Port)
	log.Debugf("using server logs path: [%s]", cfg.LogsPath)

	if sec.WhoopClientID == "" || sec.WhoopClientSecret == "" {
		log.Errorf("whoop oauth credentials not set, use STARK_WHOOP_CLIENT_ID and STARK_WHOOP_CLIENT_SECRET")
	}
	if sec.WithingsClientID == "" || sec.WithingsClientSecret == "" {
		log.Errorf("withings oauth credentials not set, use STARK_WITHINGS_CLIENT_ID and STARK_WITHINGS_CLIENT_SECRET")
	}
	if sec.OpenAIAPIKey == "" {
		log.Errorf("openai api key not set, use STARK_OPENAI_API_KEY")
	}
	if sec.CronSecret == "" {
		log.Errorf("cron secret not set, use STARK_CRON_SECRET")
	}
	if sec.RedisPassword == "" {
		log.Errorf("redis password not set, use STARK_REDIS_PASS")
	}

	versionInfo, err := tryGetLastCommitHash()
	if err != nil {
		log.Tracef("failed to get last commit hash / version info: %s", err)
	} else {
		log.Tracef("running version: %s", versionInfo)
	}

	honeycombEnabled := os.Getenv("HONEYCOMB_ENABLED") == "true"
	if honeycombEnabled {
		if honeycombApiKey := os.Getenv("HONEYCOMB_API_KEY"); honeycombApiKey == "" {
			log.Warnln("HONEYCOMB_API_KEY env var not set")
		}
	} else {
		log.Debugln("honeycomb tracing disabled")
	}

	chOsInterrupt := make(chan os.Signal, 1)
	signal.Notify(chOsInterrupt, os.Interrupt, syscall.SIGTERM)

	server, err := internal.NewServer(
		ctx,
		internal.NewServerParams{
			Config:                  cfg,
			WhoopClientID:           sec.WhoopClientID,
			WhoopClientSecret:       sec.WhoopClientSecret,
			WithingsClientID:        sec.WithingsClientID,
			WithingsClientSecret:    sec.WithingsClientSecret,
			OpenAIAPIKey:            sec.OpenAIAPIKey,
			CronSecret:              sec.CronSecret,
			RedisPassword:           sec.RedisPassword,
			VersionInfo:             versionInfo,
			HoneycombTracingEnabled: honeycombEnabled,
		},
	)
	if err != nil {
		log.Fatalf("new server: %s", err)
	}

	server.Serve(ctx, cfg.Host, cfg.Port)

	receivedSig := <-chOsInterrupt
	log.Warnf("signal [%s] received, killing everything ...", receivedSig)
	cancel()

	server.GracefulShutdown()
}

// tryGetLastCommitHash assumes the built executable runs from the
// project root.
func tryGetLastCommitHash() (string, error) {
	cmd := exec.Command("/usr/bin/git", "rev-parse", "HEAD")
	stdout, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(stdout)), nil
}
