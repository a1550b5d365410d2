package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akamensky/argparse"
	"github.com/rs/zerolog"

	"github.com/andesco/allorigins/handlers"
	"github.com/andesco/allorigins/pkg/config"
	"github.com/andesco/allorigins/pkg/fetch"
	"github.com/andesco/allorigins/pkg/logging"
	"github.com/andesco/allorigins/pkg/server"
	"github.com/andesco/allorigins/pkg/version"
)

func main() {
	parser := argparse.NewParser(version.Name, "Fetches any URL on behalf of a browser and answers with CORS headers")

	configPath := parser.String("c", "config", &argparse.Options{
		Required: false,
		Default:  os.Getenv("CONFIG"),
		Help:     "YAML configuration file. Defaults to $CONFIG",
	})
	addr := parser.String("a", "addr", &argparse.Options{
		Required: false,
		Help:     "Plain HTTP listen address. Overrides $HTTP_ADDR",
	})
	tlsAddr := parser.String("s", "tls-addr", &argparse.Options{
		Required: false,
		Help:     "HTTPS listen address. Overrides $HTTPS_ADDR",
	})
	cert := parser.String("", "cert", &argparse.Options{
		Required: false,
		Help:     "TLS certificate file. Overrides $TLS_CERT",
	})
	keyFile := parser.String("", "key", &argparse.Options{
		Required: false,
		Help:     "TLS private key file. Overrides $TLS_KEY",
	})
	timeout := parser.String("t", "timeout", &argparse.Options{
		Required: false,
		Help:     "Outbound timeout, e.g. 15 or 15s. 0 disables it. Overrides $HTTP_TIMEOUT",
	})
	logLevel := parser.String("l", "log-level", &argparse.Options{
		Required: false,
		Help:     "Log level: debug, info, warn or error. Overrides $LOG_LEVEL",
	})
	showVersion := parser.Flag("v", "version", &argparse.Options{
		Required: false,
		Help:     "Print the version and exit",
	})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(2)
	}

	if *showVersion {
		fmt.Printf("%s %s\n", version.Name, version.Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	overrides := []struct{ flag, key, value string }{
		{"addr", "http_addr", *addr},
		{"tls-addr", "https_addr", *tlsAddr},
		{"cert", "tls_cert", *cert},
		{"key", "tls_key", *keyFile},
		{"timeout", "timeout", *timeout},
		{"log-level", "log_level", *logLevel},
	}
	for _, o := range overrides {
		if o.value == "" {
			continue
		}
		if err := cfg.Set(o.key, o.value); err != nil {
			fatal(fmt.Errorf("--%s: %w", o.flag, err))
		}
	}
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	log, err := logging.New(cfg)
	if err != nil {
		fatal(err)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := fetch.New(fetch.Options{
		Timeout:        time.Duration(cfg.Timeout),
		MaxRedirects:   cfg.MaxRedirects,
		AllowedDomains: cfg.AllowedDomains,
		UserAgent:      version.UserAgent(),
	})
	h := handlers.New(fetcher, log, cfg.LogURLs)

	log.Info().
		Str("version", version.Version).
		Strs("allowed_domains", cfg.AllowedDomains).
		Dur("timeout", time.Duration(cfg.Timeout)).
		Msg("starting " + version.Name)

	return server.New(h, log).ListenAndServe(ctx, cfg)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "ERROR:", err)
	os.Exit(1)
}
