package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/config"
	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/core/hiring"
	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/gitlab"
	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/logging"
	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/metrics"
	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/prompt"
	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/publish"
	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/store/sqlite"
	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/telegram"
	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/web"
)

func main() {
	configPath := pflag.String("config", "", "path to yaml config file")
	dbPath := pflag.String("db", "", "sqlite database path, overrides config")
	listen := pflag.String("listen", "", "status page address, overrides config")
	logLevel := pflag.String("log-level", "", "log level, overrides config")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Can not load config: %v", err)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	log, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		logrus.Fatalf("Can not set up logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("hiring bot stopped")
	}
	log.Info("hiring bot stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	store, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return errors.Wrapf(err, "can not open database %q", cfg.DBPath)
	}
	defer store.Close()

	bot, err := telegram.Connect(cfg.Telegram.Token, cfg.Telegram.Proxy, log)
	if err != nil {
		return err
	}

	prompts := prompt.NewRegistry(cfg.Timeouts.Confirmation)
	transport := telegram.NewTransport(bot, prompts)

	opts := []hiring.Option{
		hiring.WithLogger(log),
		hiring.WithMetrics(metrics.Recorder{}),
	}

	if cfg.Gitlab.Token != "" {
		git, err := gitlab.New(cfg.Gitlab.Token, cfg.Gitlab.BaseURL, log.WithField("component", "gitlab"))
		if err != nil {
			return err
		}
		opts = append(opts, hiring.WithWorkInspector(git))
	}

	if cfg.AMQP.URL != "" {
		sink, err := publish.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			return err
		}
		defer sink.Close()
		opts = append(opts, hiring.WithReportSinks(sink))
	}

	if cfg.Notion.Token != "" {
		opts = append(opts, hiring.WithReportSinks(publish.NewNotionSink(cfg.Notion.Token, cfg.Notion.DatabaseID)))
	}

	svc := hiring.NewService(cfg.Hiring(), store, transport, opts...)
	router := telegram.NewRouter(svc, transport, log.WithField("component", "telegram"))

	reg := prometheus.NewRegistry()
	metrics.Register(reg,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	server := web.NewServer(&web.Handlers{Source: svc, Log: log}, reg, log.WithField("component", "web"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		prompts.Start()
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		prompts.Stop()
		return nil
	})
	g.Go(func() error {
		return telegram.Listen(ctx, bot, func(u tgbotapi.Update) {
			router.Handle(ctx, u)
		})
	})
	g.Go(func() error {
		return server.Listen(ctx, cfg.Listen)
	})

	return g.Wait()
}
