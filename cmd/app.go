package cmd

import (
	"fmt"
	"io"

	"github.com/jmehdipour/wa-notifier/internal/config"
	"github.com/jmehdipour/wa-notifier/internal/db"
	"github.com/jmehdipour/wa-notifier/internal/dispatcher"
	"github.com/jmehdipour/wa-notifier/internal/kafka"
	"github.com/jmehdipour/wa-notifier/internal/logger"
	"github.com/jmehdipour/wa-notifier/internal/recipient"
	"github.com/jmehdipour/wa-notifier/internal/report"
	"github.com/jmehdipour/wa-notifier/internal/repository"
	"github.com/jmehdipour/wa-notifier/internal/service/broadcast"
	"github.com/jmehdipour/wa-notifier/internal/transport"
	"go.uber.org/zap"
)

// app holds everything a batch needs, shared by serve and send.
type app struct {
	cfg      config.Config
	svc      *broadcast.Service
	outcomes repository.OutcomesRepository // nil when audit.driver is none

	closers []func() error
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)
	return cfg, nil
}

func newApp(cfg config.Config) (*app, error) {
	a := &app{cfg: cfg}

	// 1) transport
	sender, err := newSender(cfg.Transport)
	if err != nil {
		return nil, err
	}

	// 2) dispatcher
	policy, ok := dispatcher.ParseFailurePolicy(cfg.Dispatch.FailurePolicy)
	if !ok {
		return nil, fmt.Errorf("invalid dispatch.failure_policy %q", cfg.Dispatch.FailurePolicy)
	}
	if cfg.Dispatch.Delay < 0 {
		return nil, fmt.Errorf("invalid dispatch.delay %s", cfg.Dispatch.Delay)
	}
	disp := dispatcher.NewDispatcher(sender, cfg.Dispatch.Delay, policy)

	// 3) report sinks
	var sinks report.Fanout
	if cfg.Audit.Driver != "" && cfg.Audit.Driver != "none" {
		sqlDB, err := db.NewSQLConnection(cfg.Audit.Driver, cfg.Audit.DSN, sqlOpts(cfg.Audit))
		if err != nil {
			return nil, fmt.Errorf("audit store: %w", err)
		}
		a.closers = append(a.closers, sqlDB.Close)

		repo := repository.NewOutcomesRepository(sqlDB)
		a.outcomes = repo
		sinks = append(sinks, repo)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		pub := kafka.NewPublisherFromConfig(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		})
		a.closers = append(a.closers, pub.Close)
		sinks = append(sinks, pub)
	}

	norm := recipient.New(cfg.Recipient.CountryCode, cfg.Recipient.Template, cfg.Recipient.StrictNumbers)
	if len(sinks) > 0 {
		a.svc = broadcast.New(norm, disp, sinks)
	} else {
		a.svc = broadcast.New(norm, disp, nil)
	}

	logger.Log.Info("pipeline ready",
		zap.String("transport", cfg.Transport.Driver),
		zap.Duration("delay", cfg.Dispatch.Delay),
		zap.String("policy", string(policy)),
		zap.Int("sinks", len(sinks)))

	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Log.Warn("close failed", zap.Error(err))
		}
	}
}

func newSender(tc config.TransportConfig) (transport.Sender, error) {
	switch tc.Driver {
	case "", "http":
		if tc.BaseURL == "" {
			return nil, fmt.Errorf("transport.base_url is required for the http driver")
		}
		return transport.NewHTTPBridge(
			tc.BaseURL,
			tc.SendPath,
			tc.AddressSuffix,
			tc.Token,
			tc.Timeout,
			tc.Breaker.FailThreshold,
			tc.Breaker.OpenFor,
		), nil
	case "dryrun":
		return transport.DryRun{Suffix: tc.AddressSuffix}, nil
	default:
		return nil, fmt.Errorf("unknown transport.driver %q", tc.Driver)
	}
}

func sqlOpts(c config.DatabaseConfig) db.SQLOpts {
	return db.SQLOpts{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		PingTimeout:     c.PingTimeout,
	}
}

// consoleFor returns where pairing codes are drawn, or nil for none.
func consoleFor(cfg config.Config, w io.Writer) io.Writer {
	if cfg.HTTP.Mode == "json" || cfg.Session.ConsoleQR {
		return w
	}
	return nil
}
