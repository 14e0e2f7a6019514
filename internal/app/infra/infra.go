// Package infra поднимает общую инфраструктуру процессов API и планировщика:
// PostgreSQL, Redis, RabbitMQ, почтовый транспорт и сервис рассылки.
package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/cache"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/config"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/ledger"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/clock"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/mailer"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/metrics"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/migrations"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/rabbitmq"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/services/dispatcher"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/storage/repository"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/templates"
)

// Infra открытые соединения процесса.
type Infra struct {
	Storage    *repository.Storage
	Cache      *cache.Cache
	Clock      *clock.Business
	Metrics    *metrics.Collector
	Dispatcher *dispatcher.Service

	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *slog.Logger
}

// Options что поднимать помимо базы.
type Options struct {
	// Migrate применить миграции при старте.
	Migrate bool
	// Registerer реестр метрик. nil означает prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// Open подключается ко всем зависимостям и собирает сервис рассылки.
// При ошибке уже открытые соединения закрываются.
func Open(ctx context.Context, cfg *config.Config, opts Options, logger *slog.Logger) (*Infra, error) {
	const op = "infra.Open"

	clk, err := clock.New(cfg.BusinessTimezone)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	st, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	i := &Infra{Storage: st, Clock: clk, logger: logger}

	if opts.Migrate {
		if err := migrations.Run(st.DB, cfg.MigrationsPath); err != nil {
			i.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := repository.WaitReady(ctx, st, 10, 3*time.Second); err != nil {
		i.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	i.Cache, err = cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		i.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var publisher dispatcher.EventPublisher
	if cfg.RabbitMQEnabled {
		i.conn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			i.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		i.ch, err = rabbitmq.SetupChannel(i.conn, rabbitmq.ReminderQueues())
		if err != nil {
			i.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		publisher = rabbitmq.NewPublisher(i.ch)
	} else {
		logger.Warn("rabbitmq disabled, dispatch events will not be published")
	}

	m, err := mailer.New(cfg.Mail, logger)
	if err != nil {
		i.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	renderer, err := templates.New()
	if err != nil {
		i.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	i.Metrics = metrics.NewCollector(reg)

	i.Dispatcher = dispatcher.New(dispatcher.Deps{
		Users:     st,
		Ledger:    ledger.New(st),
		Renderer:  renderer,
		Mailer:    m,
		Publisher: publisher,
		Sweeps:    i.Cache,
		Limiter:   rate.NewLimiter(rate.Limit(cfg.BulkRatePerSecond), cfg.BulkBurst),
		Clock:     clk,
		Metrics:   i.Metrics,
	}, dispatcher.Options{
		MailTimeout:  cfg.MailTimeout,
		SweepLockTTL: cfg.SweepLockTTL,
		RenewalLink:  cfg.RenewalLink,
	}, logger)

	return i, nil
}

// Close закрывает все открытые соединения.
func (i *Infra) Close() {
	if i.ch != nil {
		if err := i.ch.Close(); err != nil {
			i.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if i.conn != nil {
		if err := i.conn.Close(); err != nil {
			i.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if i.Cache != nil {
		if err := i.Cache.Close(); err != nil {
			i.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if i.Storage != nil {
		if err := i.Storage.Close(); err != nil {
			i.logger.Error("failed to close storage", sl.Err(err))
		}
	}
}
