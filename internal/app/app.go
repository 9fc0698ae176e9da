// Package app wires the stores, gateways and services shared by the
// server, the worker and the ops CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/unclebandit/coupon-dispatch/internal/carrier"
	"github.com/unclebandit/coupon-dispatch/internal/config"
	"github.com/unclebandit/coupon-dispatch/internal/crypto"
	"github.com/unclebandit/coupon-dispatch/internal/db"
	"github.com/unclebandit/coupon-dispatch/internal/events"
	"github.com/unclebandit/coupon-dispatch/internal/queue"
	"github.com/unclebandit/coupon-dispatch/internal/repository"
	"github.com/unclebandit/coupon-dispatch/internal/scheduler"
	"github.com/unclebandit/coupon-dispatch/internal/service"
	"github.com/unclebandit/coupon-dispatch/internal/vendor"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger

	DB       *sqlx.DB
	AgentDB  *sqlx.DB
	Store    *repository.SQLStore
	Envelope *crypto.Envelope
	Vendor   *vendor.Client
	// Sandbox is set when the vendor runs in mock mode.
	Sandbox *vendor.SandboxTransport
	Agent   *carrier.AgentStore
	Events  events.Publisher
	Deps    service.Deps

	Dispatch  *service.DispatchService
	Reconcile *service.ReconcileService
	CS        *service.CSService
	Coupons   *service.CouponService
	Products  *service.ProductService
}

// New connects to the databases and builds every service. The caller owns
// the returned App and must Close it.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log}

	var err error
	a.DB, err = db.Connect(ctx, cfg.DB.Driver, cfg.DB.URL, cfg.DB.MaxOpenConn, cfg.DB.ConnMaxIdle, log)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, a.DB); err != nil {
		a.DB.Close()
		return nil, err
	}
	a.Store = repository.NewSQLStore(a.DB)

	scheme, err := crypto.ParseHashScheme(cfg.PhoneHash)
	if err != nil {
		a.DB.Close()
		return nil, err
	}
	a.Envelope, err = crypto.NewEnvelope(cfg.EncryptionKey, crypto.WithHashScheme(scheme))
	if err != nil {
		a.DB.Close()
		return nil, fmt.Errorf("encryption key: %w", err)
	}

	a.Vendor = a.newVendor()

	shared, err := a.openAgent(ctx)
	if err != nil {
		a.DB.Close()
		return nil, err
	}

	a.Events, err = newPublisher(cfg.Kafka, log)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Deps = service.Deps{
		Store:         a.Store,
		Vendor:        a.Vendor,
		Carrier:       a.Agent,
		Cipher:        a.Envelope,
		Events:        a.Events,
		Logger:        log,
		Locks:         service.NewRecipientLocks(),
		SharedAgentDB: shared,
	}
	a.Dispatch = service.NewDispatchService(a.Deps, cfg.Dispatch.Workers)
	a.Reconcile = service.NewReconcileService(a.Deps)
	a.CS = service.NewCSService(a.Deps)
	a.Coupons = service.NewCouponService(a.Deps)
	a.Products = service.NewProductService(a.Deps)
	return a, nil
}

func (a *App) newVendor() *vendor.Client {
	cfg := a.Config.Vendor
	policy := vendor.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseBackoff: cfg.BaseBackoff,
		MaxBackoff:  cfg.MaxBackoff,
	}
	if cfg.MockMode {
		a.Sandbox = vendor.NewSandboxTransport()
		a.Logger.Warn("voucher vendor running in mock mode")
		return vendor.NewClient(a.Sandbox, policy, a.Logger)
	}
	return vendor.NewClient(vendor.NewHTTPTransport(cfg.BaseURL, cfg.PocID, cfg.Timeout), policy, a.Logger)
}

// openAgent reports whether the agent tables live in the main database, in
// which case enqueues join the dispatch transaction.
func (a *App) openAgent(ctx context.Context) (bool, error) {
	cfg := a.Config.Agent
	opts := carrier.Options{
		RequestChannel: cfg.RequestChannel,
		TrafficType:    cfg.TrafficType,
		DeptCode:       cfg.DeptCode,
		UserID:         cfg.UserID,
		CallbackNumber: cfg.CallbackNumber,
		Sandbox:        cfg.Sandbox,
	}

	if cfg.Sandbox && cfg.URL == "" {
		a.Agent = carrier.NewAgentStore(a.DB, opts, a.Logger)
		if err := a.Agent.EnsureSchema(ctx); err != nil {
			return false, err
		}
		a.Logger.Warn("carrier agent tables share the main database")
		return true, nil
	}

	agentDB, err := db.Connect(ctx, cfg.Driver, cfg.URL, 0, 0, a.Logger)
	if err != nil {
		return false, fmt.Errorf("carrier agent: %w", err)
	}
	a.AgentDB = agentDB
	a.Agent = carrier.NewAgentStore(agentDB, opts, a.Logger)
	if cfg.Sandbox {
		if err := a.Agent.EnsureSchema(ctx); err != nil {
			agentDB.Close()
			return false, err
		}
	}
	return false, nil
}

func newPublisher(cfg config.KafkaConfig, log *slog.Logger) (events.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return events.Noop{}, nil
	}
	producer, err := events.NewSaramaProducer(cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	log.Info("publishing status events", slog.String("topic", cfg.Topic))
	return events.NewKafkaPublisher(producer, cfg.Topic, log), nil
}

// NewQueue returns the AMQP queue when configured, else an in-process one.
func (a *App) NewQueue() (queue.Queue, error) {
	if a.Config.Queue.AMQPURL == "" {
		return queue.NewInMemoryQueue(a.Logger), nil
	}
	q, err := queue.DialAMQP(a.Config.Queue.AMQPURL, a.Logger)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Scheduler builds the periodic carrier, voucher and catalogue syncs.
func (a *App) Scheduler() *scheduler.Scheduler {
	cfg := a.Config.Scheduler
	return scheduler.New(a.Logger,
		scheduler.Job{
			Name:     JobCarrierSync,
			Interval: cfg.CarrierSync.Interval,
			Enabled:  cfg.CarrierSync.Enabled,
			Run: func(ctx context.Context) error {
				_, err := a.Reconcile.SyncActiveCampaigns(ctx, cfg.Lookback)
				return err
			},
		},
		scheduler.Job{
			Name:     JobCouponSync,
			Interval: cfg.CouponSync.Interval,
			Enabled:  cfg.CouponSync.Enabled,
			Run: func(ctx context.Context) error {
				_, err := a.Reconcile.SyncCouponStatuses(ctx, cfg.CouponBatch)
				return err
			},
		},
		scheduler.Job{
			Name:     JobProductSync,
			Interval: cfg.ProductSync.Interval,
			Enabled:  cfg.ProductSync.Enabled,
			Run: func(ctx context.Context) error {
				_, err := a.Products.SyncProducts(ctx)
				return err
			},
		},
	)
}

const (
	JobCarrierSync = "carrier_sync"
	JobCouponSync  = "coupon_sync"
	JobProductSync = "product_sync"
)

// Close flushes the event publisher and closes the databases.
func (a *App) Close(ctx context.Context) error {
	if a.Events != nil {
		a.Events.Close(ctx)
	}
	var errs []error
	if a.AgentDB != nil {
		errs = append(errs, a.AgentDB.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
