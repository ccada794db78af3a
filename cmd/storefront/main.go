package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	_ "github.com/go-sql-driver/mysql"

	"storefront/migrations"
	catalogmysql "storefront/pkg/catalog/mysql"
	"storefront/pkg/common/domain"
	amqpinfra "storefront/pkg/infrastructure/amqp"
	"storefront/pkg/metrics"
	orderservice "storefront/pkg/order/domain/service"
	ordermysql "storefront/pkg/order/infrastructure/mysql"
	"storefront/pkg/payment"
	"storefront/pkg/pricing"
	reviewservice "storefront/pkg/review/domain/service"
	reviewmysql "storefront/pkg/review/infrastructure/mysql"
	"storefront/transport"
)

const appID = "storefront"

type config struct {
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	DatabaseDSN string `envconfig:"DATABASE_DSN" required:"true"`
	AMQPURL     string `envconfig:"AMQP_URL"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	PaymentProviderURL     string        `envconfig:"PAYMENT_PROVIDER_URL"`
	PaymentProviderToken   string        `envconfig:"PAYMENT_PROVIDER_TOKEN"`
	PaymentProviderTimeout time.Duration `envconfig:"PAYMENT_PROVIDER_TIMEOUT" default:"10s"`

	ShippingFlatFeeCents       int64   `envconfig:"SHIPPING_FLAT_FEE_CENTS" default:"1000"`
	FreeShippingThresholdCents int64   `envconfig:"FREE_SHIPPING_THRESHOLD_CENTS" default:"10000"`
	TaxRate                    float64 `envconfig:"TAX_RATE" default:"0.15"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func main() {
	app := &cli.App{
		Name:  appID,
		Usage: "storefront order, pricing and rating engine",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run migrations and serve the HTTP API",
				Action: serve,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serve(_ *cli.Context) error {
	var cfg config
	if err := envconfig.Process(appID, &cfg); err != nil {
		return errors.Wrap(err, "parse config")
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return errors.Wrap(err, "parse log level")
	}
	log.SetLevel(level)
	log.SetFormatter(&log.JSONFormatter{})

	db, err := sqlx.Connect("mysql", cfg.DatabaseDSN)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer db.Close()

	if err := migrateUp(db); err != nil {
		return err
	}

	var dispatcher domain.EventDispatcher = domain.NopDispatcher{}
	if cfg.AMQPURL != "" {
		conn, ch, err := amqpinfra.Setup(cfg.AMQPURL)
		if err != nil {
			return errors.Wrap(err, "setup amqp")
		}
		defer conn.Close()
		dispatcher = amqpinfra.NewDispatcher(ch)
	}

	var gateway payment.Gateway = payment.StaticGateway{}
	if cfg.PaymentProviderURL != "" {
		gateway = payment.NewHTTPGateway(cfg.PaymentProviderURL, cfg.PaymentProviderToken, cfg.PaymentProviderTimeout)
	} else {
		log.Warn("no payment provider configured, trusting client confirmations")
	}

	policy := pricing.Policy{
		FlatFeeCents:       cfg.ShippingFlatFeeCents,
		FreeThresholdCents: cfg.FreeShippingThresholdCents,
		TaxRate:            cfg.TaxRate,
	}

	orders := orderservice.NewOrderService(
		ordermysql.NewOrderRepository(db),
		catalogmysql.NewProductCatalog(db),
		gateway,
		policy,
		dispatcher,
	)
	reviews := reviewservice.NewReviewService(reviewmysql.NewRatingRepository(db), dispatcher)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: transport.Router(orders, reviews, metrics.NewServerMetrics()),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return errors.Wrap(server.Shutdown(shutdownCtx), "shutdown http server")
	})

	return group.Wait()
}

func migrateUp(db *sqlx.DB) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return errors.Wrap(err, "open migration source")
	}
	driver, err := migratemysql.WithInstance(db.DB, &migratemysql.Config{})
	if err != nil {
		return errors.Wrap(err, "open migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", source, "mysql", driver)
	if err != nil {
		return errors.Wrap(err, "create migrator")
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}
