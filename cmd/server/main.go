package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/cinema-booking-engine/internal/booking"
	"github.com/iliyamo/cinema-booking-engine/internal/catalog"
	"github.com/iliyamo/cinema-booking-engine/internal/config"
	"github.com/iliyamo/cinema-booking-engine/internal/database"
	"github.com/iliyamo/cinema-booking-engine/internal/engine"
	"github.com/iliyamo/cinema-booking-engine/internal/handler"
	"github.com/iliyamo/cinema-booking-engine/internal/middleware"
	"github.com/iliyamo/cinema-booking-engine/internal/payment"
	"github.com/iliyamo/cinema-booking-engine/internal/queue"
	"github.com/iliyamo/cinema-booking-engine/internal/receipt"
	"github.com/iliyamo/cinema-booking-engine/internal/repository"
	"github.com/iliyamo/cinema-booking-engine/internal/router"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logrus.WithError(err).Fatal("load .env")
	}
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped with error")
	}
	log.Info("server stopped")
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.IsProd() {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

func openStores(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (booking.Store, receipt.Store, *sql.DB, error) {
	if cfg.StorageDriver != config.StorageMySQL {
		log.Info("using in-memory storage")
		return repository.NewMemoryBookingRepo(), repository.NewMemoryReceiptRepo(), nil, nil
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := database.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	log.WithField("host", cfg.DBHost).Info("using mysql storage")
	return repository.NewMySQLBookingRepo(db), repository.NewMySQLReceiptRepo(db), db, nil
}

func newUsers(cfg config.Config) (*repository.UserDirectory, error) {
	seeds := []repository.UserSeed{repository.DemoUser}
	if cfg.DemoUsers != "" {
		parsed, err := repository.ParseUserSeeds(cfg.DemoUsers)
		if err != nil {
			return nil, err
		}
		seeds = parsed
	}
	return repository.NewUserDirectory(seeds, cfg.BcryptCost)
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	cat, err := catalog.Seed()
	if err != nil {
		return err
	}
	bookingStore, receiptStore, db, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	users, err := newUsers(cfg)
	if err != nil {
		return err
	}

	bookings := booking.NewService(bookingStore, cat, booking.Config{
		HoldTTL:  cfg.Booking.HoldTTL,
		MaxSeats: cfg.Booking.MaxSeats,
	}, log)

	var publisher queue.Publisher = queue.NopPublisher{}
	if cfg.AMQP.Enabled {
		publisher = queue.NewAMQPPublisher(cfg.AMQP.URL, log)
	}

	eng, err := engine.New(engine.Deps{
		Catalog:  cat,
		Bookings: bookings,
		Receipts: receipt.NewIssuer(receiptStore, cat, log),
		Gateway: payment.NewSimulated(payment.SimulatedConfig{
			Delay:       cfg.Payment.Delay,
			FailureRate: cfg.Payment.FailureRate,
		}, log),
		Publisher:      publisher,
		PaymentTimeout: cfg.Payment.Timeout,
		Logger:         log,
	})
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if client := config.NewRedisClient(config.LoadRedisConfig()); client != nil {
		rdb = client
		defer rdb.Close()
	} else {
		log.Warn("redis unavailable; rate limiting and response cache disabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(users, cfg.JWTSecret, cfg.AccessTTL), cfg.JWTSecret)
	router.RegisterPublic(e, handler.NewPublicHandler(eng), middleware.NewRedisCache(config.LoadCacheConfig(), rdb, log))
	router.RegisterCustomer(e, handler.NewCustomerHandler(eng, users), cfg.JWTSecret)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := ":" + cfg.Port
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return booking.NewSweeper(bookings, cfg.Booking.SweepInterval, log).Start(gctx)
	})

	if cfg.AMQP.Enabled {
		g.Go(func() error {
			return queue.StartReceiptConsumer(gctx, cfg.AMQP.URL, queue.ReceiptLogger{Path: cfg.AMQP.ReceiptLogPath}, log)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
