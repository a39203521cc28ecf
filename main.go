package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/handlers"
	"storefront/internal/mailer"
	"storefront/internal/repository"
	"storefront/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	config.Load()
	cfg := config.AppEnv

	if cfg.JWTSecret == "" {
		log.Fatal("[BOOT] [ERROR] JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			log.Printf("[BOOT] [ERROR] mongo disconnect: %v", err)
		}
	}()

	db := client.Database(cfg.DBName)
	log.Println("[BOOT] [INFO] MongoDB connected to:", db.Name())

	if err := database.EnsureIndexes(db); err != nil {
		log.Printf("[BOOT] [WARN] index setup: %v", err)
	}

	/* === STORES === */

	counters := repository.NewMongoSequence(db)
	var (
		sessionCarts services.CartPersistence
		publishers   events.Fanout
		payments     handlers.PaymentWatcher
	)

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatalf("[BOOT] [ERROR] redis ping %s: %v", cfg.RedisAddr, err)
		}

		notifier := events.NewPaymentNotifier(rdb)
		sessionCarts = repository.NewRedisCartStore(rdb, cfg.AnonymousCartTTL)
		publishers = append(publishers, notifier)
		payments = notifier
		log.Println("[BOOT] [INFO] redis enabled:", cfg.RedisAddr)
	} else {
		sessionCarts = repository.NewMemoryCartStore()
		log.Println("[BOOT] [WARN] REDIS_ADDR not set: anonymous carts are in-process and payment events are disabled")
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer := events.NewKafkaOrderPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
		defer func() {
			if err := producer.Close(); err != nil {
				log.Printf("[BOOT] [ERROR] kafka close: %v", err)
			}
		}()
		publishers = append(publishers, producer)
		log.Printf("[BOOT] [INFO] order events -> kafka topic %s", cfg.KafkaOrderTopic)
	}

	var mail services.Mailer = mailer.LogMailer{}
	if cfg.SMTPHost != "" {
		mail = mailer.NewSMTPMailer(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}

	products := repository.NewProductRepository(db, counters)
	categories := repository.NewCategoryRepository(db)

	/* === SERVICES === */

	carts := services.NewCartService(repository.NewMongoCartStore(db), sessionCarts, products)
	orders := services.NewOrderService(
		repository.NewOrderRepository(db),
		products,
		carts,
		counters,
		services.NewShippingPolicy(cfg.FreeShippingThreshold, cfg.ShippingFee),
		publishers,
	)
	accounts := services.NewAccountService(
		repository.NewUserRepository(db),
		repository.NewRefreshTokenRepository(db),
		products,
		mail,
		services.AccountConfig{
			JWTSecret:  cfg.JWTSecret,
			AccessTTL:  cfg.AccessTokenTTL,
			RefreshTTL: cfg.RefreshTokenTTL,
			CodeTTL:    cfg.VerificationCodeTTL,
		},
	)

	/* === HTTP === */

	router := handlers.NewRouter(handlers.Deps{
		JWTSecret:  cfg.JWTSecret,
		PublicDir:  cfg.PublicDir,
		Carts:      carts,
		Orders:     orders,
		Accounts:   accounts,
		Products:   products,
		Categories: categories,
		Uploads:    handlers.NewUploadStorage(cfg.PublicDir),
		Payments:   payments,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("[BOOT] [INFO] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Println("[BOOT] [INFO] shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("[BOOT] [ERROR] %v", err)
	}
}
