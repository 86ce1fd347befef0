// brewpassd is the loyalty-platform server: wallet-provider protocol surface,
// operator API, health probes, and metrics, on a single listener.
package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"

	"github.com/brewpass/brewpass/internal/cache"
	memcache "github.com/brewpass/brewpass/internal/cache/memory"
	redcache "github.com/brewpass/brewpass/internal/cache/redis"
	"github.com/brewpass/brewpass/internal/config"
	httpserver "github.com/brewpass/brewpass/internal/http"
	"github.com/brewpass/brewpass/internal/http/controllers/admin"
	"github.com/brewpass/brewpass/internal/http/controllers/health"
	"github.com/brewpass/brewpass/internal/http/controllers/wallet"
	"github.com/brewpass/brewpass/internal/http/services/giftcard"
	"github.com/brewpass/brewpass/internal/http/services/loyalty"
	"github.com/brewpass/brewpass/internal/metrics"
	"github.com/brewpass/brewpass/internal/notify"
	"github.com/brewpass/brewpass/internal/observability/logger"
	"github.com/brewpass/brewpass/internal/passkit"
	"github.com/brewpass/brewpass/internal/rate"
	"github.com/brewpass/brewpass/internal/registry"
	"github.com/brewpass/brewpass/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

const version = "1.2.0"

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("BREWPASS_CONFIG_PATH"), "path to YAML config (env-only when empty)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.L().Fatal("load config", logger.Err(err))
		}
	} else {
		cfg = config.LoadFromEnv()
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: "info", ServiceName: "brewpassd", Version: version})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", logger.Err(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal("open store", logger.Err(err))
	}
	defer st.Close()

	// Shared Redis client for cache and rate limiting when configured.
	var redisClient *rdb.Client
	if cfg.Cache.Kind == "redis" || cfg.Rate.Enabled {
		redisClient = rdb.NewClient(&rdb.Options{Addr: cfg.Cache.Redis.Addr, DB: cfg.Cache.Redis.DB})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable at startup", logger.Err(err))
		}
	}

	var assetCache cache.Cache
	if cfg.Cache.Kind == "redis" && redisClient != nil {
		assetCache = redcache.NewFromClient(redisClient, cfg.Cache.Redis.Prefix)
	} else {
		assetCache = memcache.New(cfg.MemoryCacheTTL())
	}

	var limiter rate.Limiter
	if cfg.Rate.Enabled && redisClient != nil {
		limiter = rate.NewRedisLimiter(redisClient, "rl:", cfg.Rate.MaxRequests, cfg.RateWindow())
	}

	// Pass signing. Missing material keeps the server up: protocol endpoints
	// answer, pass builds report the configuration error.
	var signer passkit.Signer
	if cfg.Wallet.SigningCert != "" && cfg.Wallet.SigningKey != "" {
		cms, err := passkit.NewCMSSigner(passkit.SigningConfig{
			CertBase64:     cfg.Wallet.SigningCert,
			KeyBase64:      cfg.Wallet.SigningKey,
			KeyPassphrase:  cfg.Wallet.SigningKeyPass,
			WWDRCertBase64: cfg.Wallet.WWDRCert,
		})
		if err != nil {
			log.Fatal("load signing credentials", logger.Err(err))
		}
		signer = cms
	} else {
		log.Warn("pass signing credentials not configured, pass builds will fail")
	}

	library := passkit.NewLibrary(cfg.Wallet.AssetsDir, passkit.ProgressRenderer{}, assetCache, cfg.MemoryCacheTTL())
	builder := passkit.NewBuilder(passkit.Issuer{
		TeamID:           cfg.Wallet.TeamID,
		OrganizationName: cfg.Wallet.OrganizationName,
		Description:      cfg.Wallet.Description,
		BaseURL:          cfg.Server.BaseURL,
		AuthSecret:       cfg.Wallet.AuthSecret,
	}, signer, library)

	if !passkit.PubliclyResolvable(cfg.Server.BaseURL) {
		log.Warn("base URL not publicly resolvable, passes ship without a web service callback",
			logger.String("base_url", cfg.Server.BaseURL))
	}

	// Push. Unconfigured credentials degrade to no-op notification.
	var pusher notify.Pusher
	if cfg.PushConfigured() {
		keyPEM, err := base64.StdEncoding.DecodeString(cfg.Push.PrivateKey)
		if err != nil {
			log.Fatal("decode push key", logger.Err(err))
		}
		apns, err := notify.NewAPNSClient(notify.APNSConfig{
			KeyID:      cfg.Push.KeyID,
			TeamID:     cfg.Push.TeamID,
			PrivateKey: keyPEM,
			Production: cfg.Push.Production,
		})
		if err != nil {
			log.Fatal("init push client", logger.Err(err))
		}
		pusher = apns
	} else {
		log.Info("push credentials not configured, device notification disabled")
	}

	reg := registry.New(st.Registrations())
	notifier := notify.New(reg, pusher)

	loyaltySvc := loyalty.New(loyalty.Deps{
		Customers:  st.Customers(),
		Notifier:   notifier,
		PassTypeID: cfg.Wallet.PassTypeID,
	})
	giftCardSvc := giftcard.New(giftcard.Deps{
		Cards:      st.GiftCards(),
		Notifier:   notifier,
		PassTypeID: cfg.Wallet.GiftCardPassTypeID,
	})

	promReg := prometheus.NewRegistry()
	metricsHandler, err := metrics.Register(promReg)
	if err != nil {
		log.Fatal("register metrics", logger.Err(err))
	}

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Loyalty: &wallet.Controller{
			PassTypeID: cfg.Wallet.PassTypeID,
			AuthSecret: cfg.Wallet.AuthSecret,
			Registry:   reg,
			Source:     loyaltySvc,
			Builder:    builder,
			Logs:       st.WalletLogs(),
		},
		GiftCard: &wallet.Controller{
			PassTypeID: cfg.Wallet.GiftCardPassTypeID,
			AuthSecret: cfg.Wallet.AuthSecret,
			Registry:   reg,
			Source:     giftCardSvc,
			Builder:    builder,
			Logs:       st.WalletLogs(),
		},
		Admin: &admin.Controller{
			Customers: st.Customers(),
			Loyalty:   loyaltySvc,
			GiftCards: giftCardSvc,
			Builder:   builder,
		},
		Health:             &health.Controller{Store: st, Version: version},
		Metrics:            metricsHandler,
		AdminAPIKey:        cfg.Server.AdminAPIKey,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		RateLimiter:        limiter,
	})

	srv := httpserver.NewServer(cfg.Server.Addr, router)
	go func() {
		log.Info("listening", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", logger.Err(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	if err := httpserver.Shutdown(srv, 10*time.Second); err != nil {
		log.Warn("shutdown incomplete", logger.Err(err))
	}
}
