package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"activepanel/internal/cache"
	"activepanel/internal/cleanup"
	"activepanel/internal/config"
	"activepanel/internal/database"
	"activepanel/internal/middleware"
	"activepanel/internal/modules/session"
	"activepanel/internal/pkg/token"
	"activepanel/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	// Missing or broken key material is fatal: the process must not start
	// signing with keys it cannot verify.
	keys, err := token.LoadKeyPairFromEnv(cfg.PrivateKeyPath, cfg.PublicKeyPath)
	if err != nil {
		log.Fatalf("key material: %v", err)
	}
	codec, err := token.NewCodec(keys, cfg.Issuer, cfg.Audience, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	var revCache *cache.BlacklistCache
	if cfg.RedisAddr != "" {
		revCache, err = cache.NewBlacklistCache(cfg.RedisAddr)
		if err != nil {
			// Cache is advisory; run without it.
			log.Printf("redis unavailable, running without blacklist cache: %v", err)
			revCache = nil
		}
	}

	userRepo := repository.NewUserRepository(db)
	ledger := repository.NewRefreshTokenRepository(db)
	blacklist := repository.NewBlacklistRepository(db)

	sessionService := session.NewService(userRepo, ledger, blacklist, codec, revCache)
	sessionHandler := session.NewHandler(sessionService, cookieConfig(cfg), nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := cleanup.NewScheduler(ledger, blacklist, cfg.CleanupInterval, cfg.Retention)
	go scheduler.Run(ctx)

	r := gin.Default()
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorLogger())

	v1 := r.Group("/api/v1")
	{
		// public
		sessionHandler.RegisterPublicRoutes(v1)

		// protected
		protected := v1.Group("/")
		protected.Use(middleware.JWTAuth(codec, blacklist, revCache))
		{
			sessionHandler.RegisterProtectedRoutes(protected)
		}
	}

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	if err := r.Run(addr); err != nil {
		log.Fatal(err)
	}
}

func cookieConfig(cfg *config.Config) session.CookieConfig {
	sameSite := http.SameSiteLaxMode
	switch strings.ToLower(cfg.CookieSameSite) {
	case "none":
		sameSite = http.SameSiteNoneMode
	case "strict":
		sameSite = http.SameSiteStrictMode
	}
	return session.CookieConfig{
		Secure:   cfg.CookieSecure,
		SameSite: sameSite,
		Path:     cfg.CookiePath,
		MaxAge:   int(cfg.RefreshTTL.Seconds()),
	}
}
