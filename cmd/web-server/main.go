// Flight Simulator Web Server
// Serves the trajectory REST API and the websocket playback stream
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fleray/Flight-Simulator/internal/auth"
	"github.com/fleray/Flight-Simulator/internal/db"
	"github.com/fleray/Flight-Simulator/internal/metrics"
	"github.com/fleray/Flight-Simulator/internal/server"
	"github.com/fleray/Flight-Simulator/pkg/config"
	"github.com/fleray/Flight-Simulator/pkg/playback"
	"github.com/fleray/Flight-Simulator/pkg/trace"
	"github.com/fleray/Flight-Simulator/pkg/trajectory"
)

const devJWTSecret = "dev-secret-change-in-production"

var (
	configPath   = flag.String("config", "configs/config.json", "Path to configuration file")
	hashPassword = flag.String("hash-password", "", "Print the bcrypt hash of a password and exit")
	uploadMaxAge = flag.Duration("upload-retention", 30*24*time.Hour, "Age after which upload records are pruned (0 disables)")
)

func main() {
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.NewService(auth.Config{}).HashPassword(*hashPassword)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		fmt.Println(hash)
		return
	}

	log.Println("🚀 Starting Flight Simulator Web Server...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Trajectory session shared by every client
	cache := trajectory.NewCache(cfg.Cache.MaxEntries)
	prometheus.MustRegister(metrics.NewCacheCollector(cache))
	session := playback.NewSession(
		playback.WithCache(cache),
		playback.WithInterpolator(cfg.Playback.Interpolator()),
		playback.WithLogger(log.Default()),
		playback.WithBuildObserver(metrics.ObserveBuild),
	)
	log.Printf("✈️  Session ready: sample trajectory with %d points", session.Trajectory().Len())

	// Auth
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		log.Println("⚠️  No JWT secret configured (FLIGHTSIM_JWT_SECRET), using development default")
		secret = devJWTSecret
	}
	authSvc := auth.NewService(auth.Config{
		JWTSecret:     secret,
		TokenDuration: time.Duration(cfg.Auth.TokenHours) * time.Hour,
	})

	deps := server.Deps{
		Session: session,
		Auth:    authSvc,
		Source:  newSource(cfg),
	}

	if cfg.Database.Enabled {
		database, err := db.ReconnectWithRetry(ctx, cfg.Database, 5, 2*time.Second)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		if err := database.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		log.Printf("🗄️  Database connected: %s@%s/%s", cfg.Database.Username, cfg.Database.Host, cfg.Database.Database)

		deps.Accounts = db.NewUserRepository(database.DB)
		deps.Uploads = db.NewUploadRepository(database.DB)
		deps.Health = func(ctx context.Context) bool { return db.HealthCheck(ctx, database) }

		if *uploadMaxAge > 0 {
			go pruneUploads(ctx, database, *uploadMaxAge)
		}
	} else {
		if cfg.Auth.AdminPasswordHash == "" {
			log.Println("⚠️  No admin password hash configured; uploads are disabled (see -hash-password)")
		}
		deps.Accounts = auth.StaticAccounts{
			cfg.Auth.AdminUsername: {
				ID:           1,
				Username:     cfg.Auth.AdminUsername,
				PasswordHash: cfg.Auth.AdminPasswordHash,
				Role:         auth.RoleAdmin,
				Active:       true,
			},
		}
	}

	srv := server.New(cfg, deps)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		var err error
		if cfg.Server.TLSEnabled {
			log.Printf("📡 Server listening on https://%s", addr)
			err = httpServer.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			log.Printf("📡 Server listening on http://%s", addr)
			err = httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("👋 Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped")
}

// newSource returns the archive source when a base URL is configured and
// the local trace directory otherwise.
func newSource(cfg *config.Config) trace.Source {
	if cfg.Source.BaseURL == "" {
		log.Printf("📁 Trace source: %s", cfg.Source.Dir)
		return trace.FileSource{Dir: cfg.Source.Dir}
	}

	retry := trace.DefaultRetryConfig()
	retry.MaxRetries = cfg.Source.MaxRetries
	retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Printf("⚠️  Trace fetch attempt %d failed: %v (retry in %v)", attempt, err, delay)
	}
	log.Printf("🌐 Trace source: %s", cfg.Source.BaseURL)
	return trace.NewHTTPSource(trace.HTTPConfig{
		BaseURL:           cfg.Source.BaseURL,
		RequestsPerSecond: cfg.Source.RequestsPerSecond,
		Timeout:           cfg.Source.Timeout(),
		Retry:             retry,
	})
}

// pruneUploads removes old upload records once a day until ctx is done.
func pruneUploads(ctx context.Context, database *db.DB, maxAge time.Duration) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		n, err := database.PruneUploads(ctx, maxAge)
		if err != nil {
			log.Printf("⚠️  Failed to prune upload records: %v", err)
		} else if n > 0 {
			log.Printf("🧹 Pruned %d upload records", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
