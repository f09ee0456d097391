// Package main, tahta backend uygulamasının giriş noktasıdır.
//
// Bu dosyanın görevi — Dependency Injection "wire-up":
//  1. Config'i yükle
//  2. Database'i başlat (embedded migration'lar ile)
//  3. Repository'leri oluştur (DB bağlantısı ile)
//  4. WebSocket Hub'ı ve (opsiyonel) Redis relay'i başlat
//  5. Service'leri oluştur (repository'ler ile)
//  6. Handler'ları oluştur (service'ler ile)
//  7. Middleware'ları oluştur
//  8. HTTP router'ı kur, route'ları bağla
//  9. CORS yapılandır
// 10. HTTP Server'ı başlat
// 11. Graceful shutdown
//
// Global değişken YOK — her şey bu fonksiyonda oluşturulup birbirine bağlanıyor.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/akinalp/tahta/config"
	"github.com/akinalp/tahta/database"
	"github.com/akinalp/tahta/handlers"
	"github.com/akinalp/tahta/middleware"
	"github.com/akinalp/tahta/pkg/email"
	"github.com/akinalp/tahta/pkg/ratelimit"
	"github.com/akinalp/tahta/repository"
	"github.com/akinalp/tahta/services"
	"github.com/akinalp/tahta/ws"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] tahta server starting...")

	// ─── 1. Config ───
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	log.Printf("[main] config loaded (port=%d)", cfg.Server.Port)

	// ─── 2. Database ───
	db, err := database.New(cfg.Database.Path, database.Migrations())
	if err != nil {
		log.Fatalf("[main] failed to initialize database: %v", err)
	}
	defer db.Close()

	// ─── 3. Repository Layer ───
	userRepo := repository.NewSQLiteUserRepo(db.Conn)
	sessionRepo := repository.NewSQLiteSessionRepo(db.Conn)
	profileRepo := repository.NewSQLiteProfileRepo(db.Conn)
	boardRepo := repository.NewSQLiteWhiteboardRepo(db.Conn)
	commentRepo := repository.NewSQLiteCommentRepo(db.Conn)

	// ─── 4. Service Layer ───
	authService := services.NewAuthService(
		userRepo,
		sessionRepo,
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)

	gateService := services.NewGateService(
		boardRepo,
		profileRepo,
		userRepo,
		cfg.Grant.Secret,
		cfg.Grant.ExpirySeconds,
	)

	// Email — API key yoksa no-op sender (development kolaylığı)
	var sender email.EmailSender = email.NoopSender{}
	if cfg.Email.APIKey != "" {
		sender = email.NewResendSender(cfg.Email.APIKey, cfg.Email.FromEmail, cfg.Email.AppURL)
	}

	// Süresi dolan refresh oturumları periyodik temizlenir — logout
	// yapılmadan terk edilen oturumlar DB'de birikmesin
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := sessionRepo.DeleteExpired(ctx); err != nil {
				log.Printf("[main] expired session cleanup failed: %v", err)
			}
			cancel()
		}
	}()

	boardService := services.NewWhiteboardService(db.Conn, boardRepo, userRepo, gateService, sender)
	commentService := services.NewCommentService(commentRepo, boardRepo)
	profileService := services.NewProfileService(profileRepo, userRepo)

	// ─── 5. WebSocket Hub + Relay ───
	//
	// Hub, kanal aboneliklerini ve presence roster'larını yönetir.
	// Grant doğrulamasını gateService yapar — ws paketi services'e bağımlı
	// olmasın diye GrantValidator interface'i üzerinden (implicit) bağlanır.
	hub := ws.NewHub(gateService)
	go hub.Run()

	// Redis relay opsiyonel: REDIS_ADDR boşsa hub tek instance çalışır.
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		broker, err := ws.NewRedisBroker(ctx, redisClient, hub)
		cancel()
		if err != nil {
			log.Fatalf("[main] failed to start redis relay: %v", err)
		}
		defer broker.Close()

		hub.SetRelay(broker)
		log.Printf("[main] redis relay enabled (addr=%s)", cfg.Redis.Addr)
	}

	// ─── 6. Handler Layer ───
	loginLimiter := ratelimit.NewLoginRateLimiter(5, time.Minute)
	defer loginLimiter.Close()

	authHandler := handlers.NewAuthHandler(authService, loginLimiter)
	boardHandler := handlers.NewWhiteboardHandler(boardService)
	commentHandler := handlers.NewCommentHandler(commentService)
	profileHandler := handlers.NewProfileHandler(profileService)
	realtimeHandler := handlers.NewRealtimeHandler(gateService)
	wsHandler := ws.NewHandler(hub, authService)

	// ─── 7. Middleware ───
	authMiddleware := middleware.NewAuthMiddleware(authService, userRepo)

	// ─── 8. HTTP Router ───
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"tahta"}`)
	})

	// Auth — public endpoint'ler (token gerekmez)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)

	// Users — authenticated
	mux.Handle("GET /api/users/me", authMiddleware.Require(http.HandlerFunc(authHandler.Me)))
	mux.Handle("POST /api/users/me/password", authMiddleware.Require(http.HandlerFunc(authHandler.ChangePassword)))

	// Profile — board'larda görünen kimlik
	mux.Handle("GET /api/profile", authMiddleware.Require(http.HandlerFunc(profileHandler.Get)))
	mux.Handle("PATCH /api/profile", authMiddleware.Require(http.HandlerFunc(profileHandler.Update)))

	// Whiteboards
	mux.Handle("POST /api/whiteboards", authMiddleware.Require(http.HandlerFunc(boardHandler.Create)))
	mux.Handle("GET /api/whiteboards", authMiddleware.Require(http.HandlerFunc(boardHandler.List)))
	mux.Handle("GET /api/whiteboards/{boardId}", authMiddleware.Require(http.HandlerFunc(boardHandler.Get)))
	mux.Handle("PATCH /api/whiteboards/{boardId}", authMiddleware.Require(http.HandlerFunc(boardHandler.Update)))
	mux.Handle("DELETE /api/whiteboards/{boardId}", authMiddleware.Require(http.HandlerFunc(boardHandler.Delete)))
	mux.Handle("PUT /api/whiteboards/{boardId}/document", authMiddleware.Require(http.HandlerFunc(boardHandler.SaveDocument)))

	// Shares — board paylaşım yönetimi
	mux.Handle("POST /api/whiteboards/{boardId}/shares", authMiddleware.Require(http.HandlerFunc(boardHandler.Share)))
	mux.Handle("GET /api/whiteboards/{boardId}/shares", authMiddleware.Require(http.HandlerFunc(boardHandler.ListShares)))
	mux.Handle("DELETE /api/whiteboards/{boardId}/shares/{userId}", authMiddleware.Require(http.HandlerFunc(boardHandler.RemoveShare)))

	// Comments
	mux.Handle("POST /api/whiteboards/{boardId}/comments", authMiddleware.Require(http.HandlerFunc(commentHandler.Create)))
	mux.Handle("GET /api/whiteboards/{boardId}/comments", authMiddleware.Require(http.HandlerFunc(commentHandler.List)))
	mux.Handle("DELETE /api/comments/{commentId}", authMiddleware.Require(http.HandlerFunc(commentHandler.Delete)))

	// Realtime auth — Access Gate'in HTTP yüzü
	mux.Handle("POST /api/realtime/auth", authMiddleware.Require(http.HandlerFunc(realtimeHandler.Authorize)))

	// WebSocket — token query parameter ile authenticate edilir
	//
	// WebSocket upgrade sırasında tarayıcılar custom HTTP header gönderemez;
	// JWT token URL query parameter olarak gönderilir:
	//   ws://server/realtime?token=JWT_TOKEN
	mux.HandleFunc("GET /realtime", wsHandler.HandleConnection)

	// ─── 9. CORS ───
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:3000", // frontend dev server
			"http://localhost:5173", // Vite dev
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		Debug:            false,
	})

	handler := corsHandler.Handler(mux)

	// ─── 10. HTTP Server ───
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ─── 11. Graceful Shutdown ───
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("[main] server listening on %s", cfg.Server.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	<-done
	log.Println("[main] shutting down...")

	// Önce WebSocket bağlantılarını kapat, sonra HTTP server'ı —
	// yeni request kabul etmeyi durdurur, mevcutların bitmesini bekler.
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("[main] forced shutdown: %v", err)
	}

	log.Println("[main] server stopped gracefully")
}
