package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "workforce-backend/docs"
	"workforce-backend/internal/attendance"
	"workforce-backend/internal/geofence"
	"workforce-backend/internal/platform/auth"
	"workforce-backend/internal/platform/cache"
	"workforce-backend/internal/platform/db"
	"workforce-backend/internal/platform/logger"
	"workforce-backend/internal/platform/middleware"
)

// dev モードで jwt_secret 未設定の時だけ使う
const devJWTSecret = "dev-only-secret"

// @title        workforce-backend API
// @version      1.0
// @description  出退勤打刻とオフィス判定（ジオフェンス）
// @BasePath     /api/v1
// @securityDefinitions.apikey BearerAuth
// @in   header
// @name Authorization
func main() {
	// .env は任意（無ければ環境変数だけ見る）
	_ = godotenv.Load()

	// 設定読み込み
	cfg, err := db.LoadConfig(db.ConfigFilePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "workforce-backend")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting", zap.String("mode", cfg.Mode), zap.String("version", cfg.Version))

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		log.Fatal("connect db", zap.Error(err))
	}
	defer conn.Close()
	log.Info("connected to DB", zap.String("dbname", cfg.DB.DBName))

	secret := []byte(cfg.Auth.JWTSecret)
	if len(secret) == 0 {
		log.Warn("auth.jwt_secret is empty; using dev secret")
		secret = []byte(devJWTSecret)
	}

	// ジオフェンス（Redis があれば一覧をキャッシュ）
	regions := geofence.NewService(conn, log.Named("geofence"))
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			// キャッシュ無しでも動く
			log.Warn("redis unavailable; region cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			defer rdb.Close()
			regions.WithCache(cache.NewRedisKVStore(rdb), cfg.RegionTTL())
			log.Info("region cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.RegionTTL()))
		}
	}

	var sessions attendance.SessionStore
	switch cfg.Attendance.Store {
	case db.StoreMemory:
		log.Warn("attendance sessions are kept in memory; they are lost on restart")
		sessions = attendance.NewMemStore()
	default:
		sessions = attendance.NewStore(conn)
	}
	attendanceSvc := attendance.NewService(sessions, regions, cfg.Location(), log.Named("attendance"))

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.AccessLog(log.Named("http")), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if cfg.Mode == db.ModeDev {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Total-Count", "X-Request-ID"},
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowCredentials: true,
		}))
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	// /api/v1
	api := r.Group("/api/v1")
	auth.RegisterRoutes(api, auth.NewService(conn, secret, cfg.TokenTTL(), log.Named("auth")))

	authed := api.Group("", auth.RequireAuth(secret))
	adminOnly := auth.RequireRole(auth.RoleAdmin)
	geofence.RegisterRoutes(authed, regions, adminOnly)
	attendance.RegisterRoutes(authed, attendanceSvc, adminOnly)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// TLS設定
	certDir := "config/tls/dev"
	if cfg.Mode == db.ModeRelease {
		certDir = "config/tls/release"
	}
	certFile := fmt.Sprintf("%s/%s", certDir, cfg.Certificate.Cert)
	keyFile := fmt.Sprintf("%s/%s", certDir, cfg.Certificate.Key)

	go func() {
		log.Info("listening", zap.String("addr", "https://"+cfg.Server.Addr))
		if err := srv.ListenAndServeTLS(certFile, keyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}
