package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"stenagrafist-go/internal/config"
	"stenagrafist-go/internal/handler"
	"stenagrafist-go/internal/middleware"
	"stenagrafist-go/internal/repository"
	"stenagrafist-go/internal/service"
	"stenagrafist-go/pkg/database"
	"stenagrafist-go/pkg/kafka"
	"stenagrafist-go/pkg/log"
	"stenagrafist-go/pkg/metrics"
	"stenagrafist-go/pkg/storage"
	"stenagrafist-go/pkg/token"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// bootstrapTimeout 限制启动阶段所有外部检查的总耗时。
const bootstrapTimeout = 30 * time.Second

func serve(ctx context.Context, cfg *config.Config) error {
	// 1. 初始化数据库、Redis 和 MinIO 客户端
	db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		return err
	}
	rdb := database.NewRedis(cfg.Database.Redis)
	defer rdb.Close()

	minioClient, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		return err
	}
	policy, err := kafka.NewPartitionPolicy(cfg.Kafka.PartitionPolicy)
	if err != nil {
		return err
	}

	// 2. 并行完成启动检查：bucket、Kafka 分区、Redis 连通性，任何一项失败都中止启动
	var producer *kafka.Producer
	bootCtx, cancelBoot := context.WithTimeout(ctx, bootstrapTimeout)
	g, gctx := errgroup.WithContext(bootCtx)
	g.Go(func() error { return minioClient.EnsureBucket(gctx) })
	g.Go(func() error {
		var err error
		producer, err = kafka.NewProducer(gctx, cfg.Kafka)
		return err
	})
	g.Go(func() error { return database.PingRedis(gctx, rdb) })
	err = g.Wait()
	cancelBoot()
	if err != nil {
		if producer != nil {
			_ = producer.Close()
		}
		return fmt.Errorf("启动检查失败: %w", err)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			log.Error("关闭 Kafka producer 失败", err)
		}
	}()
	log.Infof("启动检查完成, topic: %s, 分区: %v", producer.Topic(), producer.Partitions())

	// 3. 初始化 Repository 和 Service
	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	pendingRepo := repository.NewPendingJobRepository(rdb)

	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireMinutes)
	userService := service.NewUserService(userRepo, taskRepo, jwtManager)
	taskService := service.NewTaskService(taskRepo, m, cfg.Pipeline.StepTimeout)
	uploadService := service.NewUploadService(userRepo, taskRepo, pendingRepo, minioClient, producer, policy, m,
		service.UploadOptions{
			Topic:         producer.Topic(),
			FileExtension: cfg.MinIO.FileExtension,
			StepTimeout:   cfg.Pipeline.StepTimeout,
		})

	// 4. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.BodyLimit(cfg.Server.MaxUploadBytes), middleware.RequestLogger(m), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:   []string{middleware.RequestIDHeader},
		MaxAge:          12 * time.Hour,
	}))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	userHandler := handler.NewUserHandler(userService)
	uploadHandler := handler.NewUploadHandler(uploadService)
	taskHandler := handler.NewTaskHandler(taskService)

	api := r.Group(cfg.Server.PathPrefix)
	{
		api.POST("/user/create", userHandler.Create)
		api.POST("/user/get", userHandler.Get)
		api.GET("/user/order", userHandler.Orders)
		api.POST("/token/login", handler.NewAuthHandler(userService).Login)

		minio := api.Group("/minio")
		{
			minio.POST("/load", uploadHandler.Load)
			minio.POST("/change", taskHandler.Change)
			// 重放只能由运维人员手动触发
			minio.POST("/republish",
				middleware.AuthMiddleware(jwtManager),
				middleware.OperatorMiddleware(cfg.Server.Operators),
				uploadHandler.Republish)
		}
	}

	// 5. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP 服务监听失败: %w", err)
		}
		return nil
	case <-sigCtx.Done():
	}
	log.Info("接收到停机信号，正在关闭服务...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP 服务器关闭失败: %w", err)
	}

	log.Info("服务已优雅关闭")
	return nil
}
