package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"go.uber.org/zap"

	"socialnet/internal/auth"
	"socialnet/internal/config"
	"socialnet/internal/handlers/apiserver"
	appKafka "socialnet/internal/kafka"
	kafkahandlers "socialnet/internal/kafka/handlers"
	"socialnet/internal/logging"
	appRedis "socialnet/internal/redis"
	"socialnet/internal/services"
	"socialnet/internal/storage"
)

type repositories struct {
	users      storage.UserRepository
	relations  storage.UserRelationRepository
	messages   storage.MessageRepository
	activities storage.RelationActivityRepository
}

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法加载配置: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法初始化日志: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("API 服务器配置加载成功", zap.String("app", cfg.AppName))

	// 2. 初始化数据库与 Repositories
	repos := openRepositories(cfg, logger)

	// 3. 初始化 TokenBlacklist，Redis 不可用时退回内存实现
	var blacklist auth.TokenBlacklist
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	redisClient, err := appRedis.NewClient(pingCtx, cfg.Redis)
	cancelPing()
	if err != nil {
		logger.Warn("无法连接到 Redis，使用进程内黑名单", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		blacklist = auth.NewMemoryTokenBlacklist()
	} else {
		defer redisClient.Close()
		blacklist = appRedis.NewRedisTokenBlacklist(redisClient)
		logger.Info("成功连接到 Redis", zap.String("addr", cfg.Redis.Addr))
	}

	// 4. 初始化存储服务
	if cfg.Storage.Type != "local" {
		logger.Fatal("不支持的存储类型", zap.String("type", cfg.Storage.Type))
	}
	storageService, err := storage.NewLocalStorageService(cfg.Storage)
	if err != nil {
		logger.Fatal("无法初始化本地存储服务", zap.Error(err))
	}

	// 5. 初始化 Kafka Producer
	var producer appKafka.MessageProducer = appKafka.NewNoopProducer()
	if cfg.Kafka.Enabled {
		producer, err = appKafka.NewConfluentKafkaProducer(cfg.Kafka, logger)
		if err != nil {
			logger.Fatal("无法创建 Kafka 生产者", zap.Error(err))
		}
		logger.Info("Kafka 生产者初始化成功", zap.Strings("brokers", cfg.Kafka.Brokers))
	}
	defer producer.Close()

	// 6. 初始化 Services 与路由
	userService := services.NewUserService(repos.users, storageService, logger)
	relationService := services.NewRelationService(repos.relations, repos.activities, userService, producer, cfg.Kafka, logger)
	router := apiserver.NewRouter(apiserver.RouterDeps{
		Config:    cfg,
		Auth:      services.NewAuthService(repos.users, blacklist, cfg, logger),
		Users:     userService,
		Relations: relationService,
		Messages:  services.NewMessageService(repos.messages, userService, relationService, cfg.Message, logger),
		Blacklist: blacklist,
		Log:       logger,
	})

	// 7. 启动关系事件消费者，写入活动记录
	consumerCtx, cancelConsumers := context.WithCancel(context.Background())
	defer cancelConsumers()
	var consumers sync.WaitGroup
	if cfg.Kafka.Enabled {
		consumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka, logger)
		if err != nil {
			logger.Fatal("无法创建 Kafka 消费者", zap.Error(err))
		}
		activityLogic := kafkahandlers.NewRelationActivityLogic(repos.activities, logger)
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			defer consumer.Close()
			topics := []string{cfg.Kafka.RelationEventsTopic}
			logger.Info("Kafka 关系事件消费者启动",
				zap.Strings("topics", topics),
				zap.String("group", cfg.Kafka.ConsumerGroup))
			err := consumer.Consume(consumerCtx, topics, cfg.Kafka.ConsumerGroup, activityLogic.HandleRelationEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Kafka 关系事件消费者错误", zap.Error(err))
			}
			logger.Info("Kafka 关系事件消费者已停止")
		}()
	}

	// 8. 启动 HTTP 服务器并实现优雅关闭
	serverAddr := fmt.Sprintf("%s:%s", cfg.APIServer.Host, cfg.APIServer.Port)
	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.APIServer.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.APIServer.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.APIServer.CORS.AllowedHeaders),
		handlers.ExposedHeaders(cfg.APIServer.CORS.ExposedHeaders),
		handlers.MaxAge(cfg.APIServer.CORS.MaxAge),
	}
	if cfg.APIServer.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}
	var handler http.Handler = handlers.CORS(corsOptions...)(router)
	handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(logger.Named("recovery"))),
		handlers.PrintRecoveryStack(true),
	)(handler)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.APIServer.ReadTimeout,
		WriteTimeout: cfg.APIServer.WriteTimeout,
		IdleTimeout:  time.Second * 60,
	}

	go func() {
		logger.Info("API 服务器启动", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("API 服务器启动失败", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("收到关闭信号，正在关闭 API 服务器")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error("API 服务器强制关闭", zap.Error(err))
	}

	cancelConsumers()
	consumers.Wait()
	logger.Info("API 服务器已成功关闭")
}

// openRepositories 按 DATABASE.TYPE 选择 PostgreSQL 或内存存储。
func openRepositories(cfg config.Config, logger *zap.Logger) repositories {
	if cfg.Database.Type == "memory" {
		logger.Warn("使用内存存储，数据在进程退出后丢失")
		return repositories{
			users:      storage.NewMemoryUserRepository(),
			relations:  storage.NewMemoryUserRelationRepository(),
			messages:   storage.NewMemoryMessageRepository(),
			activities: storage.NewMemoryRelationActivityRepository(),
		}
	}

	db, err := storage.InitDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("无法初始化数据库", zap.Error(err))
	}
	if err := storage.AutoMigrateTables(db, logger); err != nil {
		logger.Fatal("数据库表迁移失败", zap.Error(err))
	}
	logger.Info("数据库连接成功", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))
	return repositories{
		users:      storage.NewGormUserRepository(db),
		relations:  storage.NewGormUserRelationRepository(db),
		messages:   storage.NewGormMessageRepository(db),
		activities: storage.NewGormRelationActivityRepository(db),
	}
}
