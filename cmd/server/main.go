// Package main 是服务端的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"axtro-go/internal/config"
	"axtro-go/internal/handler"
	"axtro-go/internal/middleware"
	"axtro-go/internal/model"
	"axtro-go/internal/repository"
	"axtro-go/internal/service"
	"axtro-go/pkg/database"
	"axtro-go/pkg/genai"
	"axtro-go/pkg/kafka"
	"axtro-go/pkg/log"
	"axtro-go/pkg/storage"
	"axtro-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 与对象存储
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	kafka.InitProducer(cfg.Kafka)

	// 建表（幂等）
	if err := database.DB.AutoMigrate(&model.User{}, &model.Chat{}); err != nil {
		log.Fatal("数据库迁移失败", err)
	}

	// 4. 初始化 Repository
	userRepository := repository.NewUserRepository(database.DB)
	chatRepository := repository.NewChatRepository(database.DB)
	preferenceRepo := repository.NewPreferenceRepository(database.RDB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	textClient := genai.NewTextClient(cfg.Gemini)
	imageClient := genai.NewImageClient(cfg.ImageGateway)
	imageStore := storage.NewImageStore(cfg.MinIO)
	userService := service.NewUserService(userRepository, jwtManager)
	chatService := service.NewChatService(chatRepository)
	messageService := service.NewMessageService(
		chatRepository,
		userRepository,
		textClient,
		imageClient,
		imageStore,
		kafka.ProduceUsageEvent,
		cfg.Quota,
	)

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 7. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", handler.NewUserHandler(userService).Register)
			users.POST("/login", handler.NewUserHandler(userService).Login)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", handler.NewUserHandler(userService).GetProfile)
				authed.GET("/preferences/:namespace", handler.NewPreferenceHandler(preferenceRepo).Load)
				authed.PUT("/preferences/:namespace", handler.NewPreferenceHandler(preferenceRepo).Save)
			}
		}

		// Chat 路由组，需要认证
		chats := apiV1.Group("/chat")
		chats.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			chats.POST("/create", handler.NewChatHandler(chatService).Create)
			chats.GET("/get", handler.NewChatHandler(chatService).List)
			chats.POST("/delete", handler.NewChatHandler(chatService).Delete)
		}

		// Message 路由组（回合提交），需要认证
		messages := apiV1.Group("/message")
		messages.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			messages.POST("/text", handler.NewMessageHandler(messageService).SendText)
			messages.POST("/image", handler.NewMessageHandler(messageService).SendImage)
		}
	}

	// 8. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
