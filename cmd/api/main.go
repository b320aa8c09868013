package main

import (
	"context"
	"log"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"sociomart/internal/adapter/api"
	"sociomart/internal/adapter/api/handler"
	apimiddleware "sociomart/internal/adapter/api/middleware"
	"sociomart/internal/adapter/api/router"
	"sociomart/internal/adapter/repository"
	"sociomart/internal/infrastructure/presence"
	"sociomart/internal/infrastructure/relay"
	"sociomart/internal/infrastructure/token"
	"sociomart/internal/infrastructure/websocket"
	"sociomart/internal/usecase"
	"sociomart/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var opts []option.ClientOption
	if serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"); serviceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(serviceAccountJSON)))
	} else if serviceAccountPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH"); serviceAccountPath != "" {
		opts = append(opts, option.WithCredentialsFile(serviceAccountPath))
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opts...)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer firestoreClient.Close()

	chatRepo := repository.NewFirestoreChatRepository(firestoreClient)
	userRepo := repository.NewFirestoreUserRepository(firestoreClient)
	productRepo := repository.NewFirestoreProductRepository(firestoreClient)

	// The offline relay rides on Redis when configured; otherwise a
	// process-local queue keeps single-node deployments working.
	var offlineRelay relay.Relay
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		offlineRelay = relay.NewRedisRelay(redisClient, cfg.OfflineQueueCap)
		log.Printf("Offline relay: redis at %s", cfg.RedisAddr)
	} else {
		offlineRelay = relay.NewMemoryRelay(cfg.OfflineQueueCap)
		log.Printf("Offline relay: in-memory (REDIS_ADDR not set)")
	}

	registry := presence.NewRegistry()
	manager := websocket.NewManager(registry, offlineRelay)

	chatUseCase := usecase.NewChatUseCase(chatRepo, userRepo, productRepo, manager)
	manager.BindChatService(chatUseCase)

	tokenService := token.NewDeliveryTokenService(cfg.WSTokenSecret, time.Duration(cfg.WSTokenTTL)*time.Second)

	handler.Setup(chatUseCase, manager, tokenService, userRepo)

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(authClient)

	router.Setup(e, authMiddleware)

	log.Printf("Starting server on port %s...", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}
