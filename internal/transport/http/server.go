package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"ragapi/internal/ai"
	appsvc "ragapi/internal/app"
	"ragapi/internal/bootstrap"
	"ragapi/internal/cache"
	"ragapi/internal/pkg/webextract"
	"ragapi/internal/repository"
	"ragapi/internal/transport/http/handler"
	"ragapi/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	userRepo := repository.NewUserRepository(app.DB)
	docRepo := repository.NewDocumentRepository(app.DB)
	chunkRepo := repository.NewChunkRepository(app.DB)
	sessionRepo := repository.NewSessionRepository(app.DB)
	messageRepo := repository.NewMessageRepository(app.DB)

	llmClient := ai.NewOpenAICompatibleClient()
	embCfg := ai.EmbeddingConfig{
		BaseURL:   app.Config.Embedding.BaseURL,
		APIKey:    app.Config.Embedding.APIKey,
		Model:     app.Config.Embedding.Model,
		Dimension: app.Config.Embedding.Dimension,
	}
	chatCfg := ai.ChatConfig{
		BaseURL: app.Config.LLM.BaseURL,
		APIKey:  app.Config.LLM.APIKey,
		Model:   app.Config.LLM.Model,
	}

	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	documentService := appsvc.NewDocumentService(
		docRepo,
		llmClient,
		webextract.New(),
		embCfg,
		app.Config.RAG.ChunkSize,
		app.Config.RAG.ChunkOverlap,
	)
	searchService := appsvc.NewSearchService(chunkRepo, llmClient, embCfg)
	chatService := appsvc.NewChatService(
		sessionRepo,
		messageRepo,
		searchService,
		llmClient,
		historyCache,
		chatCfg,
		app.Config.RAG.TopK,
	)

	healthHandler := handler.NewHealthHandler(app)
	authHandler := handler.NewAuthHandler(authService)
	documentHandler := handler.NewDocumentHandler(documentService)
	chatHandler := handler.NewChatHandler(chatService)

	router.GET("/", healthHandler.Root)
	router.GET("/health", healthHandler.Check)

	api := router.Group("/api")
	authRequired := middleware.AuthJWT(app.Config.Auth.JWTSecret)

	authGroup := api.Group("/auth")
	authGroup.POST("/signup", authHandler.Signup)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", authRequired, authHandler.Me)

	docGroup := api.Group("/documents")
	docGroup.Use(authRequired)
	docGroup.POST("/upload-pdf", documentHandler.UploadPDF)
	docGroup.POST("/upload-urls", documentHandler.UploadURLs)
	docGroup.GET("/list", documentHandler.List)
	docGroup.DELETE("/:id", documentHandler.Delete)

	chatGroup := api.Group("/chat")
	chatGroup.Use(authRequired)
	chatGroup.POST("/query", chatHandler.Query)
	chatGroup.GET("/sessions", chatHandler.ListSessions)
	chatGroup.GET("/history/:session_id", chatHandler.GetHistory)
	chatGroup.DELETE("/sessions/:session_id", chatHandler.DeleteSession)

	return router
}
