package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lectern-app/lectern/internal/middleware"
)

type RouterDeps struct {
	Auth         *AuthHandler
	Projects     *ProjectHandler
	Documents    *DocumentHandler
	Chat         *ChatHandler
	Quizzes      *QuizHandler
	JWTSecret    []byte
	AIRateWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/auth/register", deps.Auth.Register)
	api.POST("/auth/login", deps.Auth.Login)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	authGroup.PUT("/user", deps.Auth.UpdateProfile)

	authGroup.POST("/projects", deps.Projects.Create)
	authGroup.GET("/projects", deps.Projects.List)
	authGroup.GET("/projects/:id", deps.Projects.Get)
	authGroup.PATCH("/projects/:id", deps.Projects.Update)
	authGroup.DELETE("/projects/:id", deps.Projects.Delete)

	authGroup.POST("/projects/:id/documents", deps.Documents.Upload)
	authGroup.GET("/projects/:id/documents", deps.Documents.List)
	authGroup.GET("/projects/:id/documents/:doc_id", deps.Documents.Get)
	authGroup.GET("/projects/:id/documents/:doc_id/pages", deps.Documents.Pages)
	authGroup.GET("/projects/:id/documents/:doc_id/file", deps.Documents.File)
	authGroup.DELETE("/projects/:id/documents/:doc_id", deps.Documents.Delete)

	authGroup.GET("/projects/:id/messages", deps.Chat.History)
	authGroup.GET("/projects/:id/suggested-questions", deps.Chat.SuggestedQuestions)

	// Generation endpoints sit behind a short per-user window.
	aiGroup := authGroup.Group("")
	aiGroup.Use(middleware.RateLimit(deps.AIRateWindow))
	aiGroup.POST("/projects/:id/messages", deps.Chat.Ask)
	aiGroup.POST("/projects/:id/quizzes", deps.Quizzes.Generate)

	authGroup.GET("/projects/:id/quizzes", deps.Quizzes.List)
	authGroup.GET("/projects/:id/quizzes/:quiz_id", deps.Quizzes.Get)
}
