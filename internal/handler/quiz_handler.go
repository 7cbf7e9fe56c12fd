package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lectern-app/lectern/internal/pkg/errcode"
	"github.com/lectern-app/lectern/internal/pkg/response"
	"github.com/lectern-app/lectern/internal/service"
)

type QuizHandler struct {
	quizzes  *service.QuizService
	projects *service.ProjectService
}

func NewQuizHandler(quizzes *service.QuizService, projects *service.ProjectService) *QuizHandler {
	return &QuizHandler{quizzes: quizzes, projects: projects}
}

type generateQuizRequest struct {
	QuizType     string `json:"quiz_type"`
	NumQuestions int    `json:"num_questions"`
}

func (h *QuizHandler) Generate(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := h.projects.Get(c.Request.Context(), getUserID(c), projectID); err != nil {
		handleError(c, err)
		return
	}
	var req generateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	quiz, err := h.quizzes.Generate(c.Request.Context(), projectID, req.QuizType, req.NumQuestions)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, quiz)
}

func (h *QuizHandler) List(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := h.projects.Get(c.Request.Context(), getUserID(c), projectID); err != nil {
		handleError(c, err)
		return
	}
	quizzes, err := h.quizzes.List(c.Request.Context(), projectID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, quizzes)
}

func (h *QuizHandler) Get(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := h.projects.Get(c.Request.Context(), getUserID(c), projectID); err != nil {
		handleError(c, err)
		return
	}
	quiz, err := h.quizzes.Get(c.Request.Context(), projectID, c.Param("quiz_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, quiz)
}
