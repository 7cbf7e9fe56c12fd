package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lectern-app/lectern/internal/pkg/errcode"
	"github.com/lectern-app/lectern/internal/pkg/response"
	"github.com/lectern-app/lectern/internal/service"
)

type ChatHandler struct {
	chat     *service.ChatService
	projects *service.ProjectService
}

func NewChatHandler(chat *service.ChatService, projects *service.ProjectService) *ChatHandler {
	return &ChatHandler{chat: chat, projects: projects}
}

type askRequest struct {
	Question string `json:"question"`
}

func (h *ChatHandler) Ask(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := h.projects.Get(c.Request.Context(), getUserID(c), projectID); err != nil {
		handleError(c, err)
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	msg, err := h.chat.Ask(c.Request.Context(), projectID, req.Question)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, msg)
}

func (h *ChatHandler) History(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := h.projects.Get(c.Request.Context(), getUserID(c), projectID); err != nil {
		handleError(c, err)
		return
	}
	messages, err := h.chat.History(c.Request.Context(), projectID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, messages)
}

func (h *ChatHandler) SuggestedQuestions(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := h.projects.Get(c.Request.Context(), getUserID(c), projectID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"questions": h.chat.SuggestQuestions(c.Request.Context(), projectID),
	})
}
