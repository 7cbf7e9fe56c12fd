package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lectern-app/lectern/internal/pkg/errcode"
	"github.com/lectern-app/lectern/internal/pkg/response"
	"github.com/lectern-app/lectern/internal/service"
)

type DocumentHandler struct {
	documents *service.DocumentService
}

func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// Upload accepts a multipart file and returns the queued document right
// away; processing progress is observed through Get polling.
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file field required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "cannot read upload")
		return
	}
	defer file.Close()

	doc, err := h.documents.Upload(c.Request.Context(), getUserID(c), c.Param("id"), fileHeader.Filename, file)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, docs)
}

// Get is the status polling endpoint; clients hit it until the document
// reports processed or failed.
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), getUserID(c), c.Param("id"), c.Param("doc_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Pages(c *gin.Context) {
	pages, err := h.documents.Pages(c.Request.Context(), getUserID(c), c.Param("id"), c.Param("doc_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, pages)
}

// File streams the stored original back to the client.
func (h *DocumentHandler) File(c *gin.Context) {
	doc, rc, err := h.documents.OpenFile(c.Request.Context(), getUserID(c), c.Param("id"), c.Param("doc_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	defer rc.Close()
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Name))
	http.ServeContent(c.Writer, c.Request, doc.Name, time.Time{}, rc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), getUserID(c), c.Param("id"), c.Param("doc_id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
