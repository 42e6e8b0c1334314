package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jonathanpberger/typingpool/internal/api/middleware"
	"github.com/jonathanpberger/typingpool/internal/domain"
	"github.com/jonathanpberger/typingpool/internal/project"
	"github.com/jonathanpberger/typingpool/internal/service"
	"github.com/jonathanpberger/typingpool/internal/taskpage"
)

// StatusReader is the read side of the status service.
type StatusReader interface {
	List(ctx context.Context) ([]service.ProjectSummary, error)
	Get(ctx context.Context, id string) (*service.ProjectDetail, error)
	Transcript(ctx context.Context, id string) (*project.Project, []*domain.WorkItem, error)
	Results(ctx context.Context, projectID string) ([]domain.CachedResult, error)
}

// TranscriptRenderer writes a transcript document.
type TranscriptRenderer interface {
	RenderTranscript(w io.Writer, t taskpage.Transcript) error
}

// ProjectHandler handles project status endpoints.
type ProjectHandler struct {
	status   StatusReader
	renderer TranscriptRenderer
}

// NewProjectHandler creates a new project handler.
// Parameters:
//   - status: status service instance.
//   - renderer: transcript renderer for the HTML transcript view.
//
// Returns:
//   - *ProjectHandler: initialized handler.
func NewProjectHandler(status StatusReader, renderer TranscriptRenderer) *ProjectHandler {
	return &ProjectHandler{status: status, renderer: renderer}
}

// ListProjects handles GET /api/v1/projects.
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	projects, err := h.status.List(c.Request.Context())
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to list projects")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list projects: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"projects": projects,
		"total":    len(projects),
	})
}

// GetProject handles GET /api/v1/projects/:id.
func (h *ProjectHandler) GetProject(c *gin.Context) {
	detail, err := h.status.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.projectError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GetTranscript handles GET /api/v1/projects/:id/transcript. It renders the
// HTML transcript unless format=json is given.
func (h *ProjectHandler) GetTranscript(c *gin.Context) {
	p, items, err := h.status.Transcript(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.projectError(c, err)
		return
	}

	if c.Query("format") == "json" {
		out := make([]gin.H, 0, len(items))
		for _, item := range items {
			out = append(out, gin.H{
				"audio_url":     item.AudioURL,
				"transcription": item.Transcription,
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"id":    p.ID(),
			"name":  p.Name(),
			"total": p.Ledger().Len(),
			"items": out,
		})
		return
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	err = h.renderer.RenderTranscript(c.Writer, taskpage.Transcript{
		Title:    p.Name(),
		Subtitle: p.Subtitle(),
		Total:    p.Ledger().Len(),
		Items:    items,
	})
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to render transcript")
	}
}

// ListResults handles GET /api/v1/results.
func (h *ProjectHandler) ListResults(c *gin.Context) {
	results, err := h.status.Results(c.Request.Context(), c.Query("project_id"))
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to list cached results")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list results: " + err.Error(),
		})
		return
	}
	if results == nil {
		results = []domain.CachedResult{}
	}
	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"total":   len(results),
	})
}

func (h *ProjectHandler) projectError(c *gin.Context, err error) {
	if errors.Is(err, project.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Project not found",
		})
		return
	}
	middleware.GetLogger(c).WithError(err).Error("Failed to load project")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Failed to load project: " + err.Error(),
	})
}
