package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jonathanpberger/typingpool/internal/api/handler"
	"github.com/jonathanpberger/typingpool/internal/api/middleware"
)

// RouterOptions configures the status API.
type RouterOptions struct {
	Mode     string // debug, release or test
	Root     string // transcripts directory, checked by /health
	Status   handler.StatusReader
	Renderer handler.TranscriptRenderer
	CORS     middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(opts RouterOptions) *gin.Engine {
	switch opts.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(opts.CORS))

	healthHandler := handler.NewHealthHandler(opts.Root)
	projectHandler := handler.NewProjectHandler(opts.Status, opts.Renderer)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/projects", projectHandler.ListProjects)
		v1.GET("/projects/:id", projectHandler.GetProject)
		v1.GET("/projects/:id/transcript", projectHandler.GetTranscript)

		// Cached remote results, optionally ?project_id=
		v1.GET("/results", projectHandler.ListResults)
	}

	return r
}
