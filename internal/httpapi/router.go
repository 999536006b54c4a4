// Package httpapi exposes the coordinator commands and its state snapshot as
// a small JSON API.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/UnknownOlympus/aerodrome/internal/coordinator"
	"github.com/UnknownOlympus/aerodrome/internal/models"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Coordinator is the command surface served by the API.
type Coordinator interface {
	State() coordinator.Snapshot
	FilterCities(query string) []string
	SelectCity(ctx context.Context, name string) (*coordinator.Origin, error)
	Relocate(ctx context.Context) (*coordinator.Origin, error)
	NextPage(ctx context.Context) error
	PrevPage(ctx context.Context) error
	GoToPage(ctx context.Context, n int) error
	OpenDetail(ctx context.Context, id uuid.UUID) error
	CloseDetail()
	Login(ctx context.Context, email, password string) (*models.Identity, error)
	Register(ctx context.Context, name, email, password, confirm string) (*models.Identity, error)
	OAuthURL(ctx context.Context, provider string) (string, error)
	CompleteOAuth(ctx context.Context, provider, code, state string) (*models.Identity, error)
	Logout(ctx context.Context) error
	ResendVerification(ctx context.Context) error
	FetchProfile(ctx context.Context) (*models.Profile, error)
	AddReview(ctx context.Context, airportID uuid.UUID, content string, rating int) error
	OpenAuthModal()
	CloseAuthModal()
	OpenUserModal(ctx context.Context) error
	CloseUserModal()
}

type cityRequest struct {
	Name string `json:"name" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type oauthCallbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

type reviewRequest struct {
	Content string `json:"content"`
	Rating  int    `json:"rating"`
}

// Handler serves the control API.
type Handler struct {
	coord Coordinator
	log   *slog.Logger
}

// NewRouter builds the gin engine. Routes live under /api/.
func NewRouter(coord Coordinator, allowedOrigins []string, log *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log), cors.New(corsConfig(allowedOrigins)))

	h := &Handler{coord: coord, log: log}
	api := router.Group("/api")

	api.GET("/state", h.state)
	api.GET("/cities", h.cities)
	api.POST("/city", h.selectCity)
	api.POST("/location/refresh", h.relocate)

	api.GET("/airports", h.airports)
	api.POST("/airports/next", h.nextPage)
	api.POST("/airports/prev", h.prevPage)
	api.POST("/airports/:id/open", h.openDetail)
	api.POST("/airports/:id/reviews", h.addReview)
	api.DELETE("/detail", h.closeDetail)

	api.POST("/session/login", h.login)
	api.POST("/session/register", h.register)
	api.GET("/session/oauth/:provider/url", h.oauthURL)
	api.POST("/session/oauth/:provider/callback", h.oauthCallback)
	api.POST("/session/logout", h.logout)
	api.POST("/session/verification", h.resendVerification)
	api.GET("/session/profile", h.profile)

	api.POST("/modals/:name/:action", h.modal)

	return router
}

func corsConfig(allowedOrigins []string) cors.Config {
	config := cors.DefaultConfig()
	config.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
	}

	return config
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.DebugContext(c.Request.Context(), "Control API request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (h *Handler) state(c *gin.Context) {
	c.JSON(http.StatusOK, h.coord.State())
}

func (h *Handler) cities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cities": h.coord.FilterCities(c.Query("q"))})
}

func (h *Handler) selectCity(c *gin.Context) {
	var req cityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "city name is required")
		return
	}

	if _, err := h.coord.SelectCity(c.Request.Context(), req.Name); err != nil {
		abortWithError(c, err)
		return
	}
	h.state(c)
}

func (h *Handler) relocate(c *gin.Context) {
	if _, err := h.coord.Relocate(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	h.state(c)
}

func (h *Handler) airports(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		badRequest(c, "page must be a number")
		return
	}

	if err = h.coord.GoToPage(c.Request.Context(), page); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.coord.State().Directory)
}

func (h *Handler) nextPage(c *gin.Context) {
	if err := h.coord.NextPage(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.coord.State().Directory)
}

func (h *Handler) prevPage(c *gin.Context) {
	if err := h.coord.PrevPage(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.coord.State().Directory)
}

func (h *Handler) openDetail(c *gin.Context) {
	id, ok := airportID(c)
	if !ok {
		return
	}

	if err := h.coord.OpenDetail(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.coord.State().Detail)
}

func (h *Handler) closeDetail(c *gin.Context) {
	h.coord.CloseDetail()
	c.Status(http.StatusNoContent)
}

func (h *Handler) addReview(c *gin.Context) {
	id, ok := airportID(c)
	if !ok {
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid review body")
		return
	}

	if err := h.coord.AddReview(c.Request.Context(), id, req.Content, req.Rating); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid login body")
		return
	}

	if _, err := h.coord.Login(c.Request.Context(), req.Email, req.Password); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.coord.State().Session)
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid registration body")
		return
	}

	_, err := h.coord.Register(c.Request.Context(), req.Name, req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.coord.State().Session)
}

func (h *Handler) oauthURL(c *gin.Context) {
	consent, err := h.coord.OAuthURL(c.Request.Context(), c.Param("provider"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": consent})
}

func (h *Handler) oauthCallback(c *gin.Context) {
	var req oauthCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid sign-in callback body")
		return
	}

	if _, err := h.coord.CompleteOAuth(c.Request.Context(), c.Param("provider"), req.Code, req.State); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.coord.State().Session)
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.coord.Logout(c.Request.Context()); err != nil {
		h.log.WarnContext(c.Request.Context(), "Logout finished with error", "error", err)
	}
	c.JSON(http.StatusOK, h.coord.State().Session)
}

func (h *Handler) resendVerification(c *gin.Context) {
	if err := h.coord.ResendVerification(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.coord.State().Session)
}

func (h *Handler) profile(c *gin.Context) {
	profile, err := h.coord.FetchProfile(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) modal(c *gin.Context) {
	name, action := c.Param("name"), c.Param("action")
	if action != "open" && action != "close" {
		badRequest(c, "action must be open or close")
		return
	}
	open := action == "open"

	switch name {
	case "auth":
		if open {
			h.coord.OpenAuthModal()
		} else {
			h.coord.CloseAuthModal()
		}
	case "user":
		if !open {
			h.coord.CloseUserModal()
			break
		}
		if err := h.coord.OpenUserModal(c.Request.Context()); err != nil {
			abortWithError(c, err)
			return
		}
	case "details":
		if open {
			badRequest(c, "details open through /api/airports/:id/open")
			return
		}
		h.coord.CloseDetail()
	default:
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "unknown modal " + name})
		return
	}

	c.JSON(http.StatusOK, h.coord.State().Modals)
}

func airportID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid airport id")
		return uuid.Nil, false
	}

	return id, true
}
