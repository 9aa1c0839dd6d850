package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"bedmatch/pkg/auth"
	"bedmatch/pkg/logger"
	"bedmatch/pkg/views"

	"github.com/gin-gonic/gin"
)

// Router builds the gin engine with every API route and the frontend
func (h *Handlers) Router() *gin.Engine {
	r := gin.New()
	r.Use(logger.Middleware(h.log), gin.Recovery())
	r.Use(h.auth.Middleware())

	api := r.Group("/api")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.GET("/logout", h.Logout)

		api.GET("/whoami", h.WhoAmI)
		api.GET("/username", h.Username)

		profile := api.Group("/profile", auth.RequireLogin())
		profile.PUT("/newavatar", h.NewAvatar)

		data := api.Group("/data", auth.RequireLogin())
		data.GET("/hospitals", h.ListHospitals)
		data.POST("/request", h.Request)
		data.POST("/cancel", h.Cancel)
		data.POST("/admit", h.Admit)
		data.POST("/release", h.Release)
		data.POST("/reject", h.Reject)
	}

	r.NoRoute(h.Frontend)
	return r
}

// Frontend serves files from the built single-page app and falls back to a
// static page for anything else
func (h *Handlers) Frontend(c *gin.Context) {
	path := c.Request.URL.Path
	if strings.HasPrefix(path, "/api/") {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
		return
	}
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
		return
	}

	if dir := h.config.Server.FrontendDir; dir != "" {
		name := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+path)))
		if path == "/" {
			name = filepath.Join(dir, "index.html")
		}
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			c.File(name)
			return
		}
	}
	views.Render(c, http.StatusOK, views.Fallback(path))
}
