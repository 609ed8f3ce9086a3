package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIVersion is reported by the root endpoint.
const APIVersion = "0.1.0"

// Health reports that the backend is up.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Backend is healthy"})
}

// Root describes the API.
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Power Atlas API", "version": APIVersion, "docs": "/docs"})
}
