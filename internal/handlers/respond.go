package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/besedka-chat/besedka/pkg/i18n"
)

// tr localizes an API-facing message for the current request.
func tr(c *gin.Context, message string) string {
	return i18n.Translate(c.GetHeader("Accept-Language"), message)
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"status": "error", "message": tr(c, message)})
}
