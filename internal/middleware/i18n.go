// internal/middleware/i18n.go
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/pactwise/pactwise-backend/internal/i18n"
)

// I18nMiddleware stores the negotiated locale under "lang". Requests naming no
// loaded catalogue get defaultLang.
func I18nMiddleware(defaultLang string) gin.HandlerFunc {
	if defaultLang == "" {
		defaultLang = "en"
	}

	return func(c *gin.Context) {
		lang := defaultLang
		if header := c.GetHeader("Accept-Language"); header != "" {
			if matched, ok := i18n.Match(header); ok {
				lang = matched
			}
		}
		c.Set("lang", lang)
		c.Next()
	}
}
