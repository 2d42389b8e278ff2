package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikahq/mika-go/internal/domain/apperrors"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/security"
)

const workspaceContextKey = "workspaceId"

// JWTAuthMiddleware admits requests carrying a valid bearer token scoped to a
// workspace. The live feed cannot set headers from a browser, so a "token"
// query parameter is accepted as well.
func JWTAuthMiddleware(secret string, logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.WithContext(c.Request.Context(), logging.ChannelAuth)

		if secret == "" {
			log.Error("JWT_SECRET not configured, rejecting authenticated route", "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorBody("authentication unavailable", apperrors.CodeUnauthorized))
			return
		}

		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorBody("authentication required", apperrors.CodeUnauthorized))
			return
		}

		claims, err := security.ValidateJWT(token, secret)
		if err != nil {
			log.Warn("Rejected token", "path", c.FullPath(), "error", err.Error())
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorBody("invalid token", apperrors.CodeUnauthorized))
			return
		}
		workspaceID, err := security.WorkspaceFromClaims(claims)
		if err != nil {
			log.Warn("Token without workspace", "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorBody("invalid token", apperrors.CodeUnauthorized))
			return
		}

		c.Set(workspaceContextKey, workspaceID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(c.Query("token"))
}

// GetWorkspaceID returns the workspace the authenticated caller is scoped to.
func GetWorkspaceID(c *gin.Context) (string, bool) {
	value, exists := c.Get(workspaceContextKey)
	if !exists {
		return "", false
	}
	workspaceID, ok := value.(string)
	return workspaceID, ok && workspaceID != ""
}
