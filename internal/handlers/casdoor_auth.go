package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/interndesk/assessment-session-service/internal/config"
)

// CasdoorAuthMiddleware verifies the bearer tokens the front-end passes
// through, using the Casdoor SDK. The raw token is kept on the context so
// the provider client can forward it to the grading backend.
type CasdoorAuthMiddleware struct {
	client *casdoorsdk.Client
	config config.CasdoorConfig
}

func NewCasdoorAuthMiddleware(cfg config.CasdoorConfig) *CasdoorAuthMiddleware {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Cert,
		cfg.Organization,
		cfg.Application,
	)
	return &CasdoorAuthMiddleware{client: client, config: cfg}
}

// AuthMiddleware returns a Gin middleware function for Casdoor authentication.
func (cam *CasdoorAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			return
		}

		claims, err := cam.client.ParseJwtToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, ErrorResponse{
				Message: fmt.Sprintf("invalid token: %v", err),
			})
			c.Abort()
			return
		}

		userID := claims.User.Id
		if userID == "" {
			userID = claims.User.Name
		}

		c.Set("user_id", userID)
		c.Set("user_name", claims.User.Name)
		c.Set("user_email", claims.User.Email)
		c.Set("access_token", token)

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "authorization header missing"})
		c.Abort()
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "invalid authorization header format"})
		c.Abort()
		return "", false
	}
	return parts[1], true
}

// DevAuthMiddleware trusts the bearer token as the user ID. Only wired when
// no Casdoor endpoint is configured; it keeps local development and tests
// independent of the identity provider.
func DevAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			return
		}
		c.Set("user_id", token)
		c.Set("access_token", token)
		c.Next()
	}
}
