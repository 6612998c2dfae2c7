package service

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
)

// AuthService guards the API surface. Requests authenticate with either the
// static API token or a TOTP code derived from the configured secret; the
// latter is what operators use from a phone when triggering manual runs.
type AuthService struct {
	logger     *zap.Logger
	apiToken   string
	totpSecret string
}

func NewAuthService(logger *zap.Logger, apiToken, totpSecret string) *AuthService {
	return &AuthService{
		logger:     logger,
		apiToken:   apiToken,
		totpSecret: totpSecret,
	}
}

func (a *AuthService) GenerateSecret() (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "Threadcast",
		AccountName: "operator",
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	return key.Secret(), nil
}

func (a *AuthService) ValidateTOTP(code string) bool {
	valid := totp.Validate(code, a.totpSecret)
	if !valid {
		a.logger.Warn("TOTP code validation failed")
	}
	return valid
}

// Enabled reports whether any credential is configured. With neither a token
// nor a TOTP secret the API runs open, which is the local-development mode.
func (a *AuthService) Enabled() bool {
	return a.apiToken != "" || a.totpSecret != ""
}

func (a *AuthService) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() || c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		credential := bearerToken(c.GetHeader("Authorization"))
		if credential == "" {
			credential = c.GetHeader("X-Auth-Code")
		}

		if a.apiToken != "" && subtle.ConstantTimeCompare([]byte(credential), []byte(a.apiToken)) == 1 {
			c.Next()
			return
		}
		if a.totpSecret != "" && a.ValidateTOTP(credential) {
			c.Next()
			return
		}

		c.JSON(401, gin.H{"error": "Authentication required"})
		c.Abort()
	}
}

func bearerToken(header string) string {
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
