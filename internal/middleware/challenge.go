package middleware

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"storefront/pkg/challenge"
)

// ChallengeRequired guards a route with the challenge-response handshake.
// A request without challenge and response gets a fresh challenge; a request
// with only one of them, or a wrong response, gets 401.
func ChallengeRequired(auth *challenge.Authenticator, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ch := c.Query("challenge")
		resp := c.Query("response")

		if ch == "" && resp == "" {
			return c.JSON(fiber.Map{"challenge": auth.Issue()})
		}
		if !auth.Verify(ch, resp) {
			logger.Info("Challenge verification failed", zap.String("ip", c.IP()), zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}
		return c.Next()
	}
}
