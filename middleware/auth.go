package middleware

import (
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const (
	LocalUserID    = "user_id"
	LocalUserRoles = "user_roles"
	RoleAdmin      = "admin"
)

// UserContextMiddleware extracts user identity and roles set by Gateway.
// Requests without X-User-ID are rejected.
func UserContextMiddleware(log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			log.WithField("path", c.Path()).Warn("[USER_CTX] X-User-ID required but missing")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID: request must come through gateway with auth context",
				"code":  "unauthorized",
			})
		}

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			r = strings.TrimSpace(r)
			if r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalUserRoles, roles)

		log.WithFields(logrus.Fields{"user_id": userID, "roles": roles, "path": c.Path()}).Debug("[USER_CTX]")
		return c.Next()
	}
}

// RequireRole lets the request through only when the gateway granted role.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals(LocalUserRoles).([]string)
		if !slices.Contains(roles, role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "insufficient role",
				"code":  "forbidden",
			})
		}
		return c.Next()
	}
}

// UserID reads the id stored by UserContextMiddleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}
