package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const localsHikerID = "hiker_id"

// JWTMiddleware validates bearer tokens and stores hiker_id in locals.
func JWTMiddleware(secret string) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		parsed, err := parseMiddlewareClaimsFn(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return secretBytes, nil
		})
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		claims, ok := parsed.Claims.(*Claims)
		if !ok || !parsed.Valid || claims.HikerID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "token invalid")
		}

		c.Locals(localsHikerID, claims.HikerID)
		return c.Next()
	}
}

// HikerID returns the authenticated hiker, or "" on unauthenticated routes.
func HikerID(c *fiber.Ctx) string {
	id, _ := c.Locals(localsHikerID).(string)
	return id
}

// Passthrough trusts an X-Hiker-ID header. Only for tests and local runs.
func Passthrough(c *fiber.Ctx) error {
	if id := c.Get("X-Hiker-ID"); id != "" {
		c.Locals(localsHikerID, id)
	}
	return c.Next()
}

var parseMiddlewareClaimsFn = jwt.ParseWithClaims

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
