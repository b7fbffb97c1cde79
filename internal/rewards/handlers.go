package rewards

import (
	"backend-trekhub/internal/auth"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, ledger *PostgresLedger, authMiddleware fiber.Handler) {
	r.Get("/claims", authMiddleware, func(c *fiber.Ctx) error {
		hiker := auth.HikerID(c)
		if hiker == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "hiker not authenticated")
		}
		claims, err := ledger.Claims(c.Context(), hiker)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if claims == nil {
			claims = []Claim{}
		}
		return c.JSON(claims)
	})
}
