package trails

import (
	"errors"

	"backend-trekhub/internal/auth"
	"backend-trekhub/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Trail
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		req.CreatedBy = auth.HikerID(c)
		if req.CreatedBy == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "hiker not authenticated")
		}
		trail, err := svc.Create(c.Context(), req)
		if err != nil {
			return createError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(trail)
	})

	r.Get("/", func(c *fiber.Ctx) error {
		trails, err := svc.List(c.Context(), c.Query("difficulty"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(trails)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		trail, err := svc.Get(c.Context(), c.Params("id"))
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "trail not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(trail)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		hiker := auth.HikerID(c)
		if hiker == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "hiker not authenticated")
		}
		err := svc.Delete(c.Context(), c.Params("id"), hiker)
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "trail not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func createError(err error) error {
	switch {
	case errors.Is(err, ErrNameMissing), errors.Is(err, ErrBadRoute), errors.Is(err, geo.ErrInvalidCoordinate):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
