package profile

import (
	"errors"

	"backend-trekhub/internal/auth"
	"backend-trekhub/internal/emergency"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes serves the authenticated hiker's own profile.
func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Get("/", func(c *fiber.Ctx) error {
		hiker, err := hikerID(c)
		if err != nil {
			return err
		}
		p, err := svc.Get(c.Context(), hiker)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(p)
	})

	r.Put("/", func(c *fiber.Ctx) error {
		hiker, err := hikerID(c)
		if err != nil {
			return err
		}
		var req Profile
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		req.HikerID = hiker
		p, err := svc.Upsert(c.Context(), req)
		if errors.Is(err, ErrInvalidProfile) {
			return fiber.NewError(fiber.StatusBadRequest, "fitness_level must be between 0 and 100")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(p)
	})

	r.Post("/contacts", func(c *fiber.Ctx) error {
		hiker, err := hikerID(c)
		if err != nil {
			return err
		}
		var req emergency.Contact
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		contact, err := svc.AddContact(c.Context(), hiker, req)
		if errors.Is(err, ErrInvalidContact) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(contact)
	})

	r.Delete("/contacts/:id", func(c *fiber.Ctx) error {
		hiker, err := hikerID(c)
		if err != nil {
			return err
		}
		err = svc.RemoveContact(c.Context(), hiker, c.Params("id"))
		if errors.Is(err, ErrContactNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func hikerID(c *fiber.Ctx) (string, error) {
	id := auth.HikerID(c)
	if id == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "hiker not authenticated")
	}
	return id, nil
}
