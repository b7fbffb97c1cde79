package tracking

import (
	"errors"

	"backend-trekhub/internal/auth"
	"backend-trekhub/internal/emergency"
	"backend-trekhub/internal/recording"
	"backend-trekhub/internal/shared/geo"
	"backend-trekhub/internal/trails"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/sessions", authMiddleware, func(c *fiber.Ctx) error {
		var req StartRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		hiker, err := hikerID(c)
		if err != nil {
			return err
		}
		session, err := svc.StartSession(c.Context(), hiker, req)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(session)
	})

	r.Post("/sessions/:id/points", authMiddleware, func(c *fiber.Ctx) error {
		var req geo.Fix
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		out, err := svc.AddPoint(c.Context(), c.Params("id"), auth.HikerID(c), req)
		if err != nil {
			return httpError(err)
		}
		if !out.Accepted {
			return c.Status(fiber.StatusAccepted).JSON(out)
		}
		return c.Status(fiber.StatusCreated).JSON(out)
	})

	r.Post("/sessions/:id/pause", authMiddleware, func(c *fiber.Ctx) error {
		session, err := svc.Pause(c.Context(), c.Params("id"), auth.HikerID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(session)
	})

	r.Post("/sessions/:id/resume", authMiddleware, func(c *fiber.Ctx) error {
		session, err := svc.Resume(c.Context(), c.Params("id"), auth.HikerID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(session)
	})

	r.Post("/sessions/:id/stop", authMiddleware, func(c *fiber.Ctx) error {
		result, err := svc.Stop(c.Context(), c.Params("id"), auth.HikerID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(result)
	})

	r.Get("/sessions/:id/summary", func(c *fiber.Ctx) error {
		summary, err := svc.Summary(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(summary)
	})

	r.Get("/sessions/:id/stats", func(c *fiber.Ctx) error {
		stats, err := svc.Stats(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(stats)
	})

	r.Post("/sessions/:id/trail", authMiddleware, func(c *fiber.Ctx) error {
		var req PublishRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		hiker, err := hikerID(c)
		if err != nil {
			return err
		}
		trail, err := svc.PublishTrail(c.Context(), c.Params("id"), hiker, req)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(trail)
	})

	r.Get("/sessions/:id/points", func(c *fiber.Ctx) error {
		points, err := svc.Points(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(points)
	})

	r.Get("/sessions/:id/gpx", func(c *fiber.Ctx) error {
		data, err := svc.Export(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		c.Set(fiber.HeaderContentType, "application/gpx+xml")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+c.Params("id")+`.gpx"`)
		return c.Send(data)
	})

	r.Post("/sessions/:id/battery", authMiddleware, func(c *fiber.Ctx) error {
		var req BatteryRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		state, err := svc.Battery(c.Params("id"), auth.HikerID(c), req.Percent)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(state)
	})

	r.Post("/sessions/:id/motion", authMiddleware, func(c *fiber.Ctx) error {
		var req MotionRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		state, err := svc.Motion(c.Params("id"), auth.HikerID(c), req.Samples)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(state)
	})

	r.Get("/sessions/:id/emergency", func(c *fiber.Ctx) error {
		state, err := svc.EmergencyState(c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(state)
	})

	r.Post("/sessions/:id/emergency", authMiddleware, func(c *fiber.Ctx) error {
		state, err := svc.TriggerEmergency(c.Params("id"), auth.HikerID(c))
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusAccepted).JSON(state)
	})

	r.Delete("/sessions/:id/emergency", authMiddleware, func(c *fiber.Ctx) error {
		cancelled, state, err := svc.CancelEmergency(c.Params("id"), auth.HikerID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"cancelled": cancelled, "state": state})
	})
}

func hikerID(c *fiber.Ctx) (string, error) {
	id := auth.HikerID(c)
	if id == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "hiker not authenticated")
	}
	return id, nil
}

func httpError(err error) error {
	var validation *recording.ValidationError
	var unavailable *recording.LocationUnavailableError
	switch {
	case errors.As(err, &validation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.As(err, &unavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, trails.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, trails.ErrNameMissing), errors.Is(err, trails.ErrBadRoute):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, emergency.ErrNotMonitoring), errors.Is(err, emergency.ErrAlertPending), errors.Is(err, ErrNotFinished):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
