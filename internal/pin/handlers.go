package pin

import (
	"errors"
	"strconv"

	"github.com/TheVenters/VentApp/internal/remote"
	"github.com/TheVenters/VentApp/internal/sync"

	"github.com/gofiber/fiber/v2"
)

// Resolver yields the acting user's pin service for a request.
type Resolver func(c *fiber.Ctx) (*Service, error)

func RegisterRoutes(r fiber.Router, resolve Resolver, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		svc, err := resolve(c)
		if err != nil {
			return err
		}
		return c.JSON(svc.List())
	})

	r.Get("/nearby", authMiddleware, func(c *fiber.Ctx) error {
		svc, err := resolve(c)
		if err != nil {
			return err
		}
		lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
		lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
		if err1 != nil || err2 != nil {
			return fiber.NewError(fiber.StatusBadRequest, "lat and lng required")
		}
		radius := 5.0
		if v := c.Query("radius_km"); v != "" {
			if radius, err = strconv.ParseFloat(v, 64); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid radius_km")
			}
		}
		return c.JSON(svc.Nearby(lat, lng, radius))
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		svc, err := resolve(c)
		if err != nil {
			return err
		}
		var input CreateInput
		if err := c.BodyParser(&input); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		created, err := svc.Create(c.Context(), input)
		if err != nil {
			return mutationError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	r.Put("/:id", authMiddleware, func(c *fiber.Ctx) error {
		svc, err := resolve(c)
		if err != nil {
			return err
		}
		var body struct {
			Caption   string `json:"caption"`
			MediaURL  string `json:"media_url"`
			MediaType string `json:"media_type"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		updated, err := svc.Update(c.Context(), c.Params("id"), body.Caption, body.MediaURL, body.MediaType)
		if err != nil {
			return mutationError(err)
		}
		return c.JSON(updated)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		svc, err := resolve(c)
		if err != nil {
			return err
		}
		if err := svc.Delete(c.Context(), c.Params("id")); err != nil {
			return mutationError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func mutationError(err error) error {
	switch {
	case errors.Is(err, sync.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, sync.ErrUnauthorized):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, remote.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
}
