package profile

import (
	"errors"
	"strings"

	"github.com/TheVenters/VentApp/internal/remote"
	"github.com/TheVenters/VentApp/internal/sync"

	"github.com/gofiber/fiber/v2"
)

// Resolver yields the acting user's profile service for a request.
type Resolver func(c *fiber.Ctx) (*Service, error)

func RegisterRoutes(r fiber.Router, resolve Resolver, authMiddleware fiber.Handler) {
	r.Get("/search", authMiddleware, func(c *fiber.Ctx) error {
		svc, err := resolve(c)
		if err != nil {
			return err
		}
		found, err := svc.Search(c.Context(), c.Query("q"))
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(found)
	})

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		svc, err := resolve(c)
		if err != nil {
			return err
		}
		var ids []string
		if raw := c.Query("ids"); raw != "" {
			ids = strings.Split(raw, ",")
		}
		found, err := svc.ByIDs(c.Context(), ids)
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(found)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		svc, err := resolve(c)
		if err != nil {
			return err
		}
		found, err := svc.ByID(c.Context(), c.Params("id"))
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(found)
	})
}

func lookupError(err error) error {
	switch {
	case errors.Is(err, sync.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, remote.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
}
