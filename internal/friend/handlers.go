package friend

import (
	"errors"

	"github.com/TheVenters/VentApp/internal/remote"
	"github.com/TheVenters/VentApp/internal/sync"

	"github.com/gofiber/fiber/v2"
)

// Resolver yields the acting user's friend service for a request.
type Resolver func(c *fiber.Ctx) (*Service, error)

func RegisterRoutes(r fiber.Router, resolve Resolver, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		svc, err := resolve(c)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"friend_ids": svc.Friends()})
	})

	r.Get("/requests", authMiddleware, func(c *fiber.Ctx) error {
		svc, err := resolve(c)
		if err != nil {
			return err
		}
		return c.JSON(svc.PendingRequests())
	})

	r.Get("/requests/sent", authMiddleware, func(c *fiber.Ctx) error {
		svc, err := resolve(c)
		if err != nil {
			return err
		}
		return c.JSON(svc.SentRequests())
	})

	r.Post("/requests", authMiddleware, func(c *fiber.Ctx) error {
		svc, err := resolve(c)
		if err != nil {
			return err
		}
		var body struct {
			ToUserID string `json:"to_user_id"`
		}
		if err := c.BodyParser(&body); err != nil || body.ToUserID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "to_user_id required")
		}
		sent, err := svc.SendRequest(c.Context(), body.ToUserID)
		if err != nil {
			return requestError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(sent)
	})

	r.Post("/requests/:from/accept", authMiddleware, func(c *fiber.Ctx) error {
		svc, err := resolve(c)
		if err != nil {
			return err
		}
		if err := svc.Accept(c.Context(), c.Params("from")); err != nil {
			return requestError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/requests/:from/reject", authMiddleware, func(c *fiber.Ctx) error {
		svc, err := resolve(c)
		if err != nil {
			return err
		}
		if err := svc.Reject(c.Context(), c.Params("from")); err != nil {
			return requestError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Delete("/requests/:to", authMiddleware, func(c *fiber.Ctx) error {
		svc, err := resolve(c)
		if err != nil {
			return err
		}
		if err := svc.Cancel(c.Context(), c.Params("to")); err != nil {
			return requestError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		svc, err := resolve(c)
		if err != nil {
			return err
		}
		if err := svc.RemoveFriend(c.Context(), c.Params("id")); err != nil {
			return requestError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func requestError(err error) error {
	switch {
	case errors.Is(err, sync.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, remote.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
}
