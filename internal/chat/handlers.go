package chat

import (
	"errors"

	"github.com/TheVenters/VentApp/internal/remote"
	"github.com/TheVenters/VentApp/internal/sync"

	"github.com/gofiber/fiber/v2"
)

// Resolver yields the acting user's chat service for a request.
type Resolver func(c *fiber.Ctx) (*Service, error)

func RegisterRoutes(r fiber.Router, resolve Resolver, authMiddleware fiber.Handler) {
	r.Get("/unread", authMiddleware, func(c *fiber.Ctx) error {
		svc, err := resolve(c)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"total":   svc.TotalUnread(),
			"by_peer": svc.UnreadByPeer(),
		})
	})

	r.Get("/conversations/:peer", authMiddleware, func(c *fiber.Ctx) error {
		svc, err := resolve(c)
		if err != nil {
			return err
		}
		msgs, err := svc.Open(c.Context(), c.Params("peer"))
		if err != nil {
			return messageError(err)
		}
		return c.JSON(msgs)
	})

	r.Delete("/conversations/:peer", authMiddleware, func(c *fiber.Ctx) error {
		svc, err := resolve(c)
		if err != nil {
			return err
		}
		svc.Close()
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/conversations/:peer/messages", authMiddleware, func(c *fiber.Ctx) error {
		svc, err := resolve(c)
		if err != nil {
			return err
		}
		var body struct {
			Content string `json:"content"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		sent, err := svc.Send(c.Context(), c.Params("peer"), body.Content)
		if err != nil {
			return messageError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(sent)
	})
}

func messageError(err error) error {
	switch {
	case errors.Is(err, sync.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, remote.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
}
