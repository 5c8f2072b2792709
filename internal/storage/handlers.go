package storage

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/upload", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			FileName  string `json:"file_name"`
			MediaType string `json:"media_type"`
		}
		_ = c.BodyParser(&body)

		userID, _ := c.Locals("user_id").(string)
		obj, err := svc.SaveMedia(c.Context(), userID, body.FileName, body.MediaType)
		if err != nil {
			if errors.Is(err, ErrBadMediaType) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(obj)
	})
}
