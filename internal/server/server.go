package server

import (
	"github.com/TheVenters/VentApp/internal/auth"
	"github.com/TheVenters/VentApp/internal/chat"
	"github.com/TheVenters/VentApp/internal/config"
	"github.com/TheVenters/VentApp/internal/db"
	"github.com/TheVenters/VentApp/internal/friend"
	"github.com/TheVenters/VentApp/internal/pin"
	"github.com/TheVenters/VentApp/internal/profile"
	"github.com/TheVenters/VentApp/internal/realtime"
	"github.com/TheVenters/VentApp/internal/remote"
	"github.com/TheVenters/VentApp/internal/storage"
	"github.com/TheVenters/VentApp/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       db.Querier
	Redis    *redis.Client
	Bus      *realtime.Bus
	Stream   *stream.Hub
	Sessions *SessionManager
}

func NewServer(cfg config.Config, q db.Querier, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	bus := realtime.NewBus(redisClient)
	hub := stream.NewHub()

	var client remote.Client
	if q != nil {
		client = remote.NewPostgres(q, bus)
	} else {
		client = remote.NewMemory(bus)
	}

	s := &Server{
		App:      app,
		Cfg:      cfg,
		DB:       q,
		Redis:    redisClient,
		Bus:      bus,
		Stream:   hub,
		Sessions: NewSessionManager(bus, client, hub, cfg.PinLayer),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	authSvc := auth.NewService(s.Cfg.JWTSecret, s.DB)
	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	auth.RegisterRoutes(s.App.Group("/auth"), authSvc)
	s.App.Post("/auth/logout", jwtMiddleware, func(c *fiber.Ctx) error {
		s.Sessions.Release(userID(c))
		return c.SendStatus(fiber.StatusNoContent)
	})

	pin.RegisterRoutes(s.App.Group("/pins"), func(c *fiber.Ctx) (*pin.Service, error) {
		st, err := s.state(c)
		if err != nil {
			return nil, err
		}
		return st.Pins, nil
	}, jwtMiddleware)

	friend.RegisterRoutes(s.App.Group("/friends"), func(c *fiber.Ctx) (*friend.Service, error) {
		st, err := s.state(c)
		if err != nil {
			return nil, err
		}
		return st.Friends, nil
	}, jwtMiddleware)

	chat.RegisterRoutes(s.App.Group("/chat"), func(c *fiber.Ctx) (*chat.Service, error) {
		st, err := s.state(c)
		if err != nil {
			return nil, err
		}
		return st.Chat, nil
	}, jwtMiddleware)

	profile.RegisterRoutes(s.App.Group("/profiles"), func(c *fiber.Ctx) (*profile.Service, error) {
		st, err := s.state(c)
		if err != nil {
			return nil, err
		}
		return st.Profiles, nil
	}, jwtMiddleware)

	storage.RegisterRoutes(s.App.Group("/media"), storage.NewService(s.DB, s.Cfg.MediaBaseURL), jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, jwtMiddleware)
}

func (s *Server) state(c *fiber.Ctx) (*UserState, error) {
	st, err := s.Sessions.Acquire(c.Context(), userID(c))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	return st, nil
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
