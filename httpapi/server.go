package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/credstore"
	"github.com/MrEthical07/credstore/jwt"
	"github.com/MrEthical07/credstore/middleware"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// DefaultBasePath is where routes are mounted unless WithBasePath is used.
const DefaultBasePath = "/api/auth"

const localsUserID = "credstore.user_id"

// Engine is the subset of *credstore.Engine the HTTP layer calls.
type Engine interface {
	Register(ctx context.Context, username, email, password string) (*credstore.PublicUser, error)
	Authenticate(ctx context.Context, usernameOrEmail, password string) (*credstore.AuthResult, error)
	VerifyAccessToken(token string) (jwt.Claims, bool)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*credstore.RefreshResult, error)
	RevokeRefreshToken(ctx context.Context, refreshToken string) error
	GetUserByID(ctx context.Context, id string) (*credstore.UserProfile, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	GenerateResetToken(ctx context.Context, email string) (*credstore.ResetTokenResult, error)
	ConsumeResetToken(ctx context.Context, rawToken, newPassword string) error
}

// Server holds the route handlers.
type Server struct {
	engine   Engine
	notifier ResetNotifier
	throttle Throttle
	log      logrus.FieldLogger
	basePath string
}

// Option configures a Server.
type Option func(*Server)

func WithBasePath(path string) Option {
	return func(s *Server) { s.basePath = path }
}

// WithNotifier sets how reset tokens reach users. Without one, reset
// requests are accepted and the token is discarded.
func WithNotifier(n ResetNotifier) Option {
	return func(s *Server) { s.notifier = n }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// New returns a Server for engine.
func New(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:   engine,
		log:      logrus.StandardLogger(),
		basePath: DefaultBasePath,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewApp returns a Fiber app with the routes mounted.
func NewApp(engine Engine, opts ...Option) *fiber.App {
	s := New(engine, opts...)
	app := fiber.New(fiber.Config{
		AppName:      "credstore",
		ErrorHandler: s.errorHandler,
	})
	s.Mount(app)
	return app
}

// Mount registers every route on router under the base path.
func (s *Server) Mount(router fiber.Router) {
	api := router.Group(s.basePath)

	api.Post("/register", s.register)
	api.Post("/login", s.login)
	api.Post("/refresh", s.refresh)
	api.Post("/logout", s.logout)
	api.Post("/password/reset-request", s.resetRequest)
	api.Post("/password/reset", s.resetConfirm)

	api.Get("/me", s.requireAccess, s.me)
	api.Post("/password", s.requireAccess, s.changePassword)
}

func (s *Server) errorHandler(c fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return s.writeError(c, err)
}

func requestContext(c fiber.Ctx) context.Context {
	return credstore.WithClientIP(c.Context(), c.IP())
}

func (s *Server) requireAccess(c fiber.Ctx) error {
	token, ok := middleware.BearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return unauthorized(c)
	}
	claims, ok := s.engine.VerifyAccessToken(token)
	if !ok {
		return unauthorized(c)
	}
	c.Locals(localsUserID, claims.Subject())
	return c.Next()
}

func userID(c fiber.Ctx) string {
	id, _ := c.Locals(localsUserID).(string)
	return id
}

/*
====================================
HANDLERS
====================================
*/

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) register(c fiber.Ctx) error {
	var in registerRequest
	if err := c.Bind().Body(&in); err != nil {
		return badRequest(c)
	}

	user, err := s.engine.Register(requestContext(c), in.Username, in.Email, in.Password)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(user)
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (s *Server) login(c fiber.Ctx) error {
	var in loginRequest
	if err := c.Bind().Body(&in); err != nil {
		return badRequest(c)
	}

	ctx := requestContext(c)
	if s.throttle != nil && s.throttled(c, s.throttle.CheckLogin(ctx, in.Identifier, c.IP())) {
		return tooManyRequests(c)
	}

	res, err := s.engine.Authenticate(ctx, in.Identifier, in.Password)
	s.noteLogin(ctx, c, in.Identifier, err)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(res)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) refresh(c fiber.Ctx) error {
	var in refreshRequest
	if err := c.Bind().Body(&in); err != nil {
		return badRequest(c)
	}

	res, err := s.engine.RefreshAccessToken(requestContext(c), in.RefreshToken)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(res)
}

func (s *Server) logout(c fiber.Ctx) error {
	var in refreshRequest
	if err := c.Bind().Body(&in); err != nil {
		return badRequest(c)
	}

	if err := s.engine.RevokeRefreshToken(requestContext(c), in.RefreshToken); err != nil {
		return s.writeError(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func (s *Server) me(c fiber.Ctx) error {
	profile, err := s.engine.GetUserByID(requestContext(c), userID(c))
	if err != nil {
		return s.writeError(c, err)
	}
	if profile == nil {
		return s.writeError(c, credstore.ErrUserNotFound)
	}
	return c.Status(http.StatusOK).JSON(profile)
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) changePassword(c fiber.Ctx) error {
	var in changePasswordRequest
	if err := c.Bind().Body(&in); err != nil {
		return badRequest(c)
	}

	err := s.engine.ChangePassword(requestContext(c), userID(c), in.OldPassword, in.NewPassword)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

type resetRequestBody struct {
	Email string `json:"email"`
}

// resetRequest answers 202 for unknown emails too, so the endpoint does not
// reveal which addresses are registered.
func (s *Server) resetRequest(c fiber.Ctx) error {
	var in resetRequestBody
	if err := c.Bind().Body(&in); err != nil {
		return badRequest(c)
	}

	ctx := requestContext(c)
	if s.throttle != nil && in.Email != "" && s.throttled(c, s.throttle.AllowResetRequest(ctx, in.Email)) {
		return tooManyRequests(c)
	}

	res, err := s.engine.GenerateResetToken(ctx, in.Email)
	switch {
	case errors.Is(err, credstore.ErrUserNotFound):
		return accepted(c)
	case err != nil:
		return s.writeError(c, err)
	}

	if s.notifier != nil {
		if err := s.notifier.DeliverResetToken(ctx, in.Email, res.ResetToken, res.ExpiresAt); err != nil {
			s.log.WithError(err).Error("httpapi: reset token delivery failed")
		}
	}
	return accepted(c)
}

// accepted is the reset-request reply. Known and unknown emails get the
// same JSON body.
func accepted(c fiber.Ctx) error {
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}

type resetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) resetConfirm(c fiber.Ctx) error {
	var in resetConfirmRequest
	if err := c.Bind().Body(&in); err != nil {
		return badRequest(c)
	}

	if err := s.engine.ConsumeResetToken(requestContext(c), in.Token, in.NewPassword); err != nil {
		return s.writeError(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}
