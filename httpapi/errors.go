package httpapi

import (
	"net/http"

	"github.com/MrEthical07/credstore"
	"github.com/gofiber/fiber/v3"
)

const internalErrorBody = "internal_error"

// StatusFor maps an engine error to an HTTP status code.
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch credstore.CodeOf(err) {
	case credstore.CodeUsernameTaken,
		credstore.CodeEmailTaken:
		return http.StatusConflict

	case credstore.CodeInvalidCredentials,
		credstore.CodeInvalidRefreshToken,
		credstore.CodeRefreshTokenExpired,
		credstore.CodeInvalidCurrentPassword:
		return http.StatusUnauthorized

	case credstore.CodeMissingRefreshToken,
		credstore.CodeMissingParams,
		credstore.CodeCredentialsRequired,
		credstore.CodeEmailRequired,
		credstore.CodeInvalidResetToken:
		return http.StatusBadRequest

	case credstore.CodeUserNotFound:
		return http.StatusNotFound

	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(c fiber.Ctx, err error) error {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		s.log.WithError(err).
			WithField("path", c.Path()).
			Error("httpapi: request failed")
		return c.Status(status).JSON(fiber.Map{"error": internalErrorBody})
	}
	return c.Status(status).JSON(fiber.Map{"error": credstore.CodeOf(err).String()})
}

func badRequest(c fiber.Ctx) error {
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid request body",
	})
}

func unauthorized(c fiber.Ctx) error {
	return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
		"error": "unauthorized",
	})
}
