package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"postqueue/internal/models"
	"postqueue/internal/publisher"
	"postqueue/internal/repository"
	"postqueue/internal/transfer"
)

type AccountHandler struct {
	accounts repository.AccountRepository
	secret   []byte
}

func NewAccountHandler(accounts repository.AccountRepository, secret []byte) *AccountHandler {
	return &AccountHandler{accounts: accounts, secret: secret}
}

// ConnectAccount stores a social account with encrypted credentials. Tokens
// are write-only: they never appear in any response after this call.
func (h *AccountHandler) ConnectAccount(c *fiber.Ctx) error {
	var req transfer.ConnectAccountRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	platform := models.Platform(req.Platform)
	if !platform.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown platform: " + req.Platform,
		})
	}
	if req.AccessToken == "" && req.APIKey == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Either access_token or api_key is required",
		})
	}

	encrypted, err := publisher.EncryptCredentials(&models.AccountCredentials{
		AccessToken: req.AccessToken,
		APIKey:      req.APIKey,
		Extra:       req.Extra,
	}, h.secret)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to store credentials",
		})
	}

	account := &models.SocialAccount{
		UserID:      GetUserID(c),
		Platform:    platform,
		AccountName: req.AccountName,
		AccountID:   req.AccountID,
		Credentials: encrypted,
	}
	if err := h.accounts.Save(c.Context(), account); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to save account",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(account)
}

func (h *AccountHandler) ListAccounts(c *fiber.Ctx) error {
	accounts, err := h.accounts.ListByUser(c.Context(), GetUserID(c))
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list accounts",
		})
	}
	return c.Status(fiber.StatusOK).JSON(accounts)
}

func (h *AccountHandler) RemoveAccount(c *fiber.Ctx) error {
	var req transfer.RemoveAccountRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	platform := models.Platform(req.Platform)
	if !platform.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown platform: " + req.Platform,
		})
	}

	if err := h.accounts.Remove(c.Context(), GetUserID(c), platform, req.AccountName); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Account not found",
			})
		}
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove account",
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Account removed",
	})
}
