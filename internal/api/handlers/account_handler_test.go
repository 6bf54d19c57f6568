package handlers_test

import (
	"context"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postqueue/internal/models"
	"postqueue/internal/repository"
	"postqueue/internal/transfer"
	"postqueue/pkg/utils"
)

func connectRequest() transfer.ConnectAccountRequest {
	return transfer.ConnectAccountRequest{
		Platform:    "instagram",
		AccountName: "main",
		AccountID:   "ig-1001",
		AccessToken: "tok-instagram-secret",
	}
}

func TestConnectAccount(t *testing.T) {
	t.Run("stores the account with encrypted credentials", func(t *testing.T) {
		env := newTestEnv(t, nil)

		resp := env.do(t, fiber.MethodPost, "/api/accounts/connect", connectRequest(), nil)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)

		body := readBody(t, resp)
		assert.NotContains(t, body, "tok-instagram-secret")
		assert.NotContains(t, body, "credentials")

		stored, err := env.accounts.Get(context.Background(), 7, models.PlatformInstagram, "main")
		require.NoError(t, err)
		require.NotEmpty(t, stored.Credentials)
		assert.NotContains(t, stored.Credentials, "tok-instagram-secret")

		decrypted, err := utils.Decrypt(stored.Credentials, []byte(testSecret))
		require.NoError(t, err)
		assert.Contains(t, decrypted, "tok-instagram-secret")
	})

	t.Run("rejects an unknown platform", func(t *testing.T) {
		env := newTestEnv(t, nil)

		req := connectRequest()
		req.Platform = "myspace"

		resp := env.do(t, fiber.MethodPost, "/api/accounts/connect", req, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), "myspace")
	})

	t.Run("requires a token or key", func(t *testing.T) {
		env := newTestEnv(t, nil)

		req := connectRequest()
		req.AccessToken = ""

		resp := env.do(t, fiber.MethodPost, "/api/accounts/connect", req, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), "access_token or api_key")
	})

	t.Run("api key alone is enough", func(t *testing.T) {
		env := newTestEnv(t, nil)

		req := connectRequest()
		req.Platform = "whatsapp"
		req.AccessToken = ""
		req.APIKey = "wa-key"

		resp := env.do(t, fiber.MethodPost, "/api/accounts/connect", req, nil)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	})
}

func TestListAccounts(t *testing.T) {
	env := newTestEnv(t, nil)

	first := connectRequest()
	resp := env.do(t, fiber.MethodPost, "/api/accounts/connect", first, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	second := connectRequest()
	second.Platform = "tiktok"
	second.AccountName = "brand"
	resp = env.do(t, fiber.MethodPost, "/api/accounts/connect", second, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, fiber.MethodGet, "/api/accounts", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := readBody(t, resp)
	assert.Contains(t, body, "main")
	assert.Contains(t, body, "brand")
	assert.NotContains(t, body, "credentials")
	assert.NotContains(t, body, "tok-instagram-secret")
}

func TestRemoveAccount(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, fiber.MethodPost, "/api/accounts/connect", connectRequest(), nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	t.Run("removes a connected account", func(t *testing.T) {
		resp := env.do(t, fiber.MethodPost, "/api/accounts/remove", transfer.RemoveAccountRequest{
			Platform:    "instagram",
			AccountName: "main",
		}, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		_, err := env.accounts.Get(context.Background(), 7, models.PlatformInstagram, "main")
		assert.ErrorIs(t, err, repository.ErrAccountNotFound)
	})

	t.Run("unknown account", func(t *testing.T) {
		resp := env.do(t, fiber.MethodPost, "/api/accounts/remove", transfer.RemoveAccountRequest{
			Platform:    "instagram",
			AccountName: "ghost",
		}, nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}
