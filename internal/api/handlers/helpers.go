package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func GetUserID(c *fiber.Ctx) int64 {
	raw, _ := c.Locals("user_id").(string)
	userID, _ := strconv.ParseInt(raw, 10, 64)
	return userID
}

func GetIsAdmin(c *fiber.Ctx) bool {
	isAdmin, _ := c.Locals("is_admin").(bool)
	return isAdmin
}
