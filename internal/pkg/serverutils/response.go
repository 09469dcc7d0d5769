package serverutils

import "github.com/gofiber/fiber/v2"

// SuccessResponse builds {status: 200, <key>: data}.
func SuccessResponse(key string, data interface{}) fiber.Map {
	return fiber.Map{
		"status": fiber.StatusOK,
		key:      data,
	}
}

func OkResponse() fiber.Map {
	return fiber.Map{"status": fiber.StatusOK}
}

func ErrorResponse(code int, message string) fiber.Map {
	return fiber.Map{
		"status": code,
		"error":  message,
	}
}
