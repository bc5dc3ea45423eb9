package serverutils

import (
	"strings"

	"notification-hub-be/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	LocalsUsername = "username"
	LocalsRole     = "role"

	RoleAdmin = "admin"
)

// JwtMiddleware authenticates HS256 tokens from the Authorization header or,
// for EventSource and WebSocket clients that cannot set headers, the token
// query parameter. The normalized username and role land in Locals.
func JwtMiddleware(secret string) fiber.Handler {
	key := []byte(secret)

	return func(ctx *fiber.Ctx) error {
		tokenStr := bearerToken(ctx)
		if tokenStr == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid claims"))
		}

		username, _ := claims["username"].(string)
		if username == "" {
			username, _ = claims.GetSubject()
		}
		username = utils.NormalizeUsername(username)
		if username == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Token missing username"))
		}

		role, _ := claims["role"].(string)

		ctx.Locals(LocalsUsername, username)
		ctx.Locals(LocalsRole, strings.ToLower(role))
		return ctx.Next()
	}
}

// RequireRole must run after JwtMiddleware.
func RequireRole(role string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if current, _ := ctx.Locals(LocalsRole).(string); current != role {
			return ctx.Status(fiber.StatusForbidden).JSON(ErrorResponse(fiber.StatusForbidden, "Forbidden"))
		}
		return ctx.Next()
	}
}

func Username(ctx *fiber.Ctx) string {
	username, _ := ctx.Locals(LocalsUsername).(string)
	return username
}

func bearerToken(ctx *fiber.Ctx) string {
	authHeader := ctx.Get("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ctx.Query("token")
}
