package serverutils

import (
	"github.com/gofiber/fiber/v2"
)

const principalKey = "principal"

// JwtMiddleware validates the bearer token and stores user_id and the principal in Locals.
func JwtMiddleware(auth *Authorizer) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get("Authorization")
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(401, "Missing token"))
		}

		principal, err := auth.Authorize(authHeader[7:])
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(401, "Invalid token"))
		}

		ctx.Locals("user_id", principal.UserID)
		ctx.Locals(principalKey, principal)
		return ctx.Next()
	}
}

// AdminMiddleware must run after JwtMiddleware.
func AdminMiddleware(ctx *fiber.Ctx) error {
	p := PrincipalFrom(ctx)
	if p == nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(401, "Missing principal"))
	}
	if !p.IsAdmin {
		return ctx.Status(fiber.StatusForbidden).JSON(ErrorResponse(403, "Access denied: Admins only"))
	}
	return ctx.Next()
}

func PrincipalFrom(ctx *fiber.Ctx) *Principal {
	p, _ := ctx.Locals(principalKey).(*Principal)
	return p
}
