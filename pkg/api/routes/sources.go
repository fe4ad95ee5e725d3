package routes

import "github.com/gofiber/fiber/v2"

func SourcesRouter(router fiber.Router, resolver *Resolver) {
	router.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"default": resolver.Default,
			"sources": resolver.SourceNames(),
		})
	})
}
