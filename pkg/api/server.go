package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mmathieum/montransit/pkg/api/routes"
)

func SetupServer(listen string, resolver *routes.Resolver) error {
	webApp := fiber.New()
	webApp.Use(NewLogger())

	group := webApp.Group("/v1")

	group.Get("version", routes.APIVersion)

	routes.SourcesRouter(group.Group("/sources"), resolver)
	routes.ArrivalsRouter(group.Group("/stops"), resolver)

	return webApp.Listen(listen)
}
