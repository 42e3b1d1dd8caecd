package httpapi

import (
	"errors"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/look-pyrenees/internal/geo"
	"github.com/i474232898/look-pyrenees/internal/pipeline"
	"github.com/i474232898/look-pyrenees/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, runner *pipeline.Runner, local *store.LocalStore) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "look-pyrenees",
			"running": runner.Running(),
		})
	})

	v1 := app.Group("/api/v1")

	v1.Get("/zones", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"zones": runner.Service().Zones()})
	})

	v1.Get("/artifacts", func(c *fiber.Ctx) error {
		var q artifactsQuery
		q.Zone = c.Query("zone")
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if q.Zone != "" {
			if _, err := runner.Service().ResolveZones(q.Zone); err != nil {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
		}

		artifacts, err := local.List(q.Zone)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list artifacts")
		}
		if artifacts == nil {
			artifacts = []store.Artifact{}
		}
		return c.JSON(fiber.Map{"artifacts": artifacts})
	})

	v1.Get("/artifacts/:name", func(c *fiber.Ctx) error {
		a, err := local.Get(c.Params("name"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no such artifact")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read artifact")
		}
		return c.Download(a.Path, filepath.Base(a.Path))
	})

	v1.Get("/runs/latest", func(c *fiber.Ctx) error {
		rep, err := runner.Latest()
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no run has finished yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch run")
		}
		return c.JSON(rep)
	})

	v1.Get("/runs/:id", func(c *fiber.Ctx) error {
		rep, err := runner.Get(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "no such run")
		}
		return c.JSON(rep)
	})

	v1.Post("/runs", func(c *fiber.Ctx) error {
		var req runRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if req.Zone == "" {
			req.Zone = pipeline.AllZones
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		zones, err := runner.Service().ResolveZones(req.Zone)
		if err != nil {
			if errors.Is(err, geo.ErrNoZoneMatch) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := runner.Start(c.UserContext(), zones); err != nil {
			if errors.Is(err, pipeline.ErrBusy) {
				return fiber.NewError(fiber.StatusConflict, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to start run")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"zones": zones})
	})
}

// artifactsQuery holds query parameters for the artifact listing.
type artifactsQuery struct {
	Zone string `validate:"omitempty,max=64"`
}

// runRequest is the body of a run trigger.
type runRequest struct {
	Zone string `json:"zone" validate:"required,max=256"`
}
