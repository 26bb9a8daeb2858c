package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"owm2mqtt/internal/bridge"
	"owm2mqtt/internal/store"
)

var validate = validator.New()

// ServiceInfo is the static configuration echoed by the status endpoint.
type ServiceInfo struct {
	Mode        string
	TopicPrefix string
	Interval    time.Duration
}

// RegisterRoutes wires the status handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, b *bridge.Bridge, history *store.MemoryStore, info ServiceInfo) {
	v1 := app.Group("/api/v1")

	v1.Get("/status", func(c *fiber.Ctx) error {
		resp := fiber.Map{
			"mode":             info.Mode,
			"topic_prefix":     info.TopicPrefix,
			"interval_seconds": int(info.Interval.Seconds()),
			"last_observation": b.LastObservation(),
		}

		last, err := history.Last()
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusInternalServerError, "failed to read cycle history")
			}
			resp["last_cycle"] = nil
		} else {
			resp["last_cycle"] = last
		}

		return c.JSON(resp)
	})

	v1.Get("/cycles", func(c *fiber.Ctx) error {
		req, err := parseCyclesQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		return c.JSON(fiber.Map{
			"cycles": history.Recent(req.Limit),
		})
	})
}

// cyclesQuery holds query parameters for the cycle history endpoint.
type cyclesQuery struct {
	Limit int `validate:"min=1,max=500"`
}

func parseCyclesQuery(c *fiber.Ctx) (cyclesQuery, error) {
	q := cyclesQuery{Limit: 20}

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, errors.New("limit must be an integer")
		}
		q.Limit = n
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}

	return q, nil
}
