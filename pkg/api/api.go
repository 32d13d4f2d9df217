// Package api provides a REST API for inspecting and driving a running emulator
package api

import (
	"encoding/hex"
	"errors"
	"strings"
	"sync"

	"github.com/fako1024/progressor/pkg/device"
	"github.com/fako1024/progressor/pkg/emulator"
	"github.com/fako1024/progressor/pkg/scale"
	"github.com/gofiber/fiber/v2"
)

// Emulator denotes the device the API operates on
type Emulator interface {
	HandleCommand(buf []byte) error
	State() device.Snapshot
	Calibration() scale.Calibration
	Stats() emulator.Stats
}

// LinkStatus denotes the JSON representation of the link state
type LinkStatus struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// API denotes a REST API for an emulator
type API struct {
	emulator Emulator
	link     scale.Link
	router   *fiber.App

	latest    scale.Reading
	hasLatest bool
	mu        sync.RWMutex

	logger scale.Logger
}

// New instantiates a new API, executing functional options, if any
func New(e Emulator, options ...func(*API)) *API {

	api := &API{
		emulator: e,
		router: fiber.New(fiber.Config{
			DisableStartupMessage: true,
		}),
		logger: &scale.NullLogger{},
	}

	// Execute functional options (if any)
	for _, option := range options {
		option(api)
	}

	// Setup routes
	api.router.Get("/state", api.handleState())
	api.router.Get("/calibration", api.handleCalibration())
	api.router.Get("/stats", api.handleStats())
	api.router.Get("/reading", api.handleReading())
	api.router.Get("/link", api.handleLink())
	api.router.Post("/command", api.handleCommand())

	return api
}

// WithLink sets the link whose state is reported
func WithLink(link scale.Link) func(*API) {
	return func(api *API) {
		api.link = link
	}
}

// WithLogger sets a logger
func WithLogger(logger scale.Logger) func(*API) {
	return func(api *API) {
		api.logger = logger
	}
}

// Listen serves the API on the given endpoint until Shutdown is called
func (api *API) Listen(endpoint string) error {
	api.logger.Infof("serving API on %s", endpoint)
	return api.router.Listen(endpoint)
}

// Shutdown stops serving the API
func (api *API) Shutdown() error {
	return api.router.Shutdown()
}

// HandleReading records the latest measured sample (to be used as reading handler)
func (api *API) HandleReading(r scale.Reading) {
	api.mu.Lock()
	defer api.mu.Unlock()

	api.latest, api.hasLatest = r, true
}

////////////////////////////////////////////////////////////////////////////////

func (api *API) handleState() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		return c.JSON(api.emulator.State())
	}
}

func (api *API) handleCalibration() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		return c.JSON(api.emulator.Calibration())
	}
}

func (api *API) handleStats() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		return c.JSON(api.emulator.Stats())
	}
}

func (api *API) handleReading() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		api.mu.RLock()
		r, ok := api.latest, api.hasLatest
		api.mu.RUnlock()

		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no reading available")
		}
		return c.JSON(r)
	}
}

func (api *API) handleLink() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		if api.link == nil {
			return fiber.NewError(fiber.StatusNotFound, "no link configured")
		}

		status := api.link.ConnectionStatus()
		res := LinkStatus{State: status.State.String()}
		if status.Error != nil {
			res.Error = status.Error.Error()
		}
		return c.JSON(res)
	}
}

// handleCommand accepts the control point bytes as hex string, e.g. "73 41200000"
func (api *API) handleCommand() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		buf, err := hex.DecodeString(strings.Join(strings.Fields(string(c.Body())), ""))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid hex encoded command: "+err.Error())
		}

		if err := api.emulator.HandleCommand(buf); err != nil {
			if errors.Is(err, emulator.ErrQueueFull) {
				return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
			}
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		return c.SendStatus(fiber.StatusAccepted)
	}
}
