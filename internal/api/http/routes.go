package httpapi

import (
	"errors"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/crop-recommendation/internal/alerts"
	"github.com/i474232898/crop-recommendation/internal/crop"
	"github.com/i474232898/crop-recommendation/internal/environment"
	"github.com/i474232898/crop-recommendation/internal/store"
)

var validate = validator.New()

// Dependencies are the services the HTTP layer is a thin shell around.
type Dependencies struct {
	Environment *environment.Service
	Alerts      *alerts.Service
	Fertilizers *crop.FertilizerTable
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Dependencies) {
	h := &handlers{deps: deps}

	v1 := app.Group("/api/v1")
	v1.Get("/crops/recommendation", h.recommendation)
	v1.Get("/crops/:name", h.cropInfo)
	v1.Get("/weather/alerts", h.weatherAlerts)
	v1.Get("/environment/history", h.environmentHistory)

	// Routes used by the existing web client.
	app.Get("/Crop_recommendation", h.legacyRecommendation)
	app.Get("/Crop_info", h.legacyCropInfo)
}

type handlers struct {
	deps Dependencies
}

func (h *handlers) recommend(c *fiber.Ctx) (environment.Recommendation, error) {
	q, err := parseLocationQuery(c)
	if err != nil {
		return environment.Recommendation{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	rec, err := h.deps.Environment.Recommend(c.UserContext(), q.toLocation())
	if err != nil {
		if errors.Is(err, environment.ErrInvalidLocation) {
			return environment.Recommendation{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		log.Printf("ERROR: recommendation failed for %s: %v", q.toLocation().Key(), err)
		return environment.Recommendation{}, fiber.NewError(fiber.StatusInternalServerError, "failed to compute crop recommendation")
	}
	return rec, nil
}

func (h *handlers) recommendation(c *fiber.Ctx) error {
	rec, err := h.recommend(c)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"location":  rec.Snapshot.Location,
		"place":     rec.Snapshot.Place,
		"reading":   rec.Snapshot.Reading,
		"fallbacks": rec.Snapshot.Fallbacks,
		"degraded":  rec.Snapshot.Degraded,
		"sources":   rec.Snapshot.Sources,
		"crops":     rec.Crops,
	})
}

func (h *handlers) legacyRecommendation(c *fiber.Ctx) error {
	rec, err := h.recommend(c)
	if err != nil {
		return err
	}
	return c.JSON(rec.Crops)
}

func (h *handlers) lookupCrop(c *fiber.Ctx, name string) error {
	if name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "crop name is required")
	}

	info, err := crop.LookupInfo(h.deps.Environment.Catalog(), h.deps.Fertilizers, name)
	if err != nil {
		if errors.Is(err, crop.ErrCropNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to look up crop")
	}
	return c.JSON(info)
}

func (h *handlers) cropInfo(c *fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid crop name")
	}
	return h.lookupCrop(c, name)
}

func (h *handlers) legacyCropInfo(c *fiber.Ctx) error {
	return h.lookupCrop(c, c.Query("name"))
}

func (h *handlers) weatherAlerts(c *fiber.Ctx) error {
	var req alertsQuery
	if err := req.bind(c); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	loc := req.Location.toLocation()
	list, err := h.deps.Alerts.Alerts(c.UserContext(), loc.Lat, loc.Lon, req.Days)
	if err != nil {
		if errors.Is(err, alerts.ErrInvalidDays) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		log.Printf("ERROR: weather alerts failed for %s: %v", loc.Key(), err)
		return fiber.NewError(fiber.StatusBadGateway, "failed to fetch weather forecast")
	}

	return c.JSON(fiber.Map{
		"location": loc,
		"days":     req.Days,
		"alerts":   list,
	})
}

func (h *handlers) environmentHistory(c *fiber.Ctx) error {
	var req historyQuery
	if err := req.bind(c); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	loc := req.Location.toLocation()
	snapshots, err := h.deps.Environment.History(loc, req.From, req.To)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "no environment history for requested range")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch environment history")
	}

	return c.JSON(fiber.Map{
		"location":  loc,
		"from":      req.From,
		"to":        req.To,
		"snapshots": snapshots,
	})
}

// locationQuery holds query parameters for identifying a location.
type locationQuery struct {
	Lat string `validate:"required,latitude"`
	Lon string `validate:"required,longitude"`

	lat, lon float64
}

func (l locationQuery) toLocation() environment.Location {
	return environment.Location{
		Lat: l.lat,
		Lon: l.lon,
	}
}

func parseLocationQuery(c *fiber.Ctx) (locationQuery, error) {
	var q locationQuery

	q.Lat = c.Query("lat")
	q.Lon = c.Query("lon")

	if err := validate.Struct(q); err != nil {
		return q, err
	}

	// Validated above.
	q.lat, _ = strconv.ParseFloat(q.Lat, 64)
	q.lon, _ = strconv.ParseFloat(q.Lon, 64)
	return q, nil
}

// alertsQuery holds query parameters for the alerts endpoint.
type alertsQuery struct {
	Location locationQuery
	Days     int `validate:"min=1,max=10"`
}

func (a *alertsQuery) bind(c *fiber.Ctx) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}
	a.Location = loc

	a.Days = alerts.DefaultDays
	if s := c.Query("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return errors.New("days must be an integer")
		}
		a.Days = n
	}
	return nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Location locationQuery
	From     time.Time `validate:"required"`
	To       time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}
	h.Location = loc

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
