// Package server exposes the dashboard over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echolog "github.com/labstack/gommon/log"

	"github.com/Zachdehooge/flood-dashboard/internal/dashboard"
	"github.com/Zachdehooge/flood-dashboard/internal/fetcher"
	"github.com/Zachdehooge/flood-dashboard/internal/generator"
	"github.com/Zachdehooge/flood-dashboard/internal/reroute"
	"github.com/Zachdehooge/flood-dashboard/internal/sse"
)

const defaultNearest = 3

// State is the dashboard surface the HTTP handlers need.
type State interface {
	Snapshot() dashboard.Snapshot
	Select(id string) error
	ShowReroute(i int) (*reroute.Request, error)
	ClearReroute()
	Nearest(lat, lon float64, k int) []fetcher.Location
	Subscribe() (<-chan struct{}, func())
}

type Options struct {
	Heartbeat time.Duration
	Verbose   bool
}

type Server struct {
	e         *echo.Echo
	state     State
	heartbeat time.Duration
}

func New(state State, opts Options) *Server {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 5 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: fetcher.RequestID}))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	if opts.Verbose {
		e.Logger.SetLevel(echolog.DEBUG)
	} else {
		e.Logger.SetLevel(echolog.INFO)
	}

	s := &Server{e: e, state: state, heartbeat: opts.Heartbeat}
	e.GET("/", s.getIndex)
	e.GET("/healthz", s.getHealth)
	e.GET("/events", s.getEvents)

	api := e.Group("/api")
	api.GET("/state", s.getState)
	api.POST("/select/:id", s.postSelect)
	api.POST("/reroute/:index", s.postReroute)
	api.DELETE("/reroute", s.deleteReroute)
	api.GET("/locations/nearest", s.getNearest)
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.e }

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.e.Logger.Infof("dashboard listening on %s", addr)
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) getIndex(c echo.Context) error {
	var buf bytes.Buffer
	if err := generator.RenderHTML(&buf, s.state.Snapshot()); err != nil {
		c.Logger().Errorf("render page: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "render failed")
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (s *Server) getHealth(c echo.Context) error {
	snap := s.state.Snapshot()
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"sequence":  snap.Sequence,
		"demo":      snap.Demo,
		"locations": len(snap.Locations),
	})
}

func (s *Server) getState(c echo.Context) error {
	return c.JSON(http.StatusOK, s.state.Snapshot())
}

func (s *Server) postSelect(c echo.Context) error {
	id := c.Param("id")
	if err := s.state.Select(id); err != nil {
		if errors.Is(err, dashboard.ErrUnknownLocation) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return err
	}
	return c.JSON(http.StatusOK, s.state.Snapshot())
}

func (s *Server) postReroute(c echo.Context) error {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "index must be an integer")
	}
	req, err := s.state.ShowReroute(i)
	if err != nil {
		if errors.Is(err, dashboard.ErrNotReroutable) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return err
	}
	return c.JSON(http.StatusOK, req)
}

func (s *Server) deleteReroute(c echo.Context) error {
	s.state.ClearReroute()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getNearest(c echo.Context) error {
	lat, err := strconv.ParseFloat(c.QueryParam("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lat")
	}
	lon, err := strconv.ParseFloat(c.QueryParam("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lon")
	}
	k := defaultNearest
	if raw := c.QueryParam("k"); raw != "" {
		k, err = strconv.Atoi(raw)
		if err != nil || k < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid k")
		}
	}
	return c.JSON(http.StatusOK, s.state.Nearest(lat, lon, k))
}

// getEvents streams a "state" event on every change and a heartbeat in between.
func (s *Server) getEvents(c echo.Context) error {
	ctx := c.Request().Context()
	updates, cancel := s.state.Subscribe()
	defer cancel()

	c.Logger().Infof("sse connection from %s id=%s", c.RealIP(), c.Response().Header().Get(echo.HeaderXRequestID))

	w := c.Response()
	sse.SetHeaders(w.Header())
	w.WriteHeader(http.StatusOK)

	if err := s.sendState(w); err != nil {
		return nil
	}

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			if err := sse.WriteEvent(w, sse.Event{Name: "heartbeat"}); err != nil {
				return nil
			}
		case <-updates:
			if err := s.sendState(w); err != nil {
				return nil
			}
		}
	}
}

func (s *Server) sendState(w *echo.Response) error {
	b, err := json.Marshal(s.state.Snapshot())
	if err != nil {
		return err
	}
	return sse.WriteEvent(w, sse.Event{Name: "state", Data: string(b)})
}
