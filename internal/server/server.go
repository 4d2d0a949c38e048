// Package server exposes timetables and room occupancy over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"celcatsync/internal/config"
	"celcatsync/internal/export"
	"celcatsync/internal/models"
	"celcatsync/internal/occupancy"
	"celcatsync/internal/period"
	"celcatsync/internal/timetable"
)

// EventSource yields the events of a timetable request.
type EventSource interface {
	Events(ctx context.Context, req timetable.Request) ([]models.Event, error)
}

// RoomEvaluator computes room occupancy.
type RoomEvaluator interface {
	Evaluate(ctx context.Context, date time.Time, rooms []string) []occupancy.Occupancy
}

// Server serves ICS subscriptions and occupancy queries.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	events   EventSource
	rooms    RoomEvaluator
	closed   []time.Weekday
	calendar export.ICS
	engine   *gin.Engine
}

// New builds the server and its routes.
func New(logger *slog.Logger, cfg *config.Config, events EventSource, rooms RoomEvaluator) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	closed, err := cfg.ClosedDays()
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		events:   events,
		rooms:    rooms,
		closed:   closed,
		calendar: export.ICS{ProductID: cfg.ProductID, UIDDomain: cfg.UIDDomain},
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.registerRoutes()
	return s, nil
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/calendar.ics", s.handleCalendar)

	api := s.engine.Group("/api")
	{
		api.GET("/events", s.handleEvents)
		api.GET("/occupancy", s.handleOccupancy)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "duration", time.Since(start))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// timetableRequest reads period, date, type and id query parameters.
func (s *Server) timetableRequest(c *gin.Context) (timetable.Request, bool) {
	ids := c.QueryArray("id")
	if len(ids) == 0 {
		writeError(c, http.StatusBadRequest, "missing id parameter")
		return timetable.Request{}, false
	}
	anchor, ok := s.anchor(c)
	if !ok {
		return timetable.Request{}, false
	}
	return timetable.Request{
		Period:       period.Parse(c.DefaultQuery("period", string(period.Week))),
		Anchor:       anchor,
		ResourceType: s.cfg.ResourceType(c.DefaultQuery("type", s.cfg.DefaultResourceType)),
		IDs:          ids,
	}, true
}

func (s *Server) anchor(c *gin.Context) (time.Time, bool) {
	date := c.DefaultQuery("date", time.Now().Format("2006-01-02"))
	anchor, err := period.ParseAnchor(date, s.closed)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return time.Time{}, false
	}
	return anchor, true
}

func (s *Server) handleCalendar(c *gin.Context) {
	req, ok := s.timetableRequest(c)
	if !ok {
		return
	}
	events, err := s.events.Events(c.Request.Context(), req)
	if err != nil {
		s.logger.Error("Failed to build calendar", "error", err, "ids", req.IDs)
		writeError(c, http.StatusBadGateway, "failed to fetch timetable")
		return
	}

	var buf bytes.Buffer
	if err := s.calendar.Encode(&buf, events); err != nil {
		s.logger.Error("Failed to encode calendar", "error", err)
		writeError(c, http.StatusInternalServerError, "failed to encode calendar")
		return
	}
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}

type eventResponse struct {
	ID       *string    `json:"id"`
	Summary  string     `json:"summary"`
	Location string     `json:"location"`
	Details  string     `json:"details"`
	Start    *time.Time `json:"start"`
	End      *time.Time `json:"end"`
	Color    *string    `json:"color"`
}

func (s *Server) handleEvents(c *gin.Context) {
	req, ok := s.timetableRequest(c)
	if !ok {
		return
	}
	events, err := s.events.Events(c.Request.Context(), req)
	if err != nil {
		s.logger.Error("Failed to fetch events", "error", err, "ids", req.IDs)
		writeError(c, http.StatusBadGateway, "failed to fetch timetable")
		return
	}

	resp := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, eventResponse{
			ID:       ev.ID,
			Summary:  ev.Summary(),
			Location: ev.Location,
			Details:  ev.Details,
			Start:    ev.Start,
			End:      ev.End,
			Color:    ev.Color,
		})
	}
	c.JSON(http.StatusOK, resp)
}

type occupancyResponse struct {
	Room        string `json:"room"`
	MorningBusy bool   `json:"morning_busy"`
	EveningBusy bool   `json:"evening_busy"`
	Error       string `json:"error,omitempty"`
}

func (s *Server) handleOccupancy(c *gin.Context) {
	rooms := c.QueryArray("room")
	if len(rooms) == 0 {
		writeError(c, http.StatusBadRequest, "missing room parameter")
		return
	}
	date, ok := s.anchor(c)
	if !ok {
		return
	}

	results := s.rooms.Evaluate(c.Request.Context(), date, rooms)
	resp := make([]occupancyResponse, 0, len(results))
	for _, occ := range results {
		r := occupancyResponse{Room: occ.Room, MorningBusy: occ.MorningBusy, EveningBusy: occ.EveningBusy}
		if occ.Err != nil {
			r.Error = occ.Err.Error()
		}
		resp = append(resp, r)
	}
	c.JSON(http.StatusOK, resp)
}

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
