package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/mosaicnetworks/sensornet/src/telemetry"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

// StatsSource is anything that can report a snapshot of its state. The node
// implements it; GetStats must be safe to call from the HTTP goroutines.
type StatsSource interface {
	GetStats() map[string]string
}

// Service exposes the node's stats and the process metrics over HTTP.
type Service struct {
	sync.Mutex

	bindAddress string
	source      StatsSource
	mux         *http.ServeMux
	server      *http.Server
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, source StatsSource, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		source:      source,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering sensornet API handlers")
	s.mux.Handle("/stats", telemetry.Instrument("stats", s.makeHandler(s.GetStats)))
	s.mux.Handle("/metrics", telemetry.Instrument("metrics", telemetry.MetricsHandler()))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the service's request multiplexer.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call that returns nil once
// Close has been called.
func (s *Service) Serve() error {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving sensornet API")

	s.Lock()
	s.server = &http.Server{
		Addr:              s.bindAddress,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	server := s.server
	s.Unlock()

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if err != nil {
		s.logger.Error(err)
	}
	return err
}

// Close stops the HTTP server, waiting at most a second for requests in
// flight.
func (s *Service) Close() error {
	s.Lock()
	server := s.server
	s.Unlock()

	if server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}

// GetStats writes the node's stats as a JSON object with sorted keys.
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.source.GetStats()

	w.Header().Set("Content-Type", "application/json")

	jh := new(codec.JsonHandle)
	jh.Canonical = true

	if err := codec.NewEncoder(w, jh).Encode(stats); err != nil {
		s.logger.WithError(err).Error("Encoding stats")
	}
}
