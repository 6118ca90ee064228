package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/avolkov/pipewatch/internal/alert"
	"github.com/avolkov/pipewatch/internal/database"
	"github.com/avolkov/pipewatch/internal/ingest"
	"github.com/avolkov/pipewatch/internal/sensor"
	"github.com/avolkov/pipewatch/internal/ws"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

// ReadingResponse is the JSON shape of one reading.
type ReadingResponse struct {
	Timestamp    time.Time `json:"timestamp"`
	PipeID       string    `json:"pipe_id"`
	SensorType   string    `json:"sensor_type"`
	SensorNumber int       `json:"sensor_number"`
	Value        float64   `json:"value"`
	SensorID     string    `json:"sensor_id"`
}

func toReadingResponse(r database.Reading) ReadingResponse {
	return ReadingResponse{
		Timestamp:    r.Timestamp,
		PipeID:       r.PipeID,
		SensorType:   r.SensorType,
		SensorNumber: r.SensorNumber,
		Value:        r.Value,
		SensorID:     r.SensorID(),
	}
}

// PaginationMeta describes one page of results.
type PaginationMeta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

// PaginatedResponse is the /data/by-page envelope.
type PaginatedResponse struct {
	Data []ReadingResponse `json:"data"`
	Meta PaginationMeta    `json:"meta"`
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

// parseFilter builds a reading filter from common query parameters.
func parseFilter(r *http.Request) (database.ReadingFilter, error) {
	var filter database.ReadingFilter
	q := r.URL.Query()

	if sensorID := q.Get("sensor_id"); sensorID != "" {
		id, err := sensor.ParseID(sensorID)
		if err != nil {
			return filter, fmt.Errorf("invalid sensor_id format")
		}
		filter.Sensor = &id
	}
	if raw := q.Get("start_date"); raw != "" {
		ts, err := sensor.ParseTimestamp(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid start_date")
		}
		filter.StartDate = &ts
	}
	if raw := q.Get("end_date"); raw != "" {
		ts, err := sensor.ParseTimestamp(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid end_date")
		}
		filter.EndDate = &ts
	}
	if raw := q.Get("min_value"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid min_value")
		}
		filter.MinValue = &v
	}
	if raw := q.Get("max_value"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid max_value")
		}
		filter.MaxValue = &v
	}

	return filter, nil
}

// handleUploadCSV ingests one CSV file and reports counts plus any fired
// alerts.
func (s *Server) handleUploadCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file upload")
		return
	}
	defer file.Close()

	result, err := s.pipeline.Ingest(r.Context(), file)
	if err != nil {
		if errors.Is(err, ingest.ErrMissingTimeColumn) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("Upload failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleDataByDate returns filtered readings; start_date is required.
func (s *Server) handleDataByDate(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.StartDate == nil {
		respondError(w, http.StatusBadRequest, "start_date is required")
		return
	}

	readings, err := s.store.QueryReadings(r.Context(), filter, 0, 0)
	if err != nil {
		log.Printf("Query failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]ReadingResponse, 0, len(readings))
	for _, reading := range readings {
		response = append(response, toReadingResponse(reading))
	}
	respondJSON(w, http.StatusOK, response)
}

// handleDataByPage returns one page of filtered readings with pagination
// metadata.
func (s *Server) handleDataByPage(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	page := 1
	if raw := q.Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			respondError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
	}
	limit := defaultPageLimit
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxPageLimit {
			respondError(w, http.StatusBadRequest,
				fmt.Sprintf("limit must be between 1 and %d", maxPageLimit))
			return
		}
	}

	total, err := s.store.CountReadings(r.Context(), filter)
	if err != nil {
		log.Printf("Count failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	readings, err := s.store.QueryReadings(r.Context(), filter, limit, (page-1)*limit)
	if err != nil {
		log.Printf("Query failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	totalPages := (total + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	data := make([]ReadingResponse, 0, len(readings))
	for _, reading := range readings {
		data = append(data, toReadingResponse(reading))
	}

	respondJSON(w, http.StatusOK, PaginatedResponse{
		Data: data,
		Meta: PaginationMeta{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages,
		},
	})
}

// handleExportCSV streams the full store as CSV, row by row.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=data.csv")

	flusher, _ := w.(http.Flusher)
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"timestamp", "pipe_id", "sensor_type", "sensor_number", "value"}); err != nil {
		log.Printf("Export failed: %v", err)
		return
	}

	err := s.store.StreamReadings(r.Context(), func(reading database.Reading) error {
		record := []string{
			reading.Timestamp.Format("2006-01-02T15:04:05.999999"),
			reading.PipeID,
			reading.SensorType,
			strconv.Itoa(reading.SensorNumber),
			strconv.FormatFloat(reading.Value, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		// Headers are already gone; all we can do is log and cut the stream.
		log.Printf("Export aborted: %v", err)
		return
	}

	writer.Flush()
}

// handleSensors lists the distinct sensor ids in the store.
func (s *Server) handleSensors(w http.ResponseWriter, r *http.Request) {
	sensors, err := s.store.ListSensors(r.Context())
	if err != nil {
		log.Printf("Sensor listing failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if sensors == nil {
		sensors = []string{}
	}
	respondJSON(w, http.StatusOK, map[string][]string{"sensors": sensors})
}

// handleExtremes returns min/max over the filtered reading set.
func (s *Server) handleExtremes(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	extremes, err := s.store.GetExtremes(r.Context(), filter)
	if err != nil {
		log.Printf("Extremes query failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respondJSON(w, http.StatusOK, extremes)
}

// handleCheckAlert runs the historical ratio check over persisted extremes.
// Responses are cached for the configured TTL.
func (s *Server) handleCheckAlert(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	cacheKey := fmt.Sprintf("check_alert:%s:%s:%s",
		q.Get("sensor_id"), q.Get("start_date"), q.Get("end_date"))

	if s.cache != nil {
		var cached alert.Summary
		hit, err := s.cache.Get(r.Context(), cacheKey, &cached)
		if err != nil {
			log.Printf("Cache read failed: %v", err)
		} else if hit {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	extremes, err := s.store.GetExtremes(r.Context(), filter)
	if err != nil {
		log.Printf("Extremes query failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	sensorID := q.Get("sensor_id")
	summary := s.evaluator.CheckHistory(sensorID, extremes.Min, extremes.Max)

	if s.cache != nil {
		if err := s.cache.Set(r.Context(), cacheKey, summary); err != nil {
			log.Printf("Cache write failed: %v", err)
		}
	}
	respondJSON(w, http.StatusOK, summary)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The alert feed is public to the configured frontend; origin is
	// enforced by the CORS layer for the REST surface.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleAlertSocket upgrades the connection and registers an alert
// subscriber.
func (s *Server) handleAlertSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := ws.NewClient(s.hub, conn)
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
