package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string            `json:"status"`
	Uptime    string            `json:"uptime"`
	CPU       float64           `json:"cpu_percent"`
	Memory    float64           `json:"memory_percent"`
	Databases map[string]string `json:"databases"`
	Timestamp string            `json:"timestamp"`
}

// handleHealth reports process resource usage and database status.
// Any failing database turns the response into 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Databases: make(map[string]string, len(s.databases)),
		Timestamp: time.Now().Format(time.RFC3339),
	}
	resp.CPU, resp.Memory = s.getSystemStats()

	for _, db := range s.databases {
		if db == nil {
			continue
		}
		if err := db.QuickCheck(r.Context()); err != nil {
			s.log.Warn().Err(err).Str("database", db.Name()).Msg("Database health check failed")
			resp.Databases[db.Name()] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Databases[db.Name()] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

// getSystemStats returns CPU and RAM usage percentages. The CPU sample
// blocks for 100ms.
func (s *Server) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

// handleTriggerJob runs a registered job immediately
// POST /api/jobs/{name}
func (s *Server) handleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := s.jobs[name]
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{
			"status":  "error",
			"message": "Job not registered: " + name,
		})
		return
	}

	s.log.Info().Str("job", name).Msg("Manual job run triggered")
	start := time.Now()
	if err := job.Run(); err != nil {
		s.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":   "success",
		"message":  name + " completed",
		"duration": time.Since(start).Round(time.Millisecond).String(),
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
