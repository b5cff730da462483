package adminapi

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"
	"github.com/montanaflynn/stats"
	"github.com/talkincode/toughwatch/internal/domain"
	"github.com/talkincode/toughwatch/internal/webserver"
)

// registerStatusRoutes registers service status API routes
func registerStatusRoutes() {
	webserver.ApiGET("/status", ListServiceStatus)
	webserver.ApiGET("/status/:name", GetServiceStatus)
	webserver.ApiGET("/status/:name/history", GetServiceHistory)
	webserver.ApiGET("/status/:name/summary", GetServiceSummary)
}

// statusView joins the configured service with its live state.
type statusView struct {
	Name                string        `json:"name"`
	URL                 string        `json:"url"`
	Type                string        `json:"type"`
	Status              domain.Status `json:"status"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LatencyMs           *float64      `json:"latency_ms,omitempty"`
	StatusCode          *int          `json:"status_code,omitempty"`
	Error               string        `json:"error,omitempty"`
	LastCheck           *time.Time    `json:"last_check,omitempty"`
	LastTransition      *time.Time    `json:"last_transition,omitempty"`
}

func newStatusView(srv domain.Service, st domain.ServiceState) statusView {
	v := statusView{
		Name:                srv.Name,
		URL:                 srv.URL,
		Type:                srv.Type,
		Status:              st.Status,
		ConsecutiveFailures: st.ConsecutiveFailures,
	}
	if m := st.LastMeasurement; m != nil {
		ms := m.Latency.Seconds() * 1000
		v.LatencyMs = &ms
		v.StatusCode = m.StatusCode
		v.Error = m.Error
		t := m.Timestamp
		v.LastCheck = &t
	}
	if !st.LastTransition.IsZero() {
		t := st.LastTransition
		v.LastTransition = &t
	}
	return v
}

// ListServiceStatus retrieves the current state of every monitored service,
// worst status first
// @Summary get the service status snapshot
// @Tags Status
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/status [get]
func ListServiceStatus(c echo.Context) error {
	appCtx := GetAppContext(c)
	snapshot := appCtx.Engine().Snapshot()
	services := appCtx.Config().Services

	views := make([]statusView, 0, len(services))
	for _, srv := range services {
		views = append(views, newStatusView(srv, snapshot[srv.Name]))
	}
	sort.Slice(views, func(i, j int) bool {
		if a, b := views[i].Status.Severity(), views[j].Status.Severity(); a != b {
			return a > b
		}
		return views[i].Name < views[j].Name
	})

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  views,
		"total": len(views),
	})
}

// GetServiceStatus fetches the state of a single service
// @Summary get service status detail
// @Tags Status
// @Param name path string true "Service name"
// @Router /api/v1/status/{name} [get]
func GetServiceStatus(c echo.Context) error {
	appCtx := GetAppContext(c)
	name := c.Param("name")

	st, found := appCtx.Engine().State(name)
	if !found {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Service not found", nil)
	}
	srv, _ := findService(appCtx.Config().Services, name)
	return ok(c, newStatusView(srv, st))
}

// GetServiceHistory returns the recorded entries of one service, oldest
// first
// @Summary get service history
// @Tags Status
// @Param name path string true "Service name"
// @Param hours query int false "Lookback window in hours, default 24"
// @Param since query string false "Explicit lower bound, any common timestamp format"
// @Router /api/v1/status/{name}/history [get]
func GetServiceHistory(c echo.Context) error {
	appCtx := GetAppContext(c)
	name := c.Param("name")

	if _, found := appCtx.Engine().State(name); !found {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Service not found", nil)
	}
	since, err := parseSince(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_RANGE", "Unable to parse history range", err.Error())
	}

	entries := appCtx.History().Query(name, since)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  entries,
		"total": len(entries),
	})
}

// GetServiceSummary aggregates uptime and latency over the query window
// @Summary get service uptime and latency summary
// @Tags Status
// @Param name path string true "Service name"
// @Param hours query int false "Lookback window in hours, default 24"
// @Router /api/v1/status/{name}/summary [get]
func GetServiceSummary(c echo.Context) error {
	appCtx := GetAppContext(c)
	name := c.Param("name")

	if _, found := appCtx.Engine().State(name); !found {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Service not found", nil)
	}
	since, err := parseSince(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_RANGE", "Unable to parse history range", err.Error())
	}

	entries := appCtx.History().Query(name, since)
	return ok(c, summarize(name, since, entries))
}

func findService(services []domain.Service, name string) (domain.Service, bool) {
	for _, srv := range services {
		if srv.Name == name {
			return srv, true
		}
	}
	return domain.Service{}, false
}

// parseSince resolves the query window: an explicit since timestamp wins
// over the hours lookback, default 24h.
func parseSince(c echo.Context) (time.Time, error) {
	if raw := c.QueryParam("since"); raw != "" {
		return dateparse.ParseAny(raw)
	}
	hours := 24
	if raw := c.QueryParam("hours"); raw != "" {
		h, err := strconv.Atoi(raw)
		if err != nil || h <= 0 {
			return time.Time{}, fmt.Errorf("invalid hours %q", raw)
		}
		hours = h
	}
	return time.Now().Add(-time.Duration(hours) * time.Hour), nil
}

type latencySummary struct {
	AvgMs    float64 `json:"avg_ms"`
	MedianMs float64 `json:"median_ms"`
	P95Ms    float64 `json:"p95_ms"`
	MaxMs    float64 `json:"max_ms"`
}

type serviceSummary struct {
	Service       string                `json:"service"`
	Since         time.Time             `json:"since"`
	Samples       int                   `json:"samples"`
	UptimePercent float64               `json:"uptime_percent"`
	ByStatus      map[domain.Status]int `json:"by_status"`
	Latency       *latencySummary       `json:"latency,omitempty"`
}

// summarize folds history entries into an uptime share and latency stats.
// Entries with zero latency, probes that never connected, are excluded
// from the latency figures.
func summarize(name string, since time.Time, entries []domain.HistoryEntry) serviceSummary {
	out := serviceSummary{
		Service:  name,
		Since:    since,
		Samples:  len(entries),
		ByStatus: make(map[domain.Status]int),
	}
	if len(entries) == 0 {
		return out
	}
	up := 0
	latencies := make([]float64, 0, len(entries))
	for _, e := range entries {
		out.ByStatus[e.Status]++
		if e.Status != domain.StatusDown {
			up++
		}
		if e.Latency > 0 {
			latencies = append(latencies, e.Latency*1000)
		}
	}
	out.UptimePercent = float64(up) / float64(len(entries)) * 100
	if len(latencies) > 0 {
		avg, _ := stats.Mean(latencies)
		med, _ := stats.Median(latencies)
		p95, _ := stats.Percentile(latencies, 95)
		max, _ := stats.Max(latencies)
		out.Latency = &latencySummary{AvgMs: avg, MedianMs: med, P95Ms: p95, MaxMs: max}
	}
	return out
}
