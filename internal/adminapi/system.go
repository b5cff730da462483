package adminapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughwatch/internal/webserver"
	"github.com/talkincode/toughwatch/pkg/metrics"
)

// registerSystemRoutes registers self metrics API routes
func registerSystemRoutes() {
	webserver.ApiGET("/system/metrics", GetSystemMetrics)
}

var gaugeNames = []string{
	metrics.SystemCPUUse,
	metrics.SystemMemUse,
	metrics.ProcessCPUUse,
	metrics.ProcessMemUse,
}

// GetSystemMetrics returns the monitor's own gauges: the latest samples by
// default, or the series over ?hours=N for charting.
func GetSystemMetrics(c echo.Context) error {
	if raw := c.QueryParam("hours"); raw != "" {
		h, err := strconv.Atoi(raw)
		if err != nil || h <= 0 {
			return fail(c, http.StatusBadRequest, "INVALID_RANGE", "Invalid hours parameter", raw)
		}
		since := time.Now().Add(-time.Duration(h) * time.Hour)
		series := make(map[string][]metrics.GaugePoint, len(gaugeNames))
		for _, name := range gaugeNames {
			series[name] = metrics.RangeGauge(name, since)
		}
		return ok(c, series)
	}

	latest := make(map[string]metrics.GaugePoint, len(gaugeNames))
	for _, name := range gaugeNames {
		if p, found := metrics.LatestGauge(name); found {
			latest[name] = p
		}
	}
	return ok(c, latest)
}
