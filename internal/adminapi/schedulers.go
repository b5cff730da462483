package adminapi

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughwatch/internal/webserver"
)

// registerMonitorRoutes registers polling control API routes
func registerMonitorRoutes() {
	webserver.ApiPOST("/monitor/run", TriggerRunCycle)
}

// TriggerRunCycle runs one polling cycle immediately and reports its
// outcome. Useful after a configuration change or while diagnosing a
// flapping service.
func TriggerRunCycle(c echo.Context) error {
	appCtx := GetAppContext(c)
	// the cycle runs on a fresh context, a client disconnect must not
	// cancel probes halfway and record phantom failures
	stats := appCtx.RunCycleNow(context.Background())
	return ok(c, stats)
}
