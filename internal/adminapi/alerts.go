package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughwatch/internal/domain"
	"github.com/talkincode/toughwatch/internal/webserver"
	"go.uber.org/zap"
)

// registerAlertRoutes registers alert API routes
func registerAlertRoutes() {
	webserver.ApiPOST("/alerts/test", TestAlertChannels)
	webserver.ApiGET("/alerts/channels", ListAlertChannels)
}

// ListAlertChannels reports which delivery channels are enabled
func ListAlertChannels(c echo.Context) error {
	return ok(c, GetAppContext(c).Dispatcher().ChannelNames())
}

// TestAlertChannels pushes a synthetic alert through every enabled channel
// so an operator can verify delivery end to end.
// Request JSON: { "service": "github", "status": "down" }
func TestAlertChannels(c echo.Context) error {
	var payload struct {
		Service string `json:"service"`
		Status  string `json:"status"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.Service == "" {
		payload.Service = "toughwatch"
	}
	to := domain.Status(payload.Status)
	if payload.Status == "" {
		to = domain.StatusDown
	}
	if !to.Valid() {
		return fail(c, http.StatusBadRequest, "INVALID_STATUS", "Unknown target status", payload.Status)
	}

	evt := GetAppContext(c).TestAlert(payload.Service, to)
	zap.L().Info("adminapi: test alert dispatched",
		zap.String("service", payload.Service), zap.String("to", string(to)))
	return ok(c, evt)
}
