package adminapi

// InitRouter registers every admin api route group. The webserver must be
// initialized first.
func InitRouter() {
	registerStatusRoutes()
	registerMonitorRoutes()
	registerAlertRoutes()
	registerSystemRoutes()
}
