package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes sets up the full API surface. Public routes cover reads
// needed by the dashboard's passive views; everything that mutates state
// or touches external tools requires a passkey.
func registerRoutes(router *gin.Engine, deps Deps) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	// Public.
	api.GET("/health", handleHealth(deps))
	api.GET("/telemetry", handleTelemetryTail(deps))
	api.GET("/drones", handleDrones(deps))
	api.GET("/drones/active", handleDronesActive(deps))
	api.GET("/drone/:id/has-telemetry", handleHasTelemetry(deps))
	api.GET("/elrs/status", handleELRSStatus(deps))
	api.GET("/profiles", handleProfilesList(deps))
	api.POST("/auth/verify", handleAuthVerify(deps))

	// Privileged.
	priv := api.Group("", requireAuth(deps.Auth))
	priv.POST("/drones/activate", handleActivate(deps))
	priv.POST("/profiles/reorder", handleProfilesReorder(deps))
	priv.POST("/profiles/:id", handleProfileUpsert(deps))
	priv.DELETE("/profiles/:id", handleProfileDelete(deps))
	priv.GET("/discover", handleDiscover(deps))
	priv.POST("/pair", handlePair(deps))
	priv.GET("/scan-cameras/:ip", handleScanCameras(deps))
	priv.POST("/drone-conf", handleDroneConf(deps))
	priv.POST("/update-mediamtx", handleUpdateMediaMTX(deps))
	priv.GET("/mediamtx/status", handleMediaMTXStatus(deps))
	priv.GET("/mediamtx/paths", handleMediaMTXPaths(deps))
	priv.GET("/mediamtx/config", handleMediaMTXConfig(deps))
	priv.GET("/mediamtx/logs", handleMediaMTXLogs(deps))
	priv.POST("/mediamtx/restart", handleMediaMTXRestart(deps))
	priv.POST("/upgrade", handleUpgradeStart(deps))
	priv.GET("/upgrade/status", handleUpgradeStatus(deps))
}
