package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dkrasnov/foxground/internal/telemetry"
)

// fail writes the uniform error envelope.
func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// failErr maps component errors onto the HTTP error taxonomy.
func failErr(c *gin.Context, err error) {
	if errors.Is(err, telemetry.ErrDBUnavailable) {
		fail(c, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	fail(c, http.StatusInternalServerError, err.Error())
}

// intParam coerces a route parameter to int64. Zero is a valid value.
func intParam(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, fmt.Sprintf("invalid %s: must be an integer", name))
		return 0, false
	}
	return v, true
}

func handleHealth(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbStatus := "ok"
		if err := deps.Reader.Ping(); err != nil {
			dbStatus = "unavailable"
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"status":  "ok",
			"db":      dbStatus,
		})
	}
}

func handleTelemetryTail(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		lastID := int64(0)
		if s := c.Query("lastId"); s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				fail(c, http.StatusBadRequest, "invalid lastId: must be an integer")
				return
			}
			lastID = v
		}
		limit := 0
		if s := c.Query("limit"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				fail(c, http.StatusBadRequest, "invalid limit: must be an integer")
				return
			}
			limit = v
		}
		var droneID *int64
		if s := c.Query("droneId"); s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				fail(c, http.StatusBadRequest, "invalid droneId: must be an integer")
				return
			}
			droneID = &v
		}

		records, latestID, err := deps.Reader.Tail(lastID, limit, droneID)
		if err != nil {
			failErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"records":  records,
			"latestId": latestID,
			"count":    len(records),
		})
	}
}

// configuredDrone pairs a roster profile with its live telemetry status.
type configuredDrone struct {
	DroneID   int64    `json:"droneId"`
	Slot      int      `json:"slot"`
	Name      string   `json:"name"`
	DroneType string   `json:"droneType"`
	Color     string   `json:"color"`
	LastSeen  int64    `json:"lastSeen"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func handleDrones(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		statuses, err := deps.Reader.ActiveDrones(telemetry.DefaultActivityWindow)
		if err != nil {
			failErr(c, err)
			return
		}
		profiles, err := deps.Roster.Load()
		if err != nil {
			deps.Log.Warn("roster load failed", zap.Error(err))
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}

		bySlot := make(map[string]int)
		for i, p := range profiles {
			if p != nil {
				bySlot[p.DroneID] = i + 1
			}
		}

		droneIDs := make([]int64, 0, len(statuses))
		configured := make([]configuredDrone, 0)
		detected := make([]telemetry.DroneStatus, 0)
		for _, st := range statuses {
			droneIDs = append(droneIDs, st.DroneID)
			key := strconv.FormatInt(st.DroneID, 10)
			slot, ok := bySlot[key]
			if !ok {
				detected = append(detected, st)
				continue
			}
			p := profiles[slot-1]
			configured = append(configured, configuredDrone{
				DroneID:   st.DroneID,
				Slot:      slot,
				Name:      p.Name,
				DroneType: p.DroneType,
				Color:     p.Color,
				LastSeen:  st.LastSeen,
				Latitude:  st.Latitude,
				Longitude: st.Longitude,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"success":          true,
			"droneIds":         droneIDs,
			"configuredDrones": configured,
			"detectedDrones":   detected,
			"count":            len(droneIDs),
			"activityWindowMs": telemetry.DefaultActivityWindow.Milliseconds(),
		})
	}
}

func handleDronesActive(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		rollup, activeID, err := deps.Reader.ActiveRollup()
		if err != nil {
			failErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":         true,
			"activeDrones":    rollup,
			"currentlyActive": activeID,
		})
	}
}

func handleActivate(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			DroneID *int64 `json:"droneId"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.DroneID == nil {
			fail(c, http.StatusBadRequest, "droneId is required and must be an integer")
			return
		}
		if err := deps.Control.SetActiveIntent(*body.DroneID); err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "droneId": *body.DroneID})
	}
}

func handleHasTelemetry(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		has, err := deps.Reader.HasTelemetry(id)
		if err != nil {
			failErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"droneId":      id,
			"hasTelemetry": has,
		})
	}
}

func handleELRSStatus(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := deps.Control.ELRSStatus()
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"connected": st.Connected,
			"ageMs":     st.AgeMs,
		})
	}
}
