package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkrasnov/foxground/internal/roster"
)

func handleProfilesList(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		drones, err := deps.Roster.Load()
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "drones": drones})
	}
}

func handleProfileUpsert(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		droneID := c.Param("id")
		var patch map[string]any
		if err := c.ShouldBindJSON(&patch); err != nil {
			fail(c, http.StatusBadRequest, "body must be a JSON object")
			return
		}

		profile, slot, err := deps.Roster.Upsert(droneID, patch)
		if errors.Is(err, roster.ErrNoFreeSlot) {
			fail(c, http.StatusBadRequest, "no-free-slot")
			return
		}
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"profile": profile,
			"slot":    slot,
		})
	}
}

func handleProfileDelete(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		found, err := deps.Roster.Delete(c.Param("id"))
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		if !found {
			fail(c, http.StatusNotFound, "profile not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func handleProfilesReorder(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			SourceSlot *int `json:"sourceSlot"`
			TargetSlot *int `json:"targetSlot"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.SourceSlot == nil || body.TargetSlot == nil {
			fail(c, http.StatusBadRequest, "sourceSlot and targetSlot are required integers")
			return
		}
		if *body.SourceSlot == *body.TargetSlot {
			c.JSON(http.StatusOK, gin.H{"success": true, "note": "no change"})
			return
		}

		err := deps.Roster.Swap(*body.SourceSlot, *body.TargetSlot)
		if errors.Is(err, roster.ErrEmptySlot) {
			fail(c, http.StatusBadRequest, "source slot is empty")
			return
		}
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
