package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dkrasnov/foxground/internal/roster"
	"github.com/dkrasnov/foxground/internal/tools"
)

// toolResponse maps a tool result onto the error taxonomy: a missing
// tool is a server problem (5xx), a failed tool is an operator-visible
// diagnostic (200 with success:false and captured streams).
func toolResponse(c *gin.Context, res tools.Result, extra gin.H) {
	if strings.HasPrefix(res.Error, "Script not found") {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   res.Error,
			"stdout":  res.Stdout,
			"stderr":  res.Stderr,
		})
		return
	}
	body := gin.H{
		"success":  res.Success,
		"command":  res.Command,
		"stdout":   res.Stdout,
		"stderr":   res.Stderr,
		"exitCode": res.ExitCode,
	}
	if res.Error != "" {
		body["error"] = res.Error
	}
	if res.ParseError != "" {
		body["parseError"] = res.ParseError
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

func handleDiscover(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := deps.Tools.Discover(c.Request.Context())
		toolResponse(c, res, gin.H{"drones": res.Parsed})
	}
}

func handlePair(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			IP      string `json:"ip"`
			DroneID *int64 `json:"droneId"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.IP == "" || body.DroneID == nil {
			fail(c, http.StatusBadRequest, "ip and droneId are required")
			return
		}

		paired, res := deps.Tools.Pair(c.Request.Context(), body.IP, *body.DroneID)
		res.Success = paired
		toolResponse(c, res, gin.H{"paired": paired})
	}
}

func handleScanCameras(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.Param("ip")
		if ip == "" {
			fail(c, http.StatusBadRequest, "ip is required")
			return
		}
		res := deps.Tools.ScanCameras(c.Request.Context(), ip)
		toolResponse(c, res, gin.H{"cameras": res.Parsed})
	}
}

func handleDroneConf(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			OldIP string `json:"oldIp"`
			NewIP string `json:"newIp"`
			CRSF1 string `json:"crsf1"`
			CRSF2 string `json:"crsf2"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.OldIP == "" || body.NewIP == "" {
			fail(c, http.StatusBadRequest, "oldIp and newIp are required")
			return
		}
		res := deps.Tools.DroneConf(c.Request.Context(), body.OldIP, body.NewIP, body.CRSF1, body.CRSF2)
		toolResponse(c, res, nil)
	}
}

func handleUpdateMediaMTX(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			FrontCamera *roster.Camera `json:"frontCamera"`
			RearCamera  *roster.Camera `json:"rearCamera"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, "body must be a JSON object")
			return
		}
		if body.FrontCamera == nil && body.RearCamera == nil {
			fail(c, http.StatusBadRequest, "at least one camera is required")
			return
		}

		report := deps.Stream.ApplyProfileCameras(c.Request.Context(), &roster.Profile{
			FrontCamera: body.FrontCamera,
			RearCamera:  body.RearCamera,
		})
		c.JSON(http.StatusOK, gin.H{"success": report.Success, "steps": report.Steps})
	}
}

func handleMediaMTXStatus(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := deps.Stream.Status()
		c.JSON(http.StatusOK, gin.H{"success": true, "running": st.Running, "pid": st.PID})
	}
}

func handleMediaMTXPaths(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		content, err := deps.Stream.PathsContent()
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "content": content})
	}
}

func handleMediaMTXConfig(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		content, err := deps.Stream.ConfigContent()
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "content": content})
	}
}

func handleMediaMTXLogs(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		logTail, err := deps.Stream.LogTail()
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "log": logTail})
	}
}

func handleMediaMTXRestart(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := deps.Stream.Restart()
		c.JSON(http.StatusOK, gin.H{"success": report.Success, "steps": report.Steps})
	}
}

func handleAuthVerify(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, "body must be a JSON object")
			return
		}
		passkey, ok := body["passkey"].(string)
		if !ok || passkey == "" {
			fail(c, http.StatusBadRequest, "passkey must be a non-empty string")
			return
		}

		ok, method := deps.Auth.Verify(passkey)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"success": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "method": method})
	}
}

func handleUpgradeStart(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := deps.Upgrade.Start(c.Request.Context()); err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "upgrade started"})
	}
}

func handleUpgradeStatus(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := deps.Upgrade.Status(c.Request.Context())
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "status": st})
	}
}
