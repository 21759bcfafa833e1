package tools

import (
	"context"
	"fmt"
	"time"
)

// Tool script names, resolved inside the Runner's tools directory.
const (
	scriptDiscover  = "discover"
	scriptPair      = "pair"
	scriptScanCam   = "scan_cam"
	scriptDroneConf = "drone_conf"
)

const pairTimeout = 120 * time.Second

// Discover runs the network discovery tool. Its stdout is a JSON array of
// {ip, mac, drone_id, method, target_ip} descriptors.
func (r *Runner) Discover(ctx context.Context) Result {
	return r.Run(ctx, scriptDiscover, nil, RunOpts{ExtractJSON: true})
}

// Pair runs the pairing tool against a discovered drone. Pairing can
// involve radio handshakes, hence the long timeout. Success is taken from
// a parsed {result: bool} payload when the tool prints one, otherwise
// from the exit code.
func (r *Runner) Pair(ctx context.Context, ip string, droneID int64) (bool, Result) {
	res := r.Run(ctx, scriptPair, []string{ip, fmt.Sprint(droneID)}, RunOpts{
		Timeout:     pairTimeout,
		ExtractJSON: true,
	})

	paired := res.Success
	if obj, ok := res.Parsed.(map[string]any); ok {
		if v, ok := obj["result"].(bool); ok {
			paired = v
		}
	}
	return paired, res
}

// ScanCameras runs the camera scan tool against a drone's IP. Its stdout
// is a JSON array of camera descriptors.
func (r *Runner) ScanCameras(ctx context.Context, ip string) Result {
	return r.Run(ctx, scriptScanCam, []string{ip}, RunOpts{ExtractJSON: true})
}

// DroneConf runs the drone reconfiguration tool (IP move plus CRSF
// channel assignment).
func (r *Runner) DroneConf(ctx context.Context, oldIP, newIP, crsf1, crsf2 string) Result {
	return r.Run(ctx, scriptDroneConf, []string{oldIP, newIP, crsf1, crsf2}, RunOpts{})
}
