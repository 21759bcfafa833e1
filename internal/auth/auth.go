// Package auth gates privileged operations behind a two-factor passkey
// scheme: a compiled-in master digest, or a rolling one-time code placed
// on a volatile filesystem by the host.
package auth

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"os"
	"strings"

	"go.uber.org/zap"
)

// MasterDigest is the MD5 hex digest of the master passkey. Overridable
// at build time via -ldflags "-X .../internal/auth.MasterDigest=...".
var MasterDigest = "969db0859b0bb7ba866b4da0768d6607"

// Method identifies which factor accepted a passkey.
type Method string

const (
	// MethodMaster means the MD5 digest matched the compiled-in master.
	MethodMaster Method = "master"
	// MethodOTP means the passkey matched the one-time code file.
	MethodOTP Method = "otp"
)

// Gate verifies submitted passkeys.
type Gate struct {
	otpPath string
	log     *zap.Logger
}

// NewGate creates a Gate reading one-time codes from otpPath.
func NewGate(otpPath string, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{otpPath: otpPath, log: log}
}

// Verify checks a passkey against the master digest, then the OTP file.
// Either match is acceptance. A missing OTP file is not an error: the
// OTP path is simply unavailable. Empty passkeys never match.
func (g *Gate) Verify(passkey string) (bool, Method) {
	if passkey == "" {
		return false, ""
	}

	sum := md5.Sum([]byte(passkey))
	digest := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(digest), []byte(strings.ToLower(MasterDigest))) == 1 {
		return true, MethodMaster
	}

	data, err := os.ReadFile(g.otpPath)
	if err != nil {
		return false, ""
	}
	otp := strings.TrimSpace(string(data))
	if otp != "" && strings.TrimSpace(passkey) == otp {
		return true, MethodOTP
	}
	return false, ""
}
