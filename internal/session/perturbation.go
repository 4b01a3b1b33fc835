// Package session derives the per-launch perturbation values. They are
// random, unrelated to any profile, and never written to disk.
package session

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxSeed is the inclusive upper bound of every numeric seed.
const MaxSeed = 999_999

const (
	suffixLen   = 12
	suffixSpace = 4738381338321616896 // 36^12
)

// Perturbation is the ephemeral randomness of a single launch.
type Perturbation struct {
	SessionID  string    `json:"sessionId"`
	CreatedAt  time.Time `json:"createdAt"`
	CanvasSeed int       `json:"canvasSeed"`
	WebGLSeed  int       `json:"webglSeed"`
	AudioSeed  int       `json:"audioSeed"`
	CanvasHash string    `json:"canvasHash"`
	WebGLHash  string    `json:"webglHash"`
	AudioHash  string    `json:"audioHash"`
}

// Derive returns a fresh perturbation stamped with the current time.
func Derive() Perturbation {
	return DeriveAt(time.Now())
}

// DeriveAt returns a fresh perturbation stamped with now.
func DeriveAt(now time.Time) Perturbation {
	return Perturbation{
		SessionID:  fmt.Sprintf("session-%d-%s", now.UnixMilli(), base36(suffixLen)),
		CreatedAt:  now,
		CanvasSeed: seed(),
		WebGLSeed:  seed(),
		AudioSeed:  seed(),
		CanvasHash: hash128(),
		WebGLHash:  hash128(),
		AudioHash:  hash128(),
	}
}

// Summary is the externally reported view of a perturbation.
type Summary struct {
	SessionID  string `json:"sessionId"`
	CanvasHash string `json:"canvasHash"`
	WebGLHash  string `json:"webglHash"`
	AudioHash  string `json:"audioHash"`
	Resolution string `json:"resolution"`
}

// Summary reports the identifiers of p together with the launch resolution.
func (p Perturbation) Summary(resolution string) Summary {
	return Summary{
		SessionID:  p.SessionID,
		CanvasHash: p.CanvasHash,
		WebGLHash:  p.WebGLHash,
		AudioHash:  p.AudioHash,
		Resolution: resolution,
	}
}

func hash128() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// uniform returns a value in [0, n) without modulo bias.
func uniform(n uint64) uint64 {
	limit := ^uint64(0) - ^uint64(0)%n
	var b [8]byte
	for {
		_, _ = rand.Read(b[:])
		if v := binary.LittleEndian.Uint64(b[:]); v < limit {
			return v % n
		}
	}
}

func seed() int {
	return int(uniform(MaxSeed + 1))
}

func base36(n int) string {
	s := strconv.FormatUint(uniform(suffixSpace), 36)
	return strings.Repeat("0", n-len(s)) + s
}
