// Package geo resolves an IP address to the timezone, coordinates and locale
// a browser behind that address should present.
package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrResolutionFailed is returned when no geo data could be obtained for an
// address. Callers treat it as "no override available".
var ErrResolutionFailed = errors.New("geo resolution failed")

// Info is the geo data crossing into a launch. Latitude and Longitude are
// meaningful only when HasLocation is set.
type Info struct {
	TimezoneID  string  `json:"timezoneId"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	HasLocation bool    `json:"hasLocation"`
	CountryCode string  `json:"countryCode"`
	Locale      string  `json:"locale"`
}

// Resolver looks up geo data for an IP address.
type Resolver interface {
	Resolve(ctx context.Context, ip string) (*Info, error)
}

// Chain tries each resolver in order and returns the first success.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, ip string) (*Info, error) {
	var errs []error
	for _, r := range c {
		info, err := r.Resolve(ctx, ip)
		if err == nil {
			return info, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no resolver configured", ErrResolutionFailed)
	}
	return nil, errors.Join(errs...)
}

// Lookup resolves ip and swallows failures: a nil result means the caller
// keeps its baseline values.
func Lookup(ctx context.Context, r Resolver, ip string) *Info {
	if r == nil || ip == "" {
		return nil
	}
	info, err := r.Resolve(ctx, ip)
	if err != nil {
		slog.WarnContext(ctx, "geo lookup failed, keeping baseline values", "ip", ip, "error", err)
		return nil
	}
	slog.DebugContext(ctx, "geo resolved", "ip", ip, "timezone", info.TimezoneID, "country", info.CountryCode)
	return info
}
