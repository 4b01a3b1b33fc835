// Package proxy models named proxy bindings and keeps their cached geo data
// in step with their server address.
package proxy

import (
	"errors"

	"github.com/stupside/facet/internal/geo"
)

var (
	ErrNotFound = errors.New("proxy not found")
	ErrExists   = errors.New("proxy already exists")
)

// Binding is a named proxy endpoint. The geo fields are derived from the
// server's IP when the binding is added or its server changes.
type Binding struct {
	Name        string   `json:"name" validate:"required"`
	Server      string   `json:"server" validate:"required"`
	Username    string   `json:"username,omitempty"`
	Password    string   `json:"password,omitempty"`
	TimezoneID  string   `json:"timezoneId,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	CountryCode string   `json:"countryCode,omitempty"`
	Locale      string   `json:"locale,omitempty"`
}

// HasCredentials reports whether the proxy requires authentication.
func (b Binding) HasCredentials() bool {
	return b.Username != ""
}

// Geo returns the cached geo data, or nil when none was resolved.
func (b Binding) Geo() *geo.Info {
	if b.TimezoneID == "" && b.Latitude == nil && b.Locale == "" {
		return nil
	}
	info := &geo.Info{
		TimezoneID:  b.TimezoneID,
		CountryCode: b.CountryCode,
		Locale:      b.Locale,
	}
	if b.Latitude != nil && b.Longitude != nil {
		info.Latitude = *b.Latitude
		info.Longitude = *b.Longitude
		info.HasLocation = true
	}
	return info
}

func (b *Binding) setGeo(info *geo.Info) {
	b.clearGeo()
	if info == nil {
		return
	}
	b.TimezoneID = info.TimezoneID
	if info.HasLocation {
		lat, lon := info.Latitude, info.Longitude
		b.Latitude = &lat
		b.Longitude = &lon
	}
	b.CountryCode = info.CountryCode
	b.Locale = info.Locale
}

func (b *Binding) clearGeo() {
	b.TimezoneID = ""
	b.Latitude = nil
	b.Longitude = nil
	b.CountryCode = ""
	b.Locale = ""
}
