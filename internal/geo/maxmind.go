package geo

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/oschwald/geoip2-golang/v2"
)

// MaxMind resolves addresses offline from a GeoLite2/GeoIP2 City database.
type MaxMind struct {
	db *geoip2.Reader
}

// OpenMaxMind opens the City database at path.
func OpenMaxMind(path string) (*MaxMind, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening geoip database %s: %w", path, err)
	}
	return &MaxMind{db: db}, nil
}

func (m *MaxMind) Resolve(_ context.Context, ip string) (*Info, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not an ip address", ErrResolutionFailed, ip)
	}

	record, err := m.db.City(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: looking up %s: %w", ErrResolutionFailed, ip, err)
	}
	if record.Location.TimeZone == "" {
		return nil, fmt.Errorf("%w: %s has no timezone in database", ErrResolutionFailed, ip)
	}

	info := &Info{
		TimezoneID:  record.Location.TimeZone,
		CountryCode: record.Country.ISOCode,
		Locale:      LocaleForCountry(record.Country.ISOCode),
	}
	if record.Location.Latitude != nil && record.Location.Longitude != nil {
		info.Latitude = *record.Location.Latitude
		info.Longitude = *record.Location.Longitude
		info.HasLocation = true
	}
	return info, nil
}

func (m *MaxMind) Close() error {
	return m.db.Close()
}
