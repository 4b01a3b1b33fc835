package geo

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultEndpoint is the public ip-api.com JSON endpoint.
const DefaultEndpoint = "http://ip-api.com"

type ipAPIResponse struct {
	Status      string   `json:"status"`
	Message     string   `json:"message"`
	CountryCode string   `json:"countryCode"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	Timezone    string   `json:"timezone"`
}

// IPAPI resolves addresses through an ip-api.com compatible service.
type IPAPI struct {
	client *resty.Client
}

// NewIPAPI returns a resolver querying endpoint with the given timeout.
func NewIPAPI(endpoint string, timeout time.Duration) *IPAPI {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &IPAPI{
		client: resty.New().
			SetBaseURL(endpoint).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

func (a *IPAPI) Resolve(ctx context.Context, ip string) (*Info, error) {
	var out ipAPIResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetResult(&out).
		SetPathParam("ip", ip).
		Get("/json/{ip}")
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %w", ErrResolutionFailed, ip, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s answered %s", ErrResolutionFailed, ip, resp.Status())
	}
	if out.Status != "success" {
		return nil, fmt.Errorf("%w: %s: status %q %s", ErrResolutionFailed, ip, out.Status, out.Message)
	}
	if out.Timezone == "" {
		return nil, fmt.Errorf("%w: %s: response has no timezone", ErrResolutionFailed, ip)
	}

	info := &Info{
		TimezoneID:  out.Timezone,
		CountryCode: out.CountryCode,
		Locale:      LocaleForCountry(out.CountryCode),
	}
	if out.Lat != nil && out.Lon != nil {
		info.Latitude, info.Longitude = *out.Lat, *out.Lon
		info.HasLocation = true
	}
	return info, nil
}
