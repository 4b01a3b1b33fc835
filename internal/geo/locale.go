package geo

import (
	"strings"

	"golang.org/x/text/language"
)

// LocaleForCountry returns the most likely locale tag for an ISO 3166 country
// code, e.g. "VN" gives "vi-VN". It returns "" for unknown codes.
func LocaleForCountry(code string) string {
	region, err := language.ParseRegion(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil || !region.IsCountry() {
		return ""
	}
	tag, err := language.Compose(region)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String() + "-" + region.String()
}
