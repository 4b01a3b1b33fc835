package fingerprint

import "math/rand/v2"

type weighted[T any] struct {
	value  T
	weight int
}

// pick draws one value from a weighted pool.
func pick[T any](r *rand.Rand, pool []weighted[T]) T {
	total := 0
	for _, w := range pool {
		total += w.weight
	}
	n := r.IntN(total)
	for _, w := range pool {
		if n < w.weight {
			return w.value
		}
		n -= w.weight
	}
	return pool[len(pool)-1].value
}

// All sampled identities are Windows desktop Chrome: navigator.platform is
// always Win32 and the locale family is always English.
const windowsPlatform = "Win32"

var chromeVersionPool = []weighted[string]{
	{"131.0.0.0", 10},
	{"132.0.0.0", 15},
	{"133.0.0.0", 25},
	{"134.0.0.0", 30},
	{"135.0.0.0", 20},
}

var hardwarePool = []weighted[string]{
	{"uhd620", 10},
	{"uhd630", 14},
	{"uhd770", 8},
	{"irisxe", 12},
	{"gtx1050ti", 4},
	{"gtx1060", 6},
	{"gtx1650", 9},
	{"gtx1660", 6},
	{"rtx2060", 5},
	{"rtx3060", 9},
	{"rtx3070", 4},
	{"rtx3080", 2},
	{"rtx4060", 4},
	{"rx580", 3},
	{"rx6600", 2},
	{"radeonvega", 2},
}

var screenPool = []weighted[[2]int]{
	{[2]int{1920, 1080}, 40},
	{[2]int{1366, 768}, 18},
	{[2]int{1536, 864}, 14},
	{[2]int{2560, 1440}, 10},
	{[2]int{1440, 900}, 7},
	{[2]int{1600, 900}, 6},
	{[2]int{1680, 1050}, 5},
}

type localePreset struct {
	languages  []string
	timezoneID string
}

var localePool = []weighted[localePreset]{
	{localePreset{[]string{"en-US", "en"}, "America/New_York"}, 30},
	{localePreset{[]string{"en-US", "en"}, "America/Chicago"}, 18},
	{localePreset{[]string{"en-US", "en"}, "America/Denver"}, 7},
	{localePreset{[]string{"en-US", "en"}, "America/Los_Angeles"}, 20},
	{localePreset{[]string{"en-GB", "en"}, "Europe/London"}, 15},
	{localePreset{[]string{"en-CA", "en"}, "America/Toronto"}, 5},
	{localePreset{[]string{"en-AU", "en"}, "Australia/Sydney"}, 5},
}

// navigator.deviceMemory never reports more than 8.
var deviceMemoryPool = []weighted[int]{
	{2, 5},
	{4, 25},
	{8, 70},
}

// DeviceMemoryBucket rounds n GiB down to a value navigator.deviceMemory can
// report: a power of two between 1 and 8.
func DeviceMemoryBucket(n int) int {
	b := 1
	for b < 8 && b*2 <= n {
		b *= 2
	}
	return b
}

var concurrencyPool = []weighted[int]{
	{4, 20},
	{6, 10},
	{8, 35},
	{12, 15},
	{16, 15},
	{24, 5},
}
