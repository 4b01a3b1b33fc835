package launcher

import "os"

// Flag is a browser command line switch. An empty Value is a bare switch.
type Flag struct {
	Name  string
	Value string
}

// LaunchFlags are passed to every browser process. They hide the automation
// indicators and keep rendering artifacts off disk.
func LaunchFlags() []Flag {
	return []Flag{
		{Name: "disable-blink-features", Value: "AutomationControlled"},
		{Name: "disable-infobars"},
		{Name: "no-first-run"},
		{Name: "no-default-browser-check"},
		{Name: "webrtc-ip-handling-policy", Value: "disable_non_proxied_udp"},
		{Name: "disk-cache-dir", Value: os.DevNull},
		{Name: "disk-cache-size", Value: "1"},
		{Name: "disable-application-cache"},
		{Name: "disable-gpu-shader-disk-cache"},
		{Name: "ignore-gpu-blocklist"},
		{Name: "enable-webgl"},
		{Name: "disable-background-timer-throttling"},
		{Name: "disable-renderer-backgrounding"},
	}
}
