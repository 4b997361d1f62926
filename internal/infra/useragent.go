package infra

import (
	"fmt"
	"runtime"
	"sync"
)

var (
	uaMu             sync.RWMutex
	currentUserAgent = GetPlatformUserAgent()
)

// GetUserAgent returns the current active User-Agent string. Thread-safe.
func GetUserAgent() string {
	uaMu.RLock()
	defer uaMu.RUnlock()
	return currentUserAgent
}

// SetUserAgent updates the global User-Agent string. Thread-safe.
func SetUserAgent(ua string) {
	uaMu.Lock()
	defer uaMu.Unlock()
	currentUserAgent = ua
}

// GetPlatformUserAgent generates a browser-like User-Agent string for the
// current OS. Some venues reject default Go client strings.
func GetPlatformUserAgent() string {
	chromeVer := "120.0.0.0"

	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", chromeVer)
	case "linux":
		linuxArch := "x86_64"
		if runtime.GOARCH == "arm64" {
			linuxArch = "aarch64"
		}
		return fmt.Sprintf("Mozilla/5.0 (X11; Linux %s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", linuxArch, chromeVer)
	case "darwin":
		return fmt.Sprintf("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", chromeVer)
	default:
		return "Mozilla/5.0 (compatible; GridBot/1.0)"
	}
}
