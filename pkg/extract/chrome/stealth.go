package chrome

import (
	"fmt"
	"math/rand/v2"

	"github.com/chromedp/chromedp"
)

// The stealth evasions are a fixed configuration table, applied
// unconditionally whenever stealth mode is on. No runtime feature detection:
// the same set of overrides is installed for every session, which keeps the
// extractor's behaviour deterministic apart from the randomised picks below.

// viewports is a small set of common, realistic screen sizes.
var viewports = [][2]int{
	{1366, 768},
	{1280, 720},
	{1024, 768},
}

// userAgents lists recent desktop Chrome user agents across platforms.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
}

// stealthScript is evaluated on every new document before page scripts run.
// It hides the automation markers that converter sites commonly probe.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en']});
Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});
window.chrome = window.chrome || {runtime: {}};
`

// pickViewport returns a random entry from the viewport table.
func pickViewport() (int, int) {
	v := viewports[rand.IntN(len(viewports))]
	return v[0], v[1]
}

// pickUserAgent returns a random entry from the user-agent table.
func pickUserAgent() string {
	return userAgents[rand.IntN(len(userAgents))]
}

// stealthAllocatorOptions returns the launch-flag portion of the evasion
// table: randomised viewport and user agent, automation flags disabled.
func stealthAllocatorOptions() []chromedp.ExecAllocatorOption {
	width, height := pickViewport()
	return []chromedp.ExecAllocatorOption{
		chromedp.UserAgent(pickUserAgent()),
		chromedp.WindowSize(width, height),
		chromedp.Flag("window-size", fmt.Sprintf("%d,%d", width, height)),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-automation", true),
		chromedp.Flag("enable-automation", false),
	}
}
