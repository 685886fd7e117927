package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	pf := cmd.PersistentFlags()
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	pf.BoolP("quiet", "q", false, "Suppress all output except errors")
	pf.Bool("json", false, "Emit logs as JSON")
	pf.StringSlice("proxy", nil, "Proxy for plain fetches, repeatable (e.g., http://localhost:8080)")
	pf.Duration("proxy-cooldown", DefaultProxyCooldown, "How long a failed proxy is skipped")
	pf.Duration("timeout", DefaultOperationTimeout, "Overall timeout for one operation")
	pf.String("user-agent", "", "Custom user agent string")
	pf.StringSlice("strategies", DefaultStrategies, "Acquisition ladder, cheapest first")
	pf.Duration("delay", DefaultPageDelay, "Delay between listing pages")
	pf.Int("retries", DefaultRetryAttempts, "Attempts per plain fetch")
	pf.Float64("rate-limit", DefaultRateLimitRPS, "Requests per second per site")
	pf.Bool("headless", DefaultBrowserHeadless, "Run the browser headless")
	pf.String("chrome-path", "", "Chrome/Chromium executable")
	pf.String("sites", "", "YAML file with extra site definitions")
	pf.Bool("cache-fallback", false, "Serve a cached copy when every strategy fails")
	pf.Int("min-body", DefaultMinBodyLength, "Smallest response body accepted as a real page")
	pf.StringSlice("block-signature", nil, "Extra block page text to detect, repeatable")
	pf.Int("workers", DefaultDownloadWorkers, "Concurrent image downloads")
}
