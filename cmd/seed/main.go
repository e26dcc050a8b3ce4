// Command seed generates a deterministic demo dataset of transaction
// contexts and writes it as JSON for the server's seed loader.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"sentinel/risk-api/internal/domain"
)

var cities = []struct {
	lat, lng float64
}{
	{40.7128, -74.0060},  // New York
	{34.0522, -118.2437}, // Los Angeles
	{51.5074, -0.1278},   // London
	{48.8566, 2.3522},    // Paris
	{35.6762, 139.6503},  // Tokyo
	{43.6532, -79.3832},  // Toronto
	{-33.8688, 151.2093}, // Sydney
	{19.4326, -99.1332},  // Mexico City
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
}

func main() {
	var (
		out   = flag.String("out", "data/seed.json", "output file")
		count = flag.Int("count", 50, "number of transaction contexts to generate")
		seed  = flag.Int64("seed", 42, "random seed")
	)
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	contexts := make([]domain.TransactionContext, 0, *count)
	base := time.Now().UTC().Add(-24 * time.Hour)

	for i := 0; i < *count; i++ {
		contexts = append(contexts, randomContext(rng, i, base))
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		slog.Error("cannot create output directory", "error", err)
		os.Exit(1)
	}
	data, err := json.MarshalIndent(contexts, "", "  ")
	if err != nil {
		slog.Error("marshal failed", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		slog.Error("write failed", "error", err)
		os.Exit(1)
	}

	slog.Info("seed file written", "file", *out, "contexts", *count)
}

func randomContext(rng *rand.Rand, i int, base time.Time) domain.TransactionContext {
	city := cities[rng.Intn(len(cities))]
	customer := fmt.Sprintf("cust_%03d", rng.Intn(15))

	tc := domain.TransactionContext{
		Amount:     float64(rng.Intn(50000)+100) / 100,
		Currency:   "USD",
		CustomerID: customer,
		MerchantID: fmt.Sprintf("mer_demo_%d", rng.Intn(3)),
		Timestamp:  base.Add(time.Duration(i) * 20 * time.Minute),
		DeviceFingerprint: &domain.DeviceFingerprint{
			UserAgent:        userAgents[rng.Intn(len(userAgents))],
			ScreenResolution: "1920x1080",
			Timezone:         "America/New_York",
			Language:         "en-US",
			Platform:         "Win32",
			Plugins:          []string{"PDF Viewer", "Chrome PDF Viewer"},
			Languages:        []string{"en-US", "en"},
		},
		LocationData: &domain.LocationData{
			Latitude:  city.lat + rng.Float64()*0.1 - 0.05,
			Longitude: city.lng + rng.Float64()*0.1 - 0.05,
			Accuracy:  float64(rng.Intn(100) + 5),
		},
		BehaviorData: &domain.BehaviorData{
			Clicks:           rng.Intn(30) + 5,
			Keystrokes:       rng.Intn(80) + 10,
			Scrolls:          rng.Intn(20) + 1,
			MouseMovements:   rng.Intn(400) + 50,
			SessionDuration:  float64(rng.Intn(240000) + 30000),
			ActionsPerMinute: float64(rng.Intn(35) + 8),
		},
		NetworkData: &domain.NetworkData{
			EffectiveType: "4g",
			Downlink:      float64(rng.Intn(90)+10) / 10,
			RTT:           float64(rng.Intn(150) + 20),
		},
	}

	// A small fraction of the dataset carries fraud signals so the demo
	// dashboard has something to show.
	switch {
	case i%17 == 0:
		tc.DeviceFingerprint.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) HeadlessChrome/119.0.0.0"
		tc.DeviceFingerprint.WebDriver = true
		tc.BehaviorData = &domain.BehaviorData{SessionDuration: 900}
	case i%11 == 0:
		tc.Amount = float64((rng.Intn(40) + 10) * 100) // large round number
		tc.Timestamp = tc.Timestamp.Truncate(24 * time.Hour).Add(3 * time.Hour)
	}

	return tc
}
