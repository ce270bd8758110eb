// cmd/chaos/main.go
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"libraryinventory/internal/chaos"
	"libraryinventory/internal/clients"
)

func main() {
	catalogServiceURL := os.Getenv("CATALOG_SERVICE_URL")
	if catalogServiceURL == "" {
		catalogServiceURL = "http://localhost:8081"
	}

	engine := chaos.NewEngine(50 * time.Millisecond)
	engine.RegisterDefaults(clients.NewCatalogClient(catalogServiceURL))

	gameDay := chaos.GameDay{
		Name:      "Inventory Chaos Game Day",
		Date:      time.Now(),
		Scenarios: engine.Experiments(),
		Pause:     time.Second,
	}

	failed, err := engine.RunGameDay(context.Background(), gameDay)
	if err != nil {
		log.Fatal().Err(err).Msg("chaos game day failed")
	}
	if failed > 0 {
		log.Error().Int("failed", failed).Msg("hypotheses violated")
		os.Exit(1)
	}
}
