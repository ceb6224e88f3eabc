package commands

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"

	"github.com/savoria/savoria/cmd/utils/internal/seeding"
)

// SeedDemo creates a set of demo branches through the platform API.
func SeedDemo(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	logger.Info("Starting demo seeding process...")

	client, err := newClient(config)
	if err != nil {
		return err
	}

	existing, err := client.ListDemoBranches(ctx)
	if err != nil {
		return fmt.Errorf("check existing demo branches: %w", err)
	}
	if len(existing) > 0 {
		logger.Infof("Demo branches already present (%d), skipping", len(existing))
		return nil
	}

	for _, b := range seeding.DemoBranches() {
		id, err := client.CreateBranch(ctx, b)
		if err != nil {
			return fmt.Errorf("create demo branch %s: %w", b.Name, err)
		}
		logger.Infof("Created demo branch %s (%s)", b.Name, id)
	}

	return nil
}

func newClient(config *apt.Config) (*seeding.Client, error) {
	baseURL, _ := config.GetString("services.core.url")
	if baseURL == "" {
		return nil, fmt.Errorf("services.core.url not configured")
	}
	token, _ := config.GetString("api.token")
	return seeding.NewClient(baseURL, token), nil
}
