package commands

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
)

// ClearDemo deletes every branch created by SeedDemo.
func ClearDemo(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	logger.Info("Clearing demo branches...")

	client, err := newClient(config)
	if err != nil {
		return err
	}

	branches, err := client.ListDemoBranches(ctx)
	if err != nil {
		return fmt.Errorf("list demo branches: %w", err)
	}
	if len(branches) == 0 {
		logger.Info("No demo branches found")
		return nil
	}

	for _, b := range branches {
		if err := client.DeleteBranch(ctx, b.ID); err != nil {
			return fmt.Errorf("delete demo branch %s: %w", b.Name, err)
		}
		logger.Infof("Deleted demo branch %s (%s)", b.Name, b.ID)
	}

	return nil
}
