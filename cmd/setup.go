package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/songmigrate/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file from the template when missing, the
// credential and report directories, and migrates the database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
		r.writePlain("✓ Created %s\n", configPath)

		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if err := config.ApplyEnv(); err != nil {
			return err
		}
		r.config = config
	}

	for _, dir := range []string{
		r.config.Credentials.Spotify.TokensDir,
		r.config.Credentials.YouTube.HeadersDir,
		r.config.Reports.Dir,
	} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		r.logger.Debug("directory ready", "path", dir)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	runs, err := r.openRuns()
	if err != nil {
		return err
	}

	version, err := shared.MigrationVersion(runs.DB())
	if err != nil {
		return err
	}

	r.writePlain("✓ Database %s at migration %d\n", r.config.Database.Path, version)
	r.writePlainln("Next steps:")
	r.writePlain("1. Save a Spotify token as %s/<session>.json\n", r.config.Credentials.Spotify.TokensDir)
	r.writePlain("2. Save YouTube Music headers as %s/headers<session>.json\n", r.config.Credentials.YouTube.HeadersDir)
	r.writePlain("3. Run 'songmigrate playlists --session <session>'\n")
	return nil
}
