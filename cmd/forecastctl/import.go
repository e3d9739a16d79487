package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/andresuchdata/autopo-py/depletion/internal/config"
	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/andresuchdata/autopo-py/depletion/internal/drive"
	"github.com/andresuchdata/autopo-py/depletion/pkg/logger"
	"github.com/urfave/cli/v2"
)

func importCommand() *cli.Command {
	noArchive := &cli.BoolFlag{
		Name:  "no-archive",
		Usage: "Do not copy imported files to object storage",
	}

	return &cli.Command{
		Name:  "import",
		Usage: "Import forecast upload files",
		Subcommands: []*cli.Command{
			{
				Name:      "file",
				Usage:     "Import local CSV or XLSX files in the given order",
				ArgsUsage: "<path>...",
				Flags:     []cli.Flag{noArchive},
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return fmt.Errorf("at least one file is required")
					}
					return importPaths(c, c.Args().Slice())
				},
			},
			{
				Name:      "dir",
				Usage:     "Import every CSV or XLSX file of a directory in name order",
				ArgsUsage: "[dir]",
				Flags:     []cli.Flag{noArchive},
				Action: func(c *cli.Context) error {
					dir := c.Args().First()
					if dir == "" {
						dir = config.Load().App.UploadDir
					}
					entries, err := os.ReadDir(dir)
					if err != nil {
						return fmt.Errorf("failed to read %s: %w", dir, err)
					}
					var paths []string
					for _, e := range entries {
						if !e.IsDir() && drive.SupportedFile(e.Name()) {
							paths = append(paths, filepath.Join(dir, e.Name()))
						}
					}
					sort.Strings(paths)
					return importPaths(c, paths)
				},
			},
			{
				Name:      "object",
				Usage:     "Re-import an archived upload from object storage",
				ArgsUsage: "<key>",
				Action: func(c *cli.Context) error {
					key := c.Args().First()
					if key == "" {
						return fmt.Errorf("object key is required")
					}
					a, err := newApp(c)
					if err != nil {
						return err
					}
					result, err := a.uploads.ImportObject(c.Context, key)
					if err != nil {
						return err
					}
					printImportResult(key, result)
					return nil
				},
			},
			{
				Name:  "drive",
				Usage: "Import every forecast file of a Google Drive folder",
				Flags: []cli.Flag{
					noArchive,
					&cli.StringFlag{
						Name:  "folder",
						Usage: "Drive folder id (defaults to FORECAST_DRIVE_FOLDER_ID)",
					},
				},
				Action: func(c *cli.Context) error {
					cfg := config.Load()
					if cfg.Drive.CredentialsJSON == "" {
						return fmt.Errorf("drive credentials are not configured")
					}
					folderID := c.String("folder")
					if folderID == "" {
						folderID = cfg.Drive.FolderID
					}

					a, err := newApp(c)
					if err != nil {
						return err
					}
					driveService, err := drive.NewService(c.Context, cfg.Drive.CredentialsJSON)
					if err != nil {
						return err
					}

					results, err := drive.NewForecastSource(driveService, a.uploads).ImportFolder(c.Context, folderID)
					for _, result := range results {
						printImportResult(folderID, result)
					}
					return err
				},
			},
		},
	}
}

func importPaths(c *cli.Context, paths []string) error {
	a, err := newApp(c)
	if err != nil {
		return err
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		result, err := a.uploads.ImportFile(c.Context, filepath.Base(path), data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		printImportResult(path, result)
	}
	return nil
}

func printImportResult(source string, result *domain.ImportResult) {
	logger.Log.Info().
		Str("source", source).
		Str("batch_id", result.BatchID).
		Int("rows", result.Rows).
		Int("products", result.Products).
		Int("accepted", result.Accepted).
		Int("replaced", result.Replaced).
		Int("dropped", result.Dropped).
		Int("rejected", len(result.Errors)).
		Msg("Imported forecast file")

	for _, rowErr := range result.Errors {
		fmt.Fprintf(os.Stderr, "  row %d: %s: %s\n", rowErr.Row, rowErr.Field, rowErr.Message)
	}
}
