package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/glowpath/internal/config"
	"github.com/sells-group/glowpath/internal/crime"
)

var crimeImportFile string

var crimeCmd = &cobra.Command{
	Use:   "crime",
	Short: "Manage the local crime incident store",
}

var crimeImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load incidents into the configured incident store",
	Long:  "Reads a YAML incident file and upserts it into the postgres or sqlite store selected by crime.provider. Rows are keyed by (source, external_id), so re-importing a file is idempotent.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		f, err := os.Open(crimeImportFile)
		if err != nil {
			return eris.Wrapf(err, "open %s", crimeImportFile)
		}
		defer f.Close() //nolint:errcheck

		incidents, err := readIncidents(f)
		if err != nil {
			return err
		}

		n, err := importIncidents(ctx, cfg, incidents)
		if err != nil {
			return err
		}

		zap.L().Info("incidents imported",
			zap.String("file", crimeImportFile),
			zap.String("store", cfg.Crime.Provider),
			zap.Int64("rows", n),
		)
		return writeOutput(cmd.OutOrStdout(), outputFormat, map[string]any{
			"store":    cfg.Crime.Provider,
			"imported": n,
		})
	},
}

type incidentFile struct {
	Incidents []crime.Incident `yaml:"incidents"`
}

// readIncidents decodes an incident file. JSON input is accepted as a YAML
// subset.
func readIncidents(r io.Reader) ([]crime.Incident, error) {
	var file incidentFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, eris.New("incident file is empty")
		}
		return nil, eris.Wrap(err, "decode incident file")
	}
	if len(file.Incidents) == 0 {
		return nil, eris.New("incident file has no incidents")
	}
	return file.Incidents, nil
}

type incidentImporter interface {
	Import(ctx context.Context, incidents []crime.Incident) (int64, error)
}

func importIncidents(ctx context.Context, cfg *config.Config, incidents []crime.Incident) (int64, error) {
	var store incidentImporter
	switch cfg.Crime.Provider {
	case "postgres":
		pg, pool, err := openPostgresStore(ctx, cfg)
		if err != nil {
			return 0, err
		}
		defer pool.Close()
		store = pg
	default:
		lite, err := openSQLiteStore(ctx, cfg)
		if err != nil {
			return 0, err
		}
		defer lite.Close() //nolint:errcheck
		store = lite
	}
	return store.Import(ctx, incidents)
}

func init() {
	crimeImportCmd.Flags().StringVar(&crimeImportFile, "file", "", "YAML incident file (required)")
	_ = crimeImportCmd.MarkFlagRequired("file")
	crimeCmd.AddCommand(crimeImportCmd)
	rootCmd.AddCommand(crimeCmd)
}
