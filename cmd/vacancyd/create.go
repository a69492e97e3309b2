package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"vacancy_insight/internal/domain"
)

var createFile string

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a vacancy from a JSON document",
	Long:  "Reads a vacancy with explicit company, experience, work format, schedule and skill ids, validates every reference and stores it.",
	RunE:  runCreate,
}

func init() {
	createCmd.Flags().StringVarP(&createFile, "file", "f", "-", "JSON file with the vacancy, - for stdin")
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	spec, err := readSpec(cmd.InOrStdin(), createFile)
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return err
	}
	defer a.Close()

	vacancy, err := a.ingest.Create(cmd.Context(), spec)
	if err != nil {
		logger.Error("create failed", "kind", errorKind(err), "error", err)
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(vacancy)
}

func readSpec(stdin io.Reader, path string) (domain.VacancySpec, error) {
	var spec domain.VacancySpec

	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return spec, fmt.Errorf("open vacancy file: %w", err)
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(&spec); err != nil {
		return spec, fmt.Errorf("decode vacancy: %w", err)
	}
	return spec, nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrDatabase):
		return "database"
	default:
		return "internal"
	}
}
