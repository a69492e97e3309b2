package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"vacancy_insight/internal/domain"
)

var ingestOpts struct {
	query          string
	limit          int
	area           int
	onlyWithSalary bool
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch one search from hh.ru and store new vacancies",
	Long:  "One-shot ingest: fetches full postings for the query, stores unseen ones and prints the counts as JSON.",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestOpts.query, "query", "q", "", "search text")
	ingestCmd.Flags().IntVarP(&ingestOpts.limit, "limit", "n", domain.DefaultPollLimit, "maximum number of vacancies to fetch")
	ingestCmd.Flags().IntVar(&ingestOpts.area, "area", domain.DefaultPollArea, "hh.ru area id")
	ingestCmd.Flags().BoolVar(&ingestOpts.onlyWithSalary, "only-with-salary", false, "skip postings without salary")
	_ = ingestCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestOpts.limit < 1 || ingestOpts.limit > domain.MaxPollLimit {
		return &domain.ValidationError{Field: "limit", Reason: "must be between 1 and 200"}
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

	area := ingestOpts.area
	result, err := a.ingest.IngestFromQuery(cmd.Context(), domain.SearchQuery{
		Text:           ingestOpts.query,
		Limit:          ingestOpts.limit,
		Area:           &area,
		OnlyWithSalary: ingestOpts.onlyWithSalary,
	})
	if err != nil {
		logger.Error("ingest failed", "error", err)
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
