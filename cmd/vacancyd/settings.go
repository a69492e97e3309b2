package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"vacancy_insight/internal/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the polling settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current polling settings",
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update the polling settings; only the given flags change",
	RunE:  runSettingsSet,
}

var settingsOpts struct {
	enabled        bool
	title          string
	location       string
	minSalary      float64
	maxSalary      float64
	limit          int
	area           int
	onlyWithSalary bool
}

func init() {
	f := settingsSetCmd.Flags()
	f.BoolVar(&settingsOpts.enabled, "enabled", true, "run polling cycles")
	f.StringVar(&settingsOpts.title, "title", "", "search text, empty to clear")
	f.StringVar(&settingsOpts.location, "location", "", "location filter, empty to clear")
	f.Float64Var(&settingsOpts.minSalary, "min-salary", 0, "minimum salary")
	f.Float64Var(&settingsOpts.maxSalary, "max-salary", 0, "maximum salary")
	f.IntVar(&settingsOpts.limit, "limit", domain.DefaultPollLimit, "vacancies per cycle (1-200)")
	f.IntVar(&settingsOpts.area, "area", domain.DefaultPollArea, "hh.ru area id")
	f.BoolVar(&settingsOpts.onlyWithSalary, "only-with-salary", false, "skip postings without salary")

	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	store, release, err := openSettings(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer release()

	current, err := store.Load(cmd.Context())
	if err != nil {
		return err
	}
	return printSettings(cmd, current)
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	store, release, err := openSettings(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer release()

	current, err := store.Load(cmd.Context())
	if err != nil {
		return err
	}

	applySettingsFlags(cmd, &current)

	if err := store.Save(cmd.Context(), current); err != nil {
		logger.Error("failed to save settings", "error", err)
		return err
	}
	return printSettings(cmd, current)
}

func applySettingsFlags(cmd *cobra.Command, s *domain.PollingSettings) {
	f := cmd.Flags()
	if f.Changed("enabled") {
		s.Enabled = settingsOpts.enabled
	}
	if f.Changed("title") {
		s.Title = optionalString(settingsOpts.title)
	}
	if f.Changed("location") {
		s.Location = optionalString(settingsOpts.location)
	}
	if f.Changed("min-salary") {
		v := settingsOpts.minSalary
		s.MinSalary = &v
	}
	if f.Changed("max-salary") {
		v := settingsOpts.maxSalary
		s.MaxSalary = &v
	}
	if f.Changed("limit") {
		s.Limit = settingsOpts.limit
	}
	if f.Changed("area") {
		s.Area = settingsOpts.area
	}
	if f.Changed("only-with-salary") {
		s.OnlyWithSalary = settingsOpts.onlyWithSalary
	}
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func printSettings(cmd *cobra.Command, s domain.PollingSettings) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
