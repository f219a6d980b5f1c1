package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/filtering"
	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/postings"
)

const (
	PromptShowResults         = "Show results"
	PromptReportByCompanies   = "Report by companies"
	PromptPostingsToFile      = "Dump postings to file"
	PromptAppendToExcludeFile = "Append all to exclude file"
	PromptExit                = "Exit"

	userActor = "user"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "Procced?",
	Items: []string{PromptShowResults, PromptReportByCompanies, PromptPostingsToFile, PromptAppendToExcludeFile, PromptExit},
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank the configured job postings by how well the candidate's skills match",
	Run: func(cmd *cobra.Command, _ []string) {
		rank(cmd)
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().BoolP("auto-aprove", "y", false, "do not ask what to do with ranked postings, just show them")
	rankCmd.Flags().StringP("exclude-file", "e", "", "special file with postings to exclude. Default is unset.")
	rankCmd.Flags().Int("top", 0, "keep only the N best postings")

	viper.BindPFlag("ranking.exclude-file", rankCmd.Flags().Lookup("exclude-file"))
	viper.BindPFlag("ranking.top", rankCmd.Flags().Lookup("top"))
}

// rank is the batch command: every posting is matched and ranked.
func rank(cmd *cobra.Command) {
	ctx := context.Background()

	baseLogger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		baseLogger.Fatal("getting a config", zap.Error(err))
	}

	runID := uuid.New()
	logger := logger.WithRun(baseLogger, runID.String())

	logger.Info("starting the skillmatch", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	items, err := config.loadPostings()
	if err != nil {
		logger.Fatal("loading postings", zap.Error(err))
	}

	if items.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no postings configured"))
		return
	}

	logger.Info("getting postings", zap.Int("count", items.Len()))

	matcher, closeFn, err := newMatcher(ctx, config, logger)
	if err != nil {
		logger.Fatal("creating the matcher", zap.Error(err))
	}
	defer closeFn()

	deps := filtering.Deps{
		Logger:    logger,
		Matcher:   matcher,
		Candidate: config.candidateSkills(),
		RunID:     runID,
	}

	db, err := openStore(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening the result store", zap.Error(err))
	}
	if db != nil {
		defer db.Close()
		deps.Store = db
	}

	steps := prepareFilters(deps.Candidate)
	ranked, _, err := filtering.Run(ctx, filterConfig(config), deps, steps, items)
	if err != nil {
		logger.Fatal("ranking failed", zap.Error(err))
	}

	for _, status := range filtering.Describe(steps) {
		logger.Debug("filter status",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	if ranked.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no postings left after filters"))
		return
	}

	if cmd.Flag("auto-aprove").Value.String() == "true" {
		showResults(logger, ranked)
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		logger.Info("current list of postings", zap.Int("count", ranked.Len()))

		if err := handleAction(action, logger, config, ranked); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func prepareFilters(candidate []string) []filtering.Filter {
	steps := filtering.Default()
	if len(candidate) == 0 {
		filtering.DisableByName(steps, "skills_match", "candidate has no skills configured")
	}
	return steps
}

func filterConfig(config *Config) *filtering.Config {
	return &filtering.Config{
		Companies:           config.Ranking.ExcludeCompanies,
		ExcludeFile:         config.Ranking.ExcludeFile,
		MinScore:            config.Ranking.MinScore,
		MinRequiredCoverage: config.Ranking.MinRequiredCoverage,
		Concurrency:         config.Ranking.Concurrency,
		Top:                 config.Ranking.Top,
	}
}

func handleAction(action string, logger *zap.Logger, config *Config, ranked *postings.Postings) error {
	switch action {
	case PromptShowResults:
		showResults(logger, ranked)
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	case PromptReportByCompanies:
		pretty, _ := json.MarshalIndent(ranked.ReportByCompany(), "", "  ")
		logger.Info(string(pretty), zap.Int("postings count", ranked.Len()))
		return nil
	case PromptPostingsToFile:
		filename, err := ranked.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptAppendToExcludeFile:
		return appendToExcludeFile(logger, config.Ranking.ExcludeFile, ranked)
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func showResults(logger *zap.Logger, ranked *postings.Postings) {
	for i, p := range ranked.Items {
		fields := []zap.Field{
			zap.Int("rank", i+1),
			zap.String("job_id", p.ID),
			zap.String("company", p.Company.Name),
		}
		if p.Match != nil {
			if p.Match.Error != "" {
				fields = append(fields, zap.String("match_error", p.Match.Error))
			} else {
				fields = append(fields,
					zap.Float64("score", p.Match.Score),
					zap.Float64("required_coverage", p.Match.RequiredCoverage),
					zap.Float64("preferred_coverage", p.Match.PreferredCoverage),
					zap.Strings("missing", p.Match.Missing),
				)
			}
		}
		logger.Info(p.Title, fields...)
	}
}

func appendToExcludeFile(logger *zap.Logger, excludeFile string, ranked *postings.Postings) error {
	excludeFile = strings.TrimSpace(excludeFile)
	if excludeFile == "" {
		logger.Warn("exclude file is not configured", zap.String("hint", "set ranking.exclude-file or --exclude-file"))
		return nil
	}

	excluded, err := postings.LoadExcluded(excludeFile)
	if err != nil {
		return err
	}

	excluded.Append(ranked.ToExcluded(userActor, ""))

	if err = excluded.ToFile(excludeFile); err != nil {
		return err
	}

	logger.Info("appended to exclude file", zap.String("filename", excludeFile))

	ranked.Exclude(postings.PostingIDField, excluded.IDs())
	if ranked.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no postings left"))
		return errExit
	}
	return nil
}
