package cmd

import (
	"errors"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/catalog"
	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/skills"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the skill catalog",
}

var catalogCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load and validate the skill catalog",
	Run: func(_ *cobra.Command, _ []string) {
		checkCatalog()
	},
}

func init() {
	catalogCmd.AddCommand(catalogCheckCmd)
	rootCmd.AddCommand(catalogCmd)
}

func checkCatalog() {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	path := viper.GetString("catalog-file")
	source := path
	if source == "" {
		source = "built-in"
	}

	cat, err := catalog.Load(path)
	if err != nil {
		var cfgErr *skills.ConfigurationError
		if errors.As(err, &cfgErr) {
			logger.Fatal("ambiguous skill catalog",
				zap.String("catalog", source),
				zap.String("phrase", cfgErr.Phrase),
				zap.Strings("canonicals", cfgErr.Canonicals),
				zap.String("reason", cfgErr.Reason),
			)
		}
		logger.Fatal("loading skill catalog", zap.String("catalog", source), zap.Error(err))
	}

	canonicals, variants, classified, high := cat.Stats()
	logger.Info("skill catalog is valid",
		zap.String("catalog", source),
		zap.Int("canonical_skills", canonicals),
		zap.Int("variants", variants),
		zap.Int("classified_skills", classified),
		zap.Int("high_priority_skills", high),
	)
}
