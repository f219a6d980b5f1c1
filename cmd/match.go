package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/postings"
	"github.com/spigell/skillmatch/internal/schemas"
	"github.com/spigell/skillmatch/internal/skills"
)

const (
	outputText = "text"
	outputJSON = "json"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match the candidate's skills against a single job",
	Run: func(cmd *cobra.Command, _ []string) {
		match(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("job", "", "id of the configured job to match against")
	matchCmd.Flags().String("request", "", "a JSON match request file")
	matchCmd.Flags().String("candidate", "", "comma separated candidate skills (overrides candidate.skills)")
	matchCmd.Flags().String("required", "", "comma separated required job skills")
	matchCmd.Flags().String("preferred", "", "comma separated preferred job skills")
	matchCmd.Flags().StringP("output", "o", outputText, "output format: text or json")
}

// matchInput holds the three skill lists of a single run.
type matchInput struct {
	ID        string
	Candidate []string
	Required  []string
	Preferred []string
}

func match(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	format, _ := cmd.Flags().GetString("output")
	if format != outputText && format != outputJSON {
		logger.Fatal("unsupported output format", zap.String("output", format))
	}

	input, err := resolveMatchInput(cmd, config)
	if err != nil {
		logger.Fatal("resolving match input", zap.Error(err))
	}

	matcher, closeFn, err := newMatcher(ctx, config, logger)
	if err != nil {
		logger.Fatal("creating the matcher", zap.Error(err))
	}
	defer closeFn()

	logger.Info("starting the skillmatch", zap.String("version", version), zap.String("job_id", input.ID))

	result, err := matcher.MatchSkills(ctx, input.Candidate, input.Required, input.Preferred)
	if err != nil {
		logger.Fatal("matching skills", zap.Error(err))
	}

	if err := writeResult(os.Stdout, format, result); err != nil {
		logger.Fatal("writing result", zap.Error(err))
	}
}

func resolveMatchInput(cmd *cobra.Command, config *Config) (*matchInput, error) {
	flag := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return strings.TrimSpace(v)
	}

	if path := flag("request"); path != "" {
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading request: %w", err)
		}
		req, err := schemas.ParseRequest(body)
		if err != nil {
			return nil, err
		}
		return &matchInput{ID: req.ID, Candidate: req.CandidateSkills, Required: req.RequiredSkills, Preferred: req.PreferredSkills}, nil
	}

	input := &matchInput{Candidate: config.candidateSkills()}
	if v := flag("candidate"); v != "" {
		input.Candidate = postings.ParseSkills(v)
	}

	if flag("required") != "" || flag("preferred") != "" {
		input.Required = postings.ParseSkills(flag("required"))
		input.Preferred = postings.ParseSkills(flag("preferred"))
		return input, nil
	}

	jobs, err := config.loadPostings()
	if err != nil {
		return nil, fmt.Errorf("loading jobs: %w", err)
	}

	posting, err := selectPosting(jobs, flag("job"), promptPosting)
	if err != nil {
		return nil, err
	}

	input.ID = posting.ID
	input.Required = posting.RequiredSkills
	input.Preferred = posting.PreferredSkills
	return input, nil
}

// selectPosting picks the job by id, the only job, or asks through choose.
func selectPosting(jobs *postings.Postings, id string, choose func(*postings.Postings) (int, error)) (*postings.Posting, error) {
	if jobs.Len() == 0 {
		return nil, errors.New("no jobs configured: use --required/--preferred, --request, jobs or jobs-file")
	}

	if id != "" {
		posting := jobs.FindByID(id)
		if posting == nil {
			return nil, fmt.Errorf("there is no such job id %s (known: %s)", id, strings.Join(jobs.IDs(), ", "))
		}
		return posting, nil
	}

	if jobs.Len() == 1 {
		return jobs.Items[0], nil
	}

	idx, err := choose(jobs)
	if err != nil {
		return nil, err
	}
	return jobs.Items[idx], nil
}

func promptPosting(jobs *postings.Postings) (int, error) {
	jobPrompt := promptui.Select{
		Label: "Choose a job and press ENTER",
		Items: jobs.Titles(),
	}
	idx, _, err := jobPrompt.Run()
	return idx, err
}

func writeResult(w io.Writer, format string, result *skills.Result) error {
	if format == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Overall match score: %.0f%%\n", result.OverallScore*100)
	fmt.Fprintf(&b, "Required skills covered: %.0f%%\n", result.RequiredCoverage*100)
	fmt.Fprintf(&b, "Preferred skills covered: %.0f%%\n", result.PreferredCoverage*100)

	if pairs := result.MatchedPairs(); len(pairs) > 0 {
		b.WriteString("\nMatches:\n")
		for _, m := range pairs {
			kind := "preferred"
			if m.Required {
				kind = "required"
			}
			fmt.Fprintf(&b, "  %s ~ %s (similarity %.2f, confidence %.2f, %s)\n", m.CandidateSkill, m.JobSkill, m.Similarity, m.Confidence, kind)
		}
	}

	if len(result.Gaps) > 0 {
		b.WriteString("\nMissing skills:\n")
		for _, g := range result.Gaps {
			fmt.Fprintf(&b, "  - %s: %s difficulty, %s, %s priority", g.MissingSkill, g.Difficulty, g.EstimatedTime, g.Priority)
			if len(g.SimilarSkills) > 0 {
				fmt.Fprintf(&b, "; similar: %s", strings.Join(g.SimilarSkills, ", "))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\nRecommendations:\n")
	for _, r := range result.LearningRecommendations {
		fmt.Fprintf(&b, "  - %s\n", r)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
