package main

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kgops/internal/app"
	"github.com/OFFIS-RIT/kgops/pkg/finetune"

	"github.com/spf13/cobra"
)

var (
	collectMinQuality float64
	collectMaxSamples int
	collectNegatives  bool
	collectDays       int

	submitModelName    string
	submitBaseModel    string
	submitEpochs       int
	submitLearningRate float64
	submitBatchSize    int
	submitSplit        float64
)

var collectCmd = &cobra.Command{
	Use:   "collect <userId>",
	Short: "Write a training corpus from recorded interactions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			tc := a.Training.Defaults()
			flags := cmd.Flags()
			if flags.Changed("min-quality") {
				tc.MinQualityScore = collectMinQuality
			}
			if flags.Changed("max-samples") {
				tc.MaxSamples = collectMaxSamples
			}
			if flags.Changed("negatives") {
				tc.IncludeNegativeExamples = collectNegatives
			}
			if flags.Changed("days") {
				tc.TimeRangeDays = collectDays
			}
			res, err := a.Training.Collect(ctx, args[0], tc)
			if err != nil {
				return err
			}
			printCollection(cmd.OutOrStdout(), res)
			return nil
		})
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Submit and track fine-tuning jobs",
}

var trainSubmitCmd = &cobra.Command{
	Use:   "submit <userId> <trainingPath>",
	Short: "Submit a fine-tuning job for a collected corpus",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			req := finetune.SubmitRequest{
				UserID:          args[0],
				TrainingPath:    args[1],
				ModelName:       submitModelName,
				BaseModel:       submitBaseModel,
				Epochs:          submitEpochs,
				LearningRate:    submitLearningRate,
				BatchSize:       submitBatchSize,
				ValidationSplit: submitSplit,
			}
			if req.BaseModel == "" {
				req.BaseModel = a.Config.AI.FineTuneBaseModel
			}
			if req.ValidationSplit == 0 {
				req.ValidationSplit = a.Config.Training.ValidationSplit
			}
			job, err := a.FineTune.Submit(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted %s (%s): %d training, %d validation examples\n",
				job.ID, job.Status, job.TrainingSize, job.ValidationSize)
			return nil
		})
	},
}

var trainStatusCmd = &cobra.Command{
	Use:   "status <jobId>",
	Short: "Show the provider status of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			st, err := a.FineTune.Status(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s", st.JobID, st.Status)
			if st.FineTunedModel != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " -> %s", st.FineTunedModel)
			}
			if st.Error != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " (%s)", st.Error)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		})
	},
}

var trainJobsCmd = &cobra.Command{
	Use:   "jobs <userId>",
	Short: "List a user's jobs as the provider reports them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			jobs, err := a.FineTune.ListJobs(ctx, args[0])
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
			}
			for _, j := range jobs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-12s %s %s\n", j.JobID, j.Status, j.CreatedAt.Format("2006-01-02 15:04"), j.FineTunedModel)
			}
			return nil
		})
	},
}

var trainRefreshCmd = &cobra.Command{
	Use:   "refresh <userId>",
	Short: "Record the provider's current status of a user's jobs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			n, err := a.FineTune.Refresh(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %d job records\n", n)
			return nil
		})
	},
}

var trainEvaluateCmd = &cobra.Command{
	Use:   "evaluate <userId> <modelId>",
	Short: "Score a fine-tuned model on the user's held-out interactions",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			ev, err := a.FineTune.Evaluate(ctx, args[1], args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s on %d samples: accuracy %.1f%%, confidence %.2f\n",
				ev.ModelID, ev.TestSamples, ev.Metrics.Accuracy*100, ev.Metrics.AverageConfidence)
			return nil
		})
	},
}

var trainPipelineCmd = &cobra.Command{
	Use:   "pipeline <userId>",
	Short: "Collect and submit when enough good interactions exist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			res, err := a.FineTune.RunPipeline(ctx, args[0], a.PipelineConfig())
			if err != nil {
				return err
			}
			printPipeline(cmd.OutOrStdout(), res)
			return nil
		})
	},
}

func init() {
	collectCmd.Flags().Float64Var(&collectMinQuality, "min-quality", 0.7, "Minimum quality score of a positive example")
	collectCmd.Flags().IntVar(&collectMaxSamples, "max-samples", 1000, "Maximum number of examples")
	collectCmd.Flags().BoolVar(&collectNegatives, "negatives", false, "Include low-scoring examples")
	collectCmd.Flags().IntVar(&collectDays, "days", 30, "Days of interactions to consider")

	trainSubmitCmd.Flags().StringVar(&submitModelName, "name", "", "Model name suffix")
	trainSubmitCmd.Flags().StringVar(&submitBaseModel, "base-model", "", "Base model (defaults to the configured one)")
	trainSubmitCmd.Flags().IntVar(&submitEpochs, "epochs", 0, "Training epochs (provider default when 0)")
	trainSubmitCmd.Flags().Float64Var(&submitLearningRate, "learning-rate", 0, "Learning rate multiplier (provider default when 0)")
	trainSubmitCmd.Flags().IntVar(&submitBatchSize, "batch-size", 0, "Batch size (provider default when 0)")
	trainSubmitCmd.Flags().Float64Var(&submitSplit, "validation-split", 0, "Share of the corpus held out for validation")

	trainCmd.AddCommand(trainSubmitCmd, trainStatusCmd, trainJobsCmd, trainRefreshCmd, trainEvaluateCmd, trainPipelineCmd)
}
