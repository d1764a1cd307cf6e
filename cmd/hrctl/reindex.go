package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"alfredoptarigan/hr-agent/internal/app"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Embed candidate resumes into the vector index",
	Long: `Re-embeds candidate resumes and upserts them into the configured vector index.
The previous vector of every re-indexed candidate is deleted.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		jobID, _ := cmd.Flags().GetUint("job")
		onlyMissing, _ := cmd.Flags().GetBool("only-missing")

		c, err := bootstrap()
		if err != nil {
			return err
		}
		defer c.Log.Sync()

		return reindex(cmd, c, jobID, onlyMissing)
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)

	reindexCmd.Flags().Uint("job", 0, "only re-index candidates of this job (default all jobs)")
	reindexCmd.Flags().Bool("only-missing", false, "skip candidates that already have a vector")
}

func reindex(cmd *cobra.Command, c *app.Container, jobID uint, onlyMissing bool) error {
	ctx := cmd.Context()

	var jobIDs []uint
	if jobID != 0 {
		if _, err := c.JobRepo.FindByID(jobID); err != nil {
			return err
		}
		jobIDs = []uint{jobID}
	} else {
		jobs, err := c.JobRepo.List()
		if err != nil {
			return err
		}
		for _, job := range jobs {
			jobIDs = append(jobIDs, job.ID)
		}
	}

	successCount, failCount, skipCount := 0, 0, 0

	for _, id := range jobIDs {
		candidates, err := c.CandidateRepo.FindByJob(id)
		if err != nil {
			return err
		}

		c.Log.Info("📄 Re-indexing job", zap.Uint("job_id", id), zap.Int("candidates", len(candidates)))

		for i := range candidates {
			candidate := &candidates[i]
			if onlyMissing && candidate.VectorID != nil {
				skipCount++
				continue
			}
			if candidate.ResumeText == "" {
				skipCount++
				continue
			}

			if _, err := c.Indexer.IndexCandidate(ctx, candidate); err != nil {
				c.Log.Error("❌ failed to index candidate", zap.Uint("candidate_id", candidate.ID), zap.Error(err))
				failCount++
				continue
			}
			successCount++
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "indexed: %d, failed: %d, skipped: %d\n", successCount, failCount, skipCount)
	if failCount > 0 {
		return fmt.Errorf("%d candidates failed to index", failCount)
	}
	return nil
}
