package main

import (
	"encoding/json"
	"strconv"

	"github.com/spf13/cobra"

	"alfredoptarigan/hr-agent/internal/apperr"
	"alfredoptarigan/hr-agent/internal/services"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <job-id>",
	Short: "Run the retrieval and scoring pipeline for a job and print the top candidates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil || jobID == 0 {
			return apperr.Validation("invalid job id %q", args[0])
		}

		topK, _ := cmd.Flags().GetInt("top-k")
		reuse, _ := cmd.Flags().GetBool("reuse")

		c, err := bootstrap()
		if err != nil {
			return err
		}
		defer c.Log.Sync()

		rag := c.RAG
		if reuse {
			rag = services.NewRAGService(
				c.JobRepo,
				c.CandidateRepo,
				c.Embedder,
				c.Index,
				c.Evaluator,
				services.ReuseExisting,
				c.Config.Worker.EvalConcurrency,
				c.Log,
			)
		}

		report, err := rag.Evaluate(cmd.Context(), uint(jobID), topK)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report.Response())
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().Int("top-k", services.DefaultRetrievalTopK, "number of candidates retrieved before scoring (max 50)")
	evaluateCmd.Flags().Bool("reuse", false, "reuse stored evaluations instead of re-scoring")
}
