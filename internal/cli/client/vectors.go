package client

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
)

// IndexStats describes the vector index.
type IndexStats struct {
	Dimension        int              `json:"dimension"`
	TotalRecordCount int64            `json:"totalRecordCount"`
	Namespaces       map[string]int64 `json:"namespaces"`
}

// DeleteVectorsRequest mirrors the /vectors/delete request body.
type DeleteVectorsRequest struct {
	Namespace  string   `json:"namespace"`
	IDs        []string `json:"ids,omitempty"`
	DocumentID string   `json:"document_id,omitempty"`
}

// DeleteVectorsResponse reports a delete.
type DeleteVectorsResponse struct {
	Namespace    string `json:"namespace"`
	DeletedCount int    `json:"deleted_count,omitempty"`
	DocumentID   string `json:"document_id,omitempty"`
}

// VectorsCmd creates the vectors parent command.
func VectorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vectors",
		Short: "Inspect and prune the vector index",
	}

	cmd.AddCommand(vectorsStatsCmd())
	cmd.AddCommand(vectorsDeleteCmd())

	return cmd
}

func vectorsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show record counts per namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runVectorsStats(api, outputJSON, cmd.OutOrStdout())
		},
	}
}

func vectorsDeleteCmd() *cobra.Command {
	var req DeleteVectorsRequest

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete records by id or by document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(req.IDs) == 0 && req.DocumentID == "" {
				return fmt.Errorf("one of --ids or --document is required")
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runVectorsDelete(api, req, outputJSON, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&req.Namespace, "namespace", "n", "", "Namespace to delete from (required)")
	cmd.Flags().StringSliceVar(&req.IDs, "ids", nil, "Record IDs to delete")
	cmd.Flags().StringVar(&req.DocumentID, "document", "", "Delete every chunk of this document ID")
	_ = cmd.MarkFlagRequired("namespace")

	return cmd
}

func runVectorsStats(api *APIClient, outputJSON bool, out io.Writer) error {
	resp, err := api.Get("/vectors/stats")
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	var stats IndexStats
	if err := decodeData(resp, &stats); err != nil {
		return err
	}

	if outputJSON {
		return printJSON(out, stats)
	}

	fmt.Fprintf(out, "Dimension: %d\n", stats.Dimension)
	fmt.Fprintf(out, "Records:   %d\n", stats.TotalRecordCount)

	names := make([]string, 0, len(stats.Namespaces))
	for name := range stats.Namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-30s %d\n", name, stats.Namespaces[name])
	}
	return nil
}

func runVectorsDelete(api *APIClient, req DeleteVectorsRequest, outputJSON bool, out io.Writer) error {
	resp, err := api.Post("/vectors/delete", req)
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}

	var result DeleteVectorsResponse
	if err := decodeData(resp, &result); err != nil {
		return err
	}

	if outputJSON {
		return printJSON(out, result)
	}

	if result.DocumentID != "" {
		fmt.Fprintf(out, "Deleted chunks of %s from %s\n", result.DocumentID, result.Namespace)
	}
	if result.DeletedCount > 0 {
		fmt.Fprintf(out, "Deleted %d records from %s\n", result.DeletedCount, result.Namespace)
	}
	return nil
}
