package client

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// SearchRequest represents the search API request.
type SearchRequest struct {
	Query     string `json:"query"`
	Namespace string `json:"namespace,omitempty"`
	MeetingID string `json:"meeting_id,omitempty"`
	K         int    `json:"k,omitempty"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Query     string   `json:"query"`
	Namespace string   `json:"namespace"`
	Results   []Source `json:"results"`
	Count     int      `json:"count"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var req SearchRequest

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed documents",
		Long:  "Runs the retrieval pipeline and prints the ranked chunks without generating an answer.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			req.Query = strings.Join(args, " ")
			return runSearch(api, req, outputJSON, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&req.Namespace, "namespace", "n", "", "Namespace to search")
	cmd.Flags().StringVarP(&req.MeetingID, "meeting", "m", "", "Search the namespace of a synced meeting")
	cmd.Flags().IntVarP(&req.K, "top-k", "k", 0, "Maximum number of results")

	return cmd
}

func runSearch(api *APIClient, req SearchRequest, outputJSON bool, out io.Writer) error {
	resp, err := api.Post("/search", req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var searchResp SearchResponse
	if err := decodeData(resp, &searchResp); err != nil {
		return err
	}

	if outputJSON {
		return printJSON(out, searchResp)
	}

	if len(searchResp.Results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}

	fmt.Fprintf(out, "Found %d results in %s:\n\n", searchResp.Count, searchResp.Namespace)
	for i, result := range searchResp.Results {
		fmt.Fprintf(out, "%d. %s (%.2f)\n", i+1, sourceName(result), result.Score)
		// Truncate content to 200 chars
		content := strings.Join(strings.Fields(result.Content), " ")
		if runes := []rune(content); len(runes) > 200 {
			content = string(runes[:197]) + "..."
		}
		if content != "" {
			fmt.Fprintf(out, "   %s\n", content)
		}
		if i < len(searchResp.Results)-1 {
			fmt.Fprintln(out, strings.Repeat("-", 40))
		}
	}

	return nil
}
