package client

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// IngestRequest mirrors the /ingest/web request body.
type IngestRequest struct {
	URL       string `json:"url"`
	Namespace string `json:"namespace,omitempty"`
}

// IngestResponse reports what was stored for a page.
type IngestResponse struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Namespace   string `json:"namespace"`
	DocumentKey string `json:"document_key"`
	ChunkCount  int    `json:"chunks"`
}

// ParseResponse is the extracted text of an uploaded file.
type ParseResponse struct {
	Filename   string `json:"filename"`
	Format     string `json:"format"`
	MimeType   string `json:"mime_type"`
	Text       string `json:"text"`
	Characters int    `json:"characters"`
}

// IngestCmd creates the ingest command.
func IngestCmd() *cobra.Command {
	var req IngestRequest

	cmd := &cobra.Command{
		Use:   "ingest <url>",
		Short: "Index a web page",
		Long:  "Fetches a page, extracts its readable text and indexes it. Re-ingesting a URL replaces its chunks.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			req.URL = args[0]
			return runIngest(api, req, outputJSON, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&req.Namespace, "namespace", "n", "", "Namespace to write to (default web:<host>)")

	return cmd
}

func runIngest(api *APIClient, req IngestRequest, outputJSON bool, out io.Writer) error {
	resp, err := api.Post("/ingest/web", req)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	var result IngestResponse
	if err := decodeData(resp, &result); err != nil {
		return err
	}

	if outputJSON {
		return printJSON(out, result)
	}

	fmt.Fprintf(out, "Indexed %q as %d chunks in %s\n", result.Title, result.ChunkCount, result.Namespace)
	return nil
}

// ParseCmd creates the parse command.
func ParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Extract text from a file",
		Long:  "Uploads a document and prints the text the server extracts from it. Nothing is indexed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runParse(api, args[0], outputJSON, cmd.OutOrStdout())
		},
	}

	return cmd
}

func runParse(api *APIClient, path string, outputJSON bool, out io.Writer) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	resp, err := api.PostFile("/parse", filepath.Base(path), file)
	if err != nil {
		return fmt.Errorf("parse failed: %w", err)
	}

	var result ParseResponse
	if err := decodeData(resp, &result); err != nil {
		return err
	}

	if outputJSON {
		return printJSON(out, result)
	}

	fmt.Fprintln(out, result.Text)
	return nil
}
