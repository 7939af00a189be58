package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// AskRequest mirrors the /chat request body.
type AskRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	MeetingID string `json:"meeting_id,omitempty"`
	K         int    `json:"k,omitempty"`
}

// Source is a retrieved chunk backing an answer.
type Source struct {
	Content  string                 `json:"content"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}

// AskResponse is a synthesized answer.
type AskResponse struct {
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources"`
	SessionID string   `json:"session_id"`
}

type streamFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Sources   []Source `json:"sources"`
	SessionID string   `json:"session_id"`
	Error     string   `json:"error"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var (
		req    AskRequest
		stream bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question",
		Long: `Asks a question answered from indexed documents.

Pass --session to continue a conversation; follow-up questions are rewritten
using the session history before retrieval.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			req.Query = strings.Join(args, " ")
			if stream && !outputJSON {
				return runAskStream(api, req, cmd.OutOrStdout())
			}
			return runAsk(api, req, outputJSON, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&req.SessionID, "session", "s", "", "Session ID to continue")
	cmd.Flags().StringVarP(&req.Namespace, "namespace", "n", "", "Namespace to search")
	cmd.Flags().StringVarP(&req.MeetingID, "meeting", "m", "", "Search the namespace of a synced meeting")
	cmd.Flags().IntVarP(&req.K, "top-k", "k", 0, "Number of sources to use")
	cmd.Flags().BoolVar(&stream, "stream", true, "Print the answer as it is generated")

	return cmd
}

func runAsk(api *APIClient, req AskRequest, outputJSON bool, out io.Writer) error {
	resp, err := api.Post("/chat", req)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	var answer AskResponse
	if err := decodeData(resp, &answer); err != nil {
		return err
	}

	if outputJSON {
		return printJSON(out, answer)
	}

	fmt.Fprintln(out, answer.Answer)
	printSources(out, answer.Sources, answer.SessionID)
	return nil
}

func runAskStream(api *APIClient, req AskRequest, out io.Writer) error {
	var (
		sources   []Source
		sessionID string
		wrote     bool
	)

	err := api.PostStream("/chat/stream", req, func(data []byte) error {
		var frame streamFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return fmt.Errorf("failed to parse stream frame: %w", err)
		}
		if frame.Error != "" {
			return errors.New(frame.Error)
		}
		for _, c := range frame.Choices {
			if c.Delta.Content != "" {
				fmt.Fprint(out, c.Delta.Content)
				wrote = true
			}
		}
		if frame.SessionID != "" {
			sources = frame.Sources
			sessionID = frame.SessionID
		}
		return nil
	})
	if wrote {
		fmt.Fprintln(out)
	}
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	printSources(out, sources, sessionID)
	return nil
}

func printSources(out io.Writer, sources []Source, sessionID string) {
	if len(sources) > 0 {
		fmt.Fprintln(out, "\nSources:")
		for i, s := range sources {
			fmt.Fprintf(out, "  %d. %s (%.2f)\n", i+1, sourceName(s), s.Score)
		}
	}
	if sessionID != "" {
		fmt.Fprintf(out, "\nSession: %s\n", sessionID)
	}
}

func sourceName(s Source) string {
	name, _ := s.Metadata["filename"].(string)
	if name == "" {
		return "Document"
	}
	if page, ok := s.Metadata["page_number"].(float64); ok && page > 0 {
		return fmt.Sprintf("%s, page %d", name, int(page))
	}
	return name
}
