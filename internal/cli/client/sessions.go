package client

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// SessionInfo summarizes a live session.
type SessionInfo struct {
	ID           string    `json:"session_id"`
	MessageCount int       `json:"message_count"`
	LastActive   time.Time `json:"last_active"`
}

// SessionPage is one page of sessions.
type SessionPage struct {
	Items   []SessionInfo `json:"items"`
	Cursor  string        `json:"cursor,omitempty"`
	HasMore bool          `json:"has_more"`
}

// Message is one remembered conversation turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResponse is a session's remembered messages.
type HistoryResponse struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
	Count     int       `json:"count"`
}

// ClearResponse reports whether a session was forgotten.
type ClearResponse struct {
	SessionID string `json:"session_id"`
	Cleared   bool   `json:"cleared"`
}

// SessionsCmd creates the sessions parent command.
func SessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect conversation sessions",
	}

	cmd.AddCommand(sessionsListCmd())
	cmd.AddCommand(sessionsShowCmd())
	cmd.AddCommand(sessionsClearCmd())

	return cmd
}

func sessionsListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List live sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runSessionsList(api, limit, cursor, outputJSON, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of sessions")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func sessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runSessionsShow(api, args[0], outputJSON, cmd.OutOrStdout())
		},
	}
}

func sessionsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <session-id>",
		Short: "Forget a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runSessionsClear(api, args[0], outputJSON, cmd.OutOrStdout())
		},
	}
}

func runSessionsList(api *APIClient, limit int, cursor string, outputJSON bool, out io.Writer) error {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	path := "/chat/sessions"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	var page SessionPage
	if err := decodeData(resp, &page); err != nil {
		return err
	}

	if outputJSON {
		return printJSON(out, page)
	}

	if len(page.Items) == 0 {
		fmt.Fprintln(out, "No sessions.")
		return nil
	}
	for _, s := range page.Items {
		fmt.Fprintf(out, "%s  %3d messages  last active %s\n",
			s.ID, s.MessageCount, s.LastActive.Local().Format(time.DateTime))
	}
	if page.HasMore && page.Cursor != "" {
		fmt.Fprintf(out, "\nMore sessions available. Use --cursor %s\n", page.Cursor)
	}
	return nil
}

func runSessionsShow(api *APIClient, sessionID string, outputJSON bool, out io.Writer) error {
	resp, err := api.Get("/chat/history/" + url.PathEscape(sessionID))
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	var history HistoryResponse
	if err := decodeData(resp, &history); err != nil {
		return err
	}

	if outputJSON {
		return printJSON(out, history)
	}

	if history.Count == 0 {
		fmt.Fprintf(out, "Session %s has no history.\n", sessionID)
		return nil
	}
	for _, m := range history.Messages {
		fmt.Fprintf(out, "[%s] %s\n\n", m.Role, m.Content)
	}
	return nil
}

func runSessionsClear(api *APIClient, sessionID string, outputJSON bool, out io.Writer) error {
	resp, err := api.Delete("/chat/history/" + url.PathEscape(sessionID))
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	var result ClearResponse
	if err := decodeData(resp, &result); err != nil {
		return err
	}

	if outputJSON {
		return printJSON(out, result)
	}

	if result.Cleared {
		fmt.Fprintf(out, "Cleared session %s\n", sessionID)
	} else {
		fmt.Fprintf(out, "Session %s not found\n", sessionID)
	}
	return nil
}
