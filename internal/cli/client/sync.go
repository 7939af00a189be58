package client

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// DriveSyncRequest mirrors the /drive/sync request body.
type DriveSyncRequest struct {
	FolderID    string `json:"folder_id"`
	AccessToken string `json:"access_token,omitempty"`
	TargetID    string `json:"target_id,omitempty"`
	MeetingID   string `json:"meeting_id,omitempty"`
	Namespace   string `json:"namespace,omitempty"`
}

// S3SyncRequest mirrors the /s3/sync request body.
type S3SyncRequest struct {
	Prefix    string `json:"prefix"`
	TargetID  string `json:"target_id,omitempty"`
	MeetingID string `json:"meeting_id,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

// SyncError is a document that failed to sync.
type SyncError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// SyncSummary is the server's report of one sync run.
type SyncSummary struct {
	Success          bool        `json:"success"`
	SyncedCount      int         `json:"syncedCount"`
	SkippedCount     int         `json:"skippedCount"`
	UnsupportedCount int         `json:"unsupportedCount"`
	TotalFiles       int         `json:"totalFiles"`
	Namespace        string      `json:"namespace"`
	Errors           []SyncError `json:"errors,omitempty"`
}

// SyncCmd creates the sync parent command.
func SyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync a folder into the index",
		Long:  "Reconciles a Drive folder or S3 prefix with the index. Unchanged files are skipped.",
	}

	cmd.AddCommand(syncDriveCmd())
	cmd.AddCommand(syncS3Cmd())

	return cmd
}

func syncDriveCmd() *cobra.Command {
	var req DriveSyncRequest

	cmd := &cobra.Command{
		Use:   "drive <folder-id>",
		Short: "Sync a Google Drive folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			req.FolderID = args[0]
			return runSync(api, "/drive/sync", req, outputJSON, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&req.AccessToken, "token", "", "OAuth access token (default: server credentials)")
	addSyncTargetFlags(cmd, &req.TargetID, &req.MeetingID, &req.Namespace)

	return cmd
}

func syncS3Cmd() *cobra.Command {
	var req S3SyncRequest

	cmd := &cobra.Command{
		Use:   "s3 [prefix]",
		Short: "Sync an S3 key prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				req.Prefix = args[0]
			}
			return runSync(api, "/s3/sync", req, outputJSON, cmd.OutOrStdout())
		},
	}

	addSyncTargetFlags(cmd, &req.TargetID, &req.MeetingID, &req.Namespace)

	return cmd
}

func addSyncTargetFlags(cmd *cobra.Command, targetID, meetingID, namespace *string) {
	cmd.Flags().StringVarP(targetID, "target", "t", "", "Target ID recorded on every chunk")
	cmd.Flags().StringVarP(meetingID, "meeting", "m", "", "Meeting ID; also names the namespace")
	cmd.Flags().StringVarP(namespace, "namespace", "n", "", "Namespace to write to")
}

func runSync(api *APIClient, path string, req interface{}, outputJSON bool, out io.Writer) error {
	resp, err := api.Post(path, req)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	var summary SyncSummary
	if err := decodeData(resp, &summary); err != nil {
		return err
	}

	if outputJSON {
		return printJSON(out, summary)
	}

	fmt.Fprintf(out, "Synced %d of %d files into %s\n", summary.SyncedCount, summary.TotalFiles, summary.Namespace)
	fmt.Fprintf(out, "  unchanged:   %d\n", summary.SkippedCount)
	fmt.Fprintf(out, "  unsupported: %d\n", summary.UnsupportedCount)
	if len(summary.Errors) > 0 {
		fmt.Fprintf(out, "  failed:      %d\n", len(summary.Errors))
		for _, e := range summary.Errors {
			fmt.Fprintf(out, "    %s: %s\n", e.File, e.Error)
		}
	}

	return nil
}
