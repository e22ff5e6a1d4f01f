package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"siksha/internal/api"
)

// lessonFlags identify a lesson by its inputs or by folder.
type lessonFlags struct {
	topic     string
	audience  string
	interests []string
	folder    string
	jsonOut   bool
}

func (f *lessonFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.topic, "topic", "t", "", "Lesson topic (or pass it as the first argument)")
	cmd.Flags().StringVarP(&f.audience, "audience", "a", "", "Audience level (elementary, middle school, high school, college, adult)")
	cmd.Flags().StringSliceVarP(&f.interests, "interests", "i", nil, "Learner interests used to personalize examples")
	cmd.Flags().StringVar(&f.folder, "folder", "", "Address an existing lesson folder directly")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "Output as JSON")
}

func (f *lessonFlags) request(args []string) (api.LessonRequest, error) {
	topic := strings.TrimSpace(f.topic)
	if topic == "" && len(args) > 0 {
		topic = strings.TrimSpace(strings.Join(args, " "))
	}
	req := api.LessonRequest{
		Topic:     topic,
		Audience:  strings.TrimSpace(f.audience),
		Interests: f.interests,
		Folder:    strings.TrimSpace(f.folder),
	}
	if req.Topic == "" && req.Folder == "" {
		return req, errors.New("a topic or --folder is required")
	}
	return req, nil
}

func newLessonCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newGenerateCommand(ctx, false),
		newGenerateCommand(ctx, true),
		newProgressCommand(ctx),
		newStatusCommand(ctx),
		newCancelCommand(ctx),
	}
}

func newGenerateCommand(ctx *commandContext, regenerate bool) *cobra.Command {
	var flags lessonFlags
	var wait bool
	var interval time.Duration

	use, short := "generate [topic]", "Start generating a lesson video on the daemon"
	if regenerate {
		use, short = "regenerate [topic]", "Delete a lesson's generated files and generate it again"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(args)
			if err != nil {
				return err
			}
			if req.Topic == "" {
				return errors.New("a topic is required to generate")
			}
			return ctx.withClient(func(client *api.Client) error {
				submit := client.Generate
				if regenerate {
					submit = client.Regenerate
				}
				resp, err := submit(cmd.Context(), req)
				out := cmd.OutOrStdout()
				var folder string
				switch {
				case api.IsConflict(err):
					var statusErr *api.StatusError
					errors.As(err, &statusErr)
					folder = statusErr.Folder
					if flags.jsonOut && !wait {
						return writeJSON(cmd, api.ErrorResponse{
							Error:     statusErr.Message,
							Status:    "processing",
							Folder:    statusErr.Folder,
							RequestID: statusErr.RequestID,
						})
					}
					fmt.Fprintf(out, "Lesson %s is already being generated (request %s)\n", statusErr.Folder, statusErr.RequestID)
				case err != nil:
					return err
				default:
					folder = resp.Folder
					if flags.jsonOut && !wait {
						return writeJSON(cmd, resp)
					}
					fmt.Fprintf(out, "%s: %s (request %s)\n", resp.Message, resp.Folder, resp.RequestID)
					if len(resp.Removed) > 0 {
						fmt.Fprintf(out, "Removed: %s\n", strings.Join(resp.Removed, ", "))
					}
				}
				if !wait {
					return nil
				}
				final, err := waitForLesson(cmd.Context(), client, api.LessonRequest{Folder: folder}, interval, out)
				if err != nil {
					return err
				}
				if flags.jsonOut {
					return writeJSON(cmd, final)
				}
				return terminalError(final)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Follow progress until the run finishes")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval used with --wait")
	return cmd
}

func newProgressCommand(ctx *commandContext) *cobra.Command {
	var flags lessonFlags
	cmd := &cobra.Command{
		Use:   "progress [topic]",
		Short: "Show the progress record of a lesson",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Progress(cmd.Context(), req)
				if err != nil {
					return err
				}
				if flags.jsonOut {
					return writeJSON(cmd, status)
				}
				renderProgress(cmd.OutOrStdout(), *status)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var flags lessonFlags
	cmd := &cobra.Command{
		Use:   "status [topic]",
		Short: "Report whether a lesson's final video exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context(), req)
				if err != nil {
					return err
				}
				if flags.jsonOut {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Folder: %s\n", status.Folder)
				fmt.Fprintf(out, "Status: %s\n", status.Status)
				if status.VideoURL != "" {
					fmt.Fprintf(out, "Video:  %s\n", status.VideoURL)
					fmt.Fprintf(out, "Recent: %s\n", yesNo(status.IsRecent))
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	var flags lessonFlags
	cmd := &cobra.Command{
		Use:   "cancel [topic]",
		Short: "Cancel a lesson that is being generated",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Cancel(cmd.Context(), req)
				if api.IsNotFound(err) {
					fmt.Fprintln(cmd.OutOrStdout(), "No active run for that lesson")
					return nil
				}
				if err != nil {
					return err
				}
				if flags.jsonOut {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %s\n", resp.Folder)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// waitForLesson polls until the lesson reaches a terminal state, printing a
// line whenever the progress record changes.
func waitForLesson(ctx context.Context, client *api.Client, req api.LessonRequest, interval time.Duration, out io.Writer) (api.ProgressStatus, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last string
	for {
		status, err := client.Progress(ctx, req)
		if err != nil {
			return api.ProgressStatus{}, err
		}
		line := progressLine(*status)
		if line != last {
			fmt.Fprintln(out, line)
			last = line
		}
		if terminalStatus(status.Status) {
			return *status, nil
		}
		select {
		case <-ctx.Done():
			return *status, ctx.Err()
		case <-ticker.C:
		}
	}
}

func terminalStatus(status string) bool {
	switch status {
	case "completed", "error", "cancelled":
		return true
	}
	return false
}

func terminalError(status api.ProgressStatus) error {
	switch status.Status {
	case "error":
		return fmt.Errorf("generation failed: %s", strings.TrimPrefix(status.Message, "Error: "))
	case "cancelled":
		return errors.New("generation cancelled")
	}
	return nil
}

func progressLine(status api.ProgressStatus) string {
	line := fmt.Sprintf("[%3d%%] %s", status.Progress, status.Message)
	if status.Substep != "" {
		line += " (" + status.Substep + ")"
	}
	if status.VideoURL != "" {
		line += " " + status.VideoURL
	}
	return line
}

func renderProgress(out io.Writer, status api.ProgressStatus) {
	fmt.Fprintf(out, "Status:   %s\n", status.Status)
	fmt.Fprintf(out, "Progress: %d%% (step %d of 6)\n", status.Progress, status.Step)
	fmt.Fprintf(out, "Message:  %s\n", status.Message)
	if status.Substep != "" {
		fmt.Fprintf(out, "Substep:  %s\n", status.Substep)
	}
	if status.ErrorKind != "" {
		fmt.Fprintf(out, "Error:    %s\n", status.ErrorKind)
	}
	if status.VideoURL != "" {
		fmt.Fprintf(out, "Video:    %s\n", status.VideoURL)
	}
	if status.RequestID != "" {
		fmt.Fprintf(out, "Request:  %s\n", status.RequestID)
	}
}
