package cli

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// sentinelImage — image_b64, на который стадии отвечают фиксированным результатом.
const sentinelImage = "test"

// NewTaskCmd создаёт группу команд для работы с задачами оценивания.
func NewTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Submit and inspect evaluation tasks",
	}

	cmd.AddCommand(
		newTaskSubmitCmd(clientFn, outputFn),
		newTaskStatusCmd(clientFn, outputFn),
		newTaskWatchCmd(clientFn, outputFn),
		newTaskListCmd(clientFn, outputFn),
		newTaskAuditCmd(clientFn, outputFn),
	)

	return cmd
}

func newTaskSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var examID, rubric, rubricFile, imagePath, question string
	var sentinel, wait bool
	var interval, timeout time.Duration

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an answer image for evaluation",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := EvaluateRequest{
				ExamID:         examID,
				RubricText:     rubric,
				TargetQuestion: question,
			}

			if rubricFile != "" {
				data, err := os.ReadFile(rubricFile)
				if err != nil {
					return fmt.Errorf("read rubric: %w", err)
				}
				req.RubricText = string(data)
			}

			switch {
			case sentinel:
				req.ImageB64 = sentinelImage
			case imagePath != "":
				data, err := os.ReadFile(imagePath)
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				req.ImageB64 = base64.StdEncoding.EncodeToString(data)
			default:
				return errors.New("either --image or --sentinel is required")
			}

			resp, err := client.Evaluate(cmd.Context(), req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task queued: %s", resp.TaskID))
			if !wait {
				out.Print([]string{"TASK_ID", "MESSAGE"}, [][]string{{resp.TaskID, resp.Message}}, resp)
				return nil
			}

			return watchTask(cmd.Context(), client, out, resp.TaskID, interval, timeout)
		},
	}

	cmd.Flags().StringVar(&examID, "exam", "", "Exam ID")
	cmd.Flags().StringVar(&rubric, "rubric", "", "Rubric text")
	cmd.Flags().StringVar(&rubricFile, "rubric-file", "", "Read rubric text from file")
	cmd.Flags().StringVar(&imagePath, "image", "", "Path to the answer image")
	cmd.Flags().StringVar(&question, "question", "", "Target question (required)")
	cmd.Flags().BoolVar(&sentinel, "sentinel", false, "Send the test sentinel instead of an image")
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the task is finished")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Polling interval for --wait")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Give up waiting after this duration")
	cmd.MarkFlagRequired("question")
	cmd.MarkFlagsMutuallyExclusive("rubric", "rubric-file")
	cmd.MarkFlagsMutuallyExclusive("image", "sentinel")

	return cmd
}

func newTaskStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status TASK_ID",
		Short: "Show task status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := client.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			printStatus(out, args[0], status)
			return nil
		},
	}
}

func newTaskWatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var interval, timeout time.Duration

	cmd := &cobra.Command{
		Use:   "watch TASK_ID",
		Short: "Poll task status until it is finished",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchTask(cmd.Context(), clientFn(), outputFn(), args[0], interval, timeout)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Polling interval")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Give up after this duration")

	return cmd
}

func newTaskListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tasks, err := client.ListTasks(cmd.Context(), ListTasksOpts{
				Status: status,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"TASK_ID", "QUESTION", "STATUS", "STEP", "DECISION", "GRADE", "CREATED"}
			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				decision, grade := decisionColumns(t.Result)
				rows[i] = []string{t.TaskID, t.TargetQuestion, t.Status, t.Step, decision, grade, t.CreatedAt}
			}

			out.Print(headers, rows, tasks)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, AWAITING_VISION, AWAITING_GRADE, COMPLETE, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newTaskAuditCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "audit TASK_ID",
		Short: "Show the decision audit trail of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			entries, err := client.Audit(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			headers := []string{"TASK_ID", "TASK_STATUS", "DECISION", "GRADE", "PRODUCER", "CONFIDENCE", "DECIDED"}
			rows := make([][]string, len(entries))
			for i, e := range entries {
				rows[i] = []string{
					e.TaskID,
					e.TaskStatus,
					e.Decision.Status,
					strconv.FormatFloat(e.Decision.FinalGrade, 'f', -1, 64),
					e.ProducerID,
					strconv.FormatFloat(e.AgentConfidence, 'f', 2, 64),
					e.DecidedAt,
				}
			}

			out.Print(headers, rows, entries)
			return nil
		},
	}
}

func watchTask(ctx context.Context, client *Client, out *Output, taskID string, interval, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	last := ""
	status, err := client.Watch(ctx, taskID, interval, func(s *StatusResponse) {
		if s.Step != last {
			out.Progress(fmt.Sprintf("%s: %s", s.Status, s.Step))
			last = s.Step
		}
	})
	if err != nil {
		return err
	}

	printStatus(out, taskID, status)
	return nil
}

func printStatus(out *Output, taskID string, s *StatusResponse) {
	decision, grade := decisionColumns(s.Result)
	feedback := ""
	if s.Result != nil {
		feedback = s.Result.Feedback
	}

	out.Print(
		[]string{"TASK_ID", "STATUS", "STEP", "DECISION", "GRADE", "FEEDBACK"},
		[][]string{{taskID, s.Status, s.Step, decision, grade, feedback}},
		s,
	)
}

func decisionColumns(d *Decision) (string, string) {
	if d == nil {
		return "-", "-"
	}
	return d.Status, strconv.FormatFloat(d.FinalGrade, 'f', -1, 64)
}
