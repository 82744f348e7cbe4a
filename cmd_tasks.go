package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sadopc/sprintboard/internal/entity"
	"github.com/sadopc/sprintboard/internal/export"
	"github.com/sadopc/sprintboard/internal/filter"
)

func newTasksCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List and move tasks",
	}
	cmd.AddCommand(newTasksListCmd(flags))
	cmd.AddCommand(newTasksMoveCmd(flags))
	cmd.AddCommand(newTasksCycleCmd(flags))
	return cmd
}

func newTasksListCmd(flags *globalFlags) *cobra.Command {
	params := map[string]*string{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, optionally filtered",
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make(map[string]string, len(params))
			for k, v := range params {
				values[k] = *v
			}
			spec, err := filter.ParseSpec(values)
			if err != nil {
				return err
			}
			return runTasksList(cmd, *flags, spec)
		},
	}
	for _, f := range []struct{ name, usage string }{
		{"search", "case-insensitive text in title or description"},
		{"status", "TODO, IN_PROGRESS or DONE"},
		{"priority", "LOW, MEDIUM or HIGH"},
		{"track", "track id"},
		{"sprint", "sprint id"},
	} {
		params[f.name] = cmd.Flags().String(f.name, "", f.usage)
	}
	return cmd
}

func runTasksList(cmd *cobra.Command, flags globalFlags, spec filter.Spec) error {
	e, err := openEnv(cmd.Context(), flags)
	if err != nil {
		return err
	}
	defer e.Close()

	s := e.board.Store()
	tasks, err := filter.Apply(s.Tasks(), spec)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintf(out, "No tasks match %s.\n", spec)
		return nil
	}

	names := export.NamesFrom(s)
	fmt.Fprintln(out, formatTaskTable(tasks, names, today()))
	fmt.Fprintf(out, "%s tasks (%s)\n", humanize.Comma(int64(len(tasks))), spec)
	return nil
}

func formatTaskTable(tasks []entity.Task, names export.Names, day entity.Date) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TITLE", "STATUS", "PRIORITY", "DUE", "TRACK", "SPRINT")
	for _, task := range tasks {
		t.Row(
			strconv.FormatInt(task.ID, 10),
			task.Title,
			task.Status.Label(),
			string(task.Priority),
			formatDue(task, day),
			lookup(names.Tracks, task.TrackID),
			lookup(names.Sprints, task.SprintID),
		)
	}
	return t.Render()
}

func formatDue(t entity.Task, day entity.Date) string {
	if t.DueDate == nil {
		return ""
	}
	if t.DueDate.Equal(day) {
		return "today"
	}
	rel := humanize.RelTime(t.DueDate.Time(), day.Time(), "ago", "from now")
	if t.Overdue(day) {
		return "overdue, " + rel
	}
	return rel
}

func lookup(m map[int64]string, id *int64) string {
	if id == nil {
		return ""
	}
	return m[*id]
}

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, &entity.ValidationError{Field: "id", Reason: fmt.Sprintf("%q is not a valid task id", s)}
	}
	return id, nil
}

func newTasksMoveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <status>",
		Short: "Move a task to another column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			status, err := entity.ParseStatus(args[1])
			if err != nil {
				return err
			}

			e, err := openEnv(cmd.Context(), *flags)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, cancel := e.commitContext(cmd.Context())
			defer cancel()
			if err := e.board.MoveTask(ctx, id, status); err != nil {
				return err
			}
			return printTask(cmd, e, id)
		},
	}
}

func newTasksCycleCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle <id>",
		Short: "Advance a task TODO → IN_PROGRESS → DONE → TODO",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}

			e, err := openEnv(cmd.Context(), *flags)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, cancel := e.commitContext(cmd.Context())
			defer cancel()
			if err := e.board.CycleStatus(ctx, id); err != nil {
				return err
			}
			return printTask(cmd, e, id)
		},
	}
}

func printTask(cmd *cobra.Command, e *env, id int64) error {
	t, err := e.board.Store().Task(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "#%d %s → %s\n", t.ID, t.Title, t.Status.Label())
	return nil
}
