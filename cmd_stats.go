package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sadopc/sprintboard/internal/metrics"
	"github.com/sadopc/sprintboard/internal/store"
)

func newStatsCmd(flags *globalFlags) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print dashboard figures",
		Long:  "Prints task counts, completion rate, the completion heatmap, active sprints, tracks by category and today's checklist. The heatmap window defaults to the heatmap_days setting.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return fmt.Errorf("--days must not be negative")
			}
			e, err := openEnv(cmd.Context(), *flags)
			if err != nil {
				return err
			}
			defer e.Close()

			engine := metrics.NewEngine(e.board.Store())
			if days == 0 {
				days = e.store.IntSetting(store.SettingHeatmapDays, metrics.DefaultHeatmapDays)
			}
			engine.SetHeatmapDays(days)
			writeStats(cmd.OutOrStdout(), engine.Dashboard(time.Now()))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "heatmap window in days (default from settings)")
	return cmd
}

var heatGlyphs = []string{"·", "░", "▒", "▓", "█"}

func writeStats(w io.Writer, d metrics.Dashboard) {
	c := d.Tasks
	fmt.Fprintf(w, "%s, %s\n\n", d.Greeting, d.Date.Time().Format("Monday, Jan 2 2006"))
	fmt.Fprintf(w, "Tracks    %d active of %d\n", d.ActiveTracks, d.TotalTracks)
	fmt.Fprintf(w, "Tasks     %s total: %d to do, %d in progress, %d done\n",
		humanize.Comma(int64(c.Total)), c.Todo, c.InProgress, c.Done)
	fmt.Fprintf(w, "Complete  %.2f%%\n", d.CompletionPercent)
	fmt.Fprintf(w, "Pending   %d high priority, %d overdue\n", d.HighPriorityPending, d.Overdue)
	if d.LoggedDays > 0 {
		fmt.Fprintf(w, "Journal   %d days logged, mood %.1f, %.1fh focus\n", d.LoggedDays, d.AvgMood, d.TotalFocusHours)
	}

	total := 0
	var cells strings.Builder
	for i, day := range d.Heatmap {
		if i > 0 && i%7 == 0 {
			cells.WriteByte('\n')
		}
		cells.WriteString(heatGlyphs[min(day.Level, len(heatGlyphs)-1)])
		total += day.Count
	}
	fmt.Fprintf(w, "\nCompletions, last %d days (%s done)\n%s\n", len(d.Heatmap), humanize.Comma(int64(total)), cells.String())

	if len(d.ActiveSprints) == 0 {
		fmt.Fprintln(w, "\nNo active sprints.")
	} else {
		fmt.Fprintln(w, "\nActive sprints")
		for _, s := range d.ActiveSprints {
			fmt.Fprintf(w, "  %-24s %3d%%  %d/%d done, %d days left\n",
				s.Sprint.Name, s.Progress, s.Tasks.Done, s.Tasks.Total, s.DaysRemaining)
		}
	}

	if len(d.Categories) > 0 {
		fmt.Fprintln(w, "\nTracks by category")
		for _, g := range d.Categories {
			name := g.Category
			if name == "" {
				name = "Uncategorized"
			}
			fmt.Fprintf(w, "  %-24s %3d%%  %d/%d done\n", name, g.Progress, g.Tasks.Done, g.Tasks.Total)
			for _, t := range g.Tracks {
				fmt.Fprintf(w, "    %-22s %3d%%\n", t.Track.Title, t.Progress)
			}
		}
	}

	if len(d.Todos) == 0 {
		return
	}
	fmt.Fprintf(w, "\nToday's checklist (%d/%d)\n", d.TodosDone, len(d.Todos))
	for _, td := range d.Todos {
		box := "[ ]"
		if td.IsCompleted {
			box = "[x]"
		}
		fmt.Fprintf(w, "  %s %s\n", box, td.Title)
	}
}
