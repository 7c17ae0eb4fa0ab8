package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tractus/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the subject queue",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var (
		subject     string
		anat        string
		bedpostxDir string
		parc        string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Enqueue a subject for batch processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				item, err := store.NewSubject(cmd.Context(), subject, anat, bedpostxDir, parc)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %s as item %d\n", item.SubjectID, item.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Subject identifier")
	cmd.Flags().StringVar(&anat, "anat", "", "T1 anatomical volume")
	cmd.Flags().StringVar(&bedpostxDir, "bedpostx", "", "Subject bedpostx output directory")
	cmd.Flags().StringVar(&parc, "parc", "", "Anatomical-space parcellation volume")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("anat")
	_ = cmd.MarkFlagRequired("bedpostx")
	_ = cmd.MarkFlagRequired("parc")

	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				statuses := make([]queue.Status, 0, len(listStatuses))
				for _, raw := range listStatuses {
					status, ok := queue.ParseStatus(raw)
					if !ok {
						return fmt.Errorf("unknown status %q", raw)
					}
					statuses = append(statuses, status)
				}

				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					detail := item.ProgressMessage
					if item.ErrorMessage != "" {
						detail = item.ErrorMessage
					}
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						item.SubjectID,
						string(item.Status),
						item.CreatedAt.Local().Format(time.DateTime),
						detail,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Subject", "Status", "Created", "Detail"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&listStatuses, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(stats))
				for _, status := range queue.AllStatuses() {
					count, ok := stats[status]
					if !ok {
						continue
					}
					rows = append(rows, []string{string(status), strconv.Itoa(count)})
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Status", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry [id...]",
		Short: "Return failed and review items to their stage start",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid item id %q", arg)
				}
				ids = append(ids, id)
			}
			return ctx.withStore(func(store *queue.Store) error {
				count, err := store.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d items\n", count)
				return nil
			})
		},
	}
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a queue item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			return ctx.withStore(func(store *queue.Store) error {
				removed, err := store.Remove(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("item %d not found", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed item %d\n", id)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var (
		clearCompleted bool
		clearFailed    bool
		clearAll       bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove completed, failed, or all queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				var (
					count int64
					err   error
					what  string
				)
				switch {
				case clearAll:
					count, err = store.Clear(cmd.Context())
					what = "items"
				case clearFailed:
					count, err = store.ClearFailed(cmd.Context())
					what = "failed items"
				case clearCompleted:
					count, err = store.ClearCompleted(cmd.Context())
					what = "completed items"
				default:
					return fmt.Errorf("specify --completed, --failed, or --all")
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", count, what)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove completed items")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove failed and review items")
	cmd.Flags().BoolVar(&clearAll, "all", false, "Remove every item")

	return cmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonMode bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check queue database integrity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				health, err := store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				if jsonMode {
					return writeJSON(cmd, health)
				}

				colorize := shouldColorize(cmd.OutOrStdout())
				columnsOK := health.TableExists && len(health.MissingColumns) == 0
				rows := [][]string{
					{"database", health.DBPath, fmt.Sprintf("%d items", health.TotalItems)},
					{"exists", passFailLabel(health.DatabaseExists, colorize), ""},
					{"readable", passFailLabel(health.DatabaseReadable, colorize), health.Error},
					{"schema", passFailLabel(columnsOK, colorize), strings.Join(health.MissingColumns, ", ")},
					{"integrity", passFailLabel(health.IntegrityCheck, colorize), ""},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Check", "State", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
				if !health.DatabaseExists || !health.DatabaseReadable || !columnsOK || !health.IntegrityCheck {
					return fmt.Errorf("queue database is unhealthy")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonMode, "json", false, "Emit results as JSON")
	return cmd
}
