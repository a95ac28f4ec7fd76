package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"planline/internal/app"
	"planline/internal/config"
	"planline/internal/db"
	"planline/internal/domain"
	"planline/internal/engine"
	"planline/internal/schedule"
	"planline/internal/server"
)

var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "pl",
	Short: "Planline CLI",
	Long: `Planline turns learning goals into a day-by-day schedule of practice tasks.
- Goal: what you want to learn, how many minutes a day, and the date range.
- Task: one day's practice, generated by the configured provider or the built-in planner.
- Regenerate: throw away a goal's tasks and plan the range again.
- Sweep: plan every goal that has no tasks yet.
- Event log: every change to goals and tasks, view with 'pl log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(viper.GetBool("verbose"))
		if err != nil {
			return err
		}
		logger = l
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logger.Sync()
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PLANLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().String("jwt-secret", "", "HS256 secret for bearer auth (serve, token)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("jwt-secret", rootCmd.PersistentFlags().Lookup("jwt-secret"))
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func registerCommands() {
	rootCmd.AddCommand(goalCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(serveCmd())
}

func goalCmd() *cobra.Command {
	goal := &cobra.Command{Use: "goal", Short: "Manage goals"}
	goal.AddCommand(goalCreateCmd())
	goal.AddCommand(goalListCmd())
	goal.AddCommand(goalShowCmd())
	goal.AddCommand(goalUpdateCmd())
	goal.AddCommand(goalDeleteCmd())
	goal.AddCommand(goalRegenerateCmd())
	return goal
}

func goalCreateCmd() *cobra.Command {
	var in engine.GoalInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create goal and plan its tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.Title == "" {
				return fmt.Errorf("--title required")
			}
			if in.StartDate == "" {
				in.StartDate = schedule.FormatDate(time.Now())
			}
			if in.EndDate == "" {
				in.EndDate = in.StartDate
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.CreateGoal(ctx, in)
				if err != nil {
					return err
				}
				if res.SynthesisErr != nil {
					fmt.Fprintf(os.Stderr, "goal %s created without tasks: %v\n", res.Goal.ID, res.SynthesisErr)
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"goal": res.Goal, "tasks": res.Tasks})
				}
				fmt.Printf("goal %s: %s\n", res.Goal.ID, res.Goal.Title)
				renderTasks(res.Tasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "goal title")
	cmd.Flags().StringVar(&in.Description, "description", "", "goal description")
	cmd.Flags().StringVar(&in.CurrentLevel, "level", "", "current level")
	cmd.Flags().StringSliceVar(&in.FocusAreas, "focus", nil, "focus areas (repeatable or comma separated)")
	cmd.Flags().IntVar(&in.DailyMinutes, "minutes", 30, "daily minutes")
	cmd.Flags().StringVar(&in.StartDate, "start", "", "start date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&in.EndDate, "end", "", "end date YYYY-MM-DD, exclusive (default start)")
	return cmd
}

func goalListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List goals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				goals, err := e.ListGoals(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(goals)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Minutes", "Start", "End", "Tasks"})
				for _, g := range goals {
					tw.AppendRow(table.Row{g.ID, g.Title, g.DailyMinutes, g.StartDate, g.EndDate, len(g.Tasks)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func goalShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <goal-id>",
		Short: "Show goal with its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				g, tasks, err := e.GetGoal(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"goal": g, "tasks": tasks})
				}
				fmt.Printf("%s  %s (%d min/day, %s..%s)\n", g.ID, g.Title, g.DailyMinutes, g.StartDate, g.EndDate)
				if len(g.FocusAreas) > 0 {
					fmt.Printf("focus: %s\n", strings.Join(g.FocusAreas, ", "))
				}
				progress, err := e.Repo.CountTasksByStatus(ctx, g.ID)
				if err != nil {
					return err
				}
				fmt.Printf("progress: %d completed, %d skipped, %d pending\n",
					progress[domain.TaskCompleted], progress[domain.TaskSkipped], progress[domain.TaskPending])
				renderTasks(tasks)
				return nil
			})
		},
	}
}

func goalUpdateCmd() *cobra.Command {
	var title, desc, level, start, end string
	var focus []string
	var minutes int
	cmd := &cobra.Command{
		Use:   "update <goal-id>",
		Short: "Update goal fields (tasks are kept; run regenerate to replan)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch engine.GoalPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("description") {
				patch.Description = &desc
			}
			if flags.Changed("level") {
				patch.CurrentLevel = &level
			}
			if flags.Changed("focus") {
				patch.FocusAreas = &focus
			}
			if flags.Changed("minutes") {
				patch.DailyMinutes = &minutes
			}
			if flags.Changed("start") {
				patch.StartDate = &start
			}
			if flags.Changed("end") {
				patch.EndDate = &end
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				g, err := e.UpdateGoal(ctx, args[0], patch)
				if err != nil {
					return err
				}
				return printJSONOrTable(g)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "goal title")
	cmd.Flags().StringVar(&desc, "description", "", "goal description")
	cmd.Flags().StringVar(&level, "level", "", "current level")
	cmd.Flags().StringSliceVar(&focus, "focus", nil, "focus areas")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "daily minutes")
	cmd.Flags().StringVar(&start, "start", "", "start date YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "end date YYYY-MM-DD")
	return cmd
}

func goalDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <goal-id>",
		Short: "Delete goal and all of its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteGoalCascade(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("deleted goal %s\n", args[0])
				return nil
			})
		},
	}
}

func goalRegenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate <goal-id>",
		Short: "Replace the goal's tasks with a fresh plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.Regenerate(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				renderTasks(tasks)
				return nil
			})
		},
	}
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskListCmd())
	task.AddCommand(taskStatusCmd())
	task.AddCommand(taskDeleteCmd())
	return task
}

func taskListCmd() *cobra.Command {
	var goalID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a goal's tasks by due date",
		RunE: func(cmd *cobra.Command, args []string) error {
			if goalID == "" {
				return fmt.Errorf("--goal required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.ListGoalTasks(ctx, goalID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				renderTasks(tasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&goalID, "goal", "", "goal id")
	return cmd
}

func taskStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id> <pending|completed|skipped>",
		Short: "Set task status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTaskStatus(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task and unlink it from its goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteTask(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("deleted task %s\n", args[0])
				return nil
			})
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Plan every goal that has no tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				results, err := e.SynthesizeMissing(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(results)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Goal", "OK", "Tasks", "Error"})
				for _, r := range results {
					tw.AppendRow(table.Row{r.GoalID, r.Success, r.TasksCount, r.Error})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func scheduleCmd() *cobra.Command {
	sch := &cobra.Command{Use: "schedule", Short: "Query tasks by day"}
	sch.AddCommand(&cobra.Command{
		Use:   "today",
		Short: "Tasks due today",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printDue(cmd.Context(), schedule.FormatDate(time.Now()))
		},
	})
	sch.AddCommand(&cobra.Command{
		Use:   "date <YYYY-MM-DD>",
		Short: "Tasks due on a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := schedule.ParseDate(args[0])
			if err != nil {
				return err
			}
			return printDue(cmd.Context(), schedule.FormatDate(day))
		},
	})
	var n int
	recent := &cobra.Command{
		Use:   "recent",
		Short: "Most recently updated tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.Repo.RecentTasks(ctx, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				renderTasks(tasks)
				return nil
			})
		},
	}
	recent.Flags().IntVar(&n, "n", 10, "number of tasks")
	sch.AddCommand(recent)
	return sch
}

func printDue(ctx context.Context, date string) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		tasks, err := e.Repo.ListTasksDue(ctx, date)
		if err != nil {
			return err
		}
		if viper.GetBool("json") {
			return printJSON(tasks)
		}
		renderTasks(tasks)
		return nil
	})
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "planline.yml in the workspace picks the provider, daily minute bounds, sweep concurrency and webhooks. Without it the defaults apply.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate planline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default planline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every change to goals and tasks: creation, planning, status changes and deletions.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var goalID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.ListEvents(ctx, goalID, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Goal", "Entity", "Payload"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.GoalID, evt.EntityKind + ":" + evt.EntityID, evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&goalID, "goal", "", "only events of this goal")
	return cmd
}

func tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("PLANLINE_JWT_SECRET or --jwt-secret required")
			}
			token, err := server.SignToken(secret, subject, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "local-user", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()
			authCfg := server.AuthConfig{JWTSecret: viper.GetString("jwt-secret")}
			if !authCfg.Enabled() {
				logger.Warn("PLANLINE_JWT_SECRET not set; API is unauthenticated")
			}
			handler, err := server.New(server.Config{
				Engine:   env.Engine,
				BasePath: basePath,
				Auth:     authCfg,
				Logger:   logger.Named("http"),
			})
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			dispatcher := server.NewWebhookDispatcher(env.Engine.Repo, env.Config.Webhooks, logger.Named("webhooks"))
			go dispatcher.Run(ctx)

			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			fmt.Printf("Serving Planline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func openEnv(ctx context.Context) (*app.Env, error) {
	return app.Open(ctx, app.Options{
		Workspace: viper.GetString("workspace"),
		Logger:    logger,
	})
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	env, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env.Engine)
}

func renderTasks(tasks []domain.Task) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Due", "Title", "Minutes", "Status", "Focus"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.ID, t.DueDate, t.Title, t.EstimatedMinutes, t.Status, t.DailyFocus})
	}
	tw.Render()
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
