package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"warebot/internal/capability"
	"warebot/internal/config"
	"warebot/internal/db"
	"warebot/internal/domain"
	"warebot/internal/engine"
	"warebot/internal/migrate"
	"warebot/internal/repo"
	"warebot/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "wb",
	Short: "Warebot CLI",
	Long: `Warebot runs a single warehouse fulfillment robot.
Core concepts:
- Workspace: your .warebot directory holding the database; warebot.yml configures the robot.
- Inventory: items indexed by id and by shelf position; both views must always agree.
- Orders: customer requests split into one task per line and queued FIFO.
- Robot: navigates, verifies, grips and stages items, charging itself when the battery runs low.
- Packing: staged items go into the container heaviest first; ties keep retrieval order.
- Event log: diary of everything that happened, view with 'wb log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
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
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("WAREBOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("mode", "", "automation mode override (full, semi)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("mode", rootCmd.PersistentFlags().Lookup("mode"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(itemCmd())
	rootCmd.AddCommand(orderCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage robot config"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var robotID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default warebot.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(robotID)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&robotID, "robot-id", "ROBOT-001", "robot identifier")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
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
		Short: "Validate warebot.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(viper.GetString("workspace")); err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	}
}

func itemCmd() *cobra.Command {
	item := &cobra.Command{
		Use:   "item",
		Short: "Manage inventory items",
	}
	item.AddCommand(itemAddCmd())
	item.AddCommand(itemListCmd())
	item.AddCommand(itemShowCmd())
	item.AddCommand(itemRemoveCmd())
	return item
}

func itemAddCmd() *cobra.Command {
	var id, name, location string
	var weight float64
	var fragile bool
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an item to inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				it, err := e.AddItem(ctx, id, name, weight, fragile, location)
				if err != nil {
					return err
				}
				return printJSONOrTable(it)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "item id")
	cmd.Flags().StringVar(&name, "name", "", "item name")
	cmd.Flags().Float64Var(&weight, "weight", 0, "weight in kg")
	cmd.Flags().BoolVar(&fragile, "fragile", false, "fragile item")
	cmd.Flags().StringVar(&location, "location", "", "shelf location")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("location")
	return cmd
}

func itemListCmd() *cobra.Command {
	var location string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List inventory items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				var items []domain.Item
				if location != "" {
					items = e.Inventory.ListByLocation(location)
				} else {
					items = e.Inventory.List()
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Weight", "Fragile", "Location"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Name, it.Weight, it.Fragile, it.Location})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "filter by shelf location")
	return cmd
}

func itemShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				it, err := e.Inventory.Find(args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(it)
			})
		},
	}
	return cmd
}

func itemRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an item from inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				it, err := e.RemoveItem(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(it)
			})
		},
	}
	return cmd
}

func orderCmd() *cobra.Command {
	order := &cobra.Command{
		Use:   "order",
		Short: "Manage orders",
		Long:  "Orders are split into one robot task per line. Every line must name an item currently in inventory or the whole order is rejected.",
	}
	order.AddCommand(orderSubmitCmd())
	order.AddCommand(orderListCmd())
	order.AddCommand(orderShowCmd())
	return order
}

func orderSubmitCmd() *cobra.Command {
	var customerID string
	var lineSpecs []string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := parseLines(lineSpecs)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				o, err := e.SubmitOrder(ctx, customerID, lines)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&customerID, "customer", "", "customer id")
	cmd.Flags().StringArrayVar(&lineSpecs, "line", []string{}, "order line as item_id or item_id:quantity (repeatable)")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("line")
	return cmd
}

func parseLines(specs []string) ([]domain.OrderLine, error) {
	var lines []domain.OrderLine
	for _, spec := range specs {
		itemID := spec
		qty := 1
		if idx := strings.LastIndex(spec, ":"); idx >= 0 {
			itemID = spec[:idx]
			if _, err := fmt.Sscanf(spec[idx+1:], "%d", &qty); err != nil {
				return nil, fmt.Errorf("invalid line %q: quantity must be an integer", spec)
			}
		}
		lines = append(lines, domain.OrderLine{ItemID: itemID, Quantity: qty})
	}
	return lines, nil
}

func orderListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				orders, err := e.Repo.ListOrders(ctx, status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(orders)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Customer", "Status", "Created"})
				for _, o := range orders {
					tw.AppendRow(table.Row{o.ID, o.CustomerID, o.Status, o.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func orderShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an order and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				o, err := e.Repo.GetOrder(ctx, args[0])
				if err != nil {
					return err
				}
				tasks, err := e.Repo.ListTasks(ctx, taskFilters(o.ID, ""))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"order": o, "tasks": tasks})
			})
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage robot tasks"}
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskCancelCmd())
	return task
}

func taskShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.Repo.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskListCmd() *cobra.Command {
	var orderID, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				tasks, err := e.Repo.ListTasks(ctx, taskFilters(orderID, status))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Order", "Item", "Qty", "Status", "Reason"})
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.ID, t.OrderID, t.ItemID, t.Quantity, t.Status, t.Reason})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&orderID, "order", "", "order filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func taskCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a queued task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.CancelTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func runCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute queued tasks",
		Long:  "Dequeues tasks FIFO and drives the robot through them. With --tasks 0 the queue is drained.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				finished, err := e.Run(ctx, n)
				for _, t := range finished {
					fmt.Printf("task %s (%s x%d): %s\n", t.ID, t.ItemID, t.Quantity, t.Status)
				}
				if err != nil {
					return err
				}
				if len(finished) == 0 {
					fmt.Println("queue empty")
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "tasks", 0, "number of tasks to run (0 drains the queue)")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show robot status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				snap, err := e.Snapshot(ctx, 0)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(snap)
				}
				fmt.Printf("Robot: %s (%s)\n", snap.RobotID, snap.RobotStatus)
				fmt.Printf("Battery: %.1f / %.1f\n", snap.Battery, snap.BatteryMax)
				fmt.Printf("Location: %s\n", snap.Location)
				fmt.Printf("Queue depth: %d\n", snap.QueueDepth)
				fmt.Printf("Inventory: %d items\n", snap.InventorySize)
				fmt.Printf("Station: %d staged, %d orders packed\n", snap.StagedItems, snap.PackedOrders)
				fmt.Println("Tasks:")
				for status, c := range snap.TaskCounts {
					fmt.Printf("  %s: %d\n", status, c)
				}
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(sctx)
				}()
				fmt.Printf("Serving Warebot API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func taskFilters(orderID, status string) repo.TaskFilters {
	return repo.TaskFilters{OrderID: orderID, Status: status}
}

func loadConfig() (*config.Config, error) {
	workspace := viper.GetString("workspace")
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default("ROBOT-001")
	}
	if mode := viper.GetString("mode"); mode != "" {
		cfg.Robot.AutomationMode = mode
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func withEngine(ctx context.Context, fn func(context.Context, *engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	e, err := engine.New(conn, cfg, engine.Options{
		Capability: capability.Options{
			Mode:    cfg.Robot.AutomationMode,
			Confirm: confirmPrompt,
		},
	})
	if err != nil {
		return err
	}
	if err := e.Bootstrap(ctx); err != nil {
		return err
	}
	return fn(ctx, e)
}

// confirmPrompt is the semi-automatic hook: recovery attempts wait for a
// yes on stdin.
func confirmPrompt(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
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
