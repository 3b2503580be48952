package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/agenthive/hive/internal/comms"
	"github.com/agenthive/hive/internal/config"
	"github.com/agenthive/hive/internal/delegate"
	"github.com/agenthive/hive/internal/lifecycle"
	"github.com/agenthive/hive/internal/logging"
	"github.com/agenthive/hive/internal/runtime"
	"github.com/agenthive/hive/internal/signals"
	"github.com/agenthive/hive/internal/state"
	"github.com/agenthive/hive/internal/transport"
	"github.com/agenthive/hive/internal/tui"
	"github.com/agenthive/hive/pkg/models"
)

// rootAgentID is the process-level coordinator every run starts with.
const rootAgentID = "hive-root"

var (
	runConfigPath     string
	runDBPath         string
	runDebugLog       string
	runRuntimeKind    string
	runTUI            bool
	runWatch          bool
	runTeam           bool
	runTeamSize       int
	runSpawn          bool
	runChild          bool
	runType           string
	runPriority       float64
	runReportInterval time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run <task description>",
	Short: "Submit a task to the hive",
	Long: `Submit a task description to the hive. The delegator infers the
task type from keywords, picks an execution strategy, and spawns or
reuses agents as needed.

Examples:
  hive run fix the flaky login handler
  hive run --team --team-size 4 build the billing service
  hive run --spawn run a security audit of the payment flow
  hive run --tui deploy the new release`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Config file path (overrides discovery)")
	runCmd.Flags().StringVar(&runDBPath, "db", "", "SQLite database path")
	runCmd.Flags().StringVar(&runDebugLog, "debug-log", "", "Debug log file path")
	runCmd.Flags().StringVar(&runRuntimeKind, "runtime", "", "Agent runtime: local or claude")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show the live monitor while the hive runs")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Keep running until a stop signal arrives")
	runCmd.Flags().BoolVar(&runTeam, "team", false, "Force team execution")
	runCmd.Flags().IntVar(&runTeamSize, "team-size", 0, "Team size for team execution")
	runCmd.Flags().BoolVar(&runSpawn, "spawn", false, "Force spawning a dedicated specialist")
	runCmd.Flags().BoolVar(&runChild, "child", false, "Prefer delegating to an existing child")
	runCmd.Flags().StringVar(&runType, "type", "", "Override the inferred task type")
	runCmd.Flags().Float64Var(&runPriority, "priority", 0, "Task priority")
	runCmd.Flags().DurationVar(&runReportInterval, "report-interval", 0, "Delegation report cadence")
}

func runRun(cmd *cobra.Command, args []string) error {
	description := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	debugPath := runDebugLog
	if debugPath == "" {
		debugPath = cfg.Storage.DebugLog
	}
	debug, err := logging.New(debugPath)
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}
	defer debug.Close()

	dbPath := runDBPath
	if dbPath == "" {
		dbPath = cfg.Storage.DBPath
	}
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	hub := comms.NewHub(comms.Config{
		Store:            db,
		Transport:        transport.NewLoopback(),
		Debug:            debug,
		ReportInterval:   cfg.Comms.ReportingInterval,
		MaxHistory:       cfg.Comms.MaxMessages,
		DefaultAnonymity: cfg.Comms.AnonymityLevel,
	})

	var policies []lifecycle.Policy
	if cfg.Lifecycle.PolicyFile != "" {
		policies, err = lifecycle.LoadPolicies(cfg.Lifecycle.PolicyFile)
		if err != nil {
			return err
		}
	}
	policies = withMaintenanceFallback(policies, cfg.Lifecycle.MaintenanceFrequency)

	mgr := lifecycle.NewManager(lifecycle.Config{
		Store:    db,
		Notifier: hub,
		Debug:    debug,
		Policies: policies,
	})
	defer mgr.Close()

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}

	del := delegate.New(hub, mgr, rt, debug)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := activateRoot(ctx, mgr); err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	watcher, err := signals.New(cwd, func(agentID string, action signals.Action) {
		switch action {
		case signals.ActionPause:
			mgr.Transition(context.Background(), agentID, models.StatePaused, "pause-request")
		case signals.ActionResume:
			mgr.Transition(context.Background(), agentID, models.StateActive, "resume-request")
		case signals.ActionRetire:
			mgr.Terminate(context.Background(), agentID, "operator-request", true)
		}
	})
	if err != nil {
		return fmt.Errorf("start signal watcher: %w", err)
	}
	defer watcher.Close()

	mon := lifecycle.NewMonitor(mgr, hub, lifecycle.MonitorConfig{
		ShortTick:  cfg.Monitor.ShortTick,
		MediumTick: cfg.Monitor.MediumTick,
		LongTick:   cfg.Monitor.LongTick,
	}, func(agentID string, msg *models.Message) {
		debug.Log("run: delivered %s message %s to %s", msg.Type, msg.ID, agentID)
	})
	mon.Start(ctx)
	defer mon.Stop()

	opts := delegate.Options{
		SpawnAgent:      runSpawn,
		DelegateToChild: runChild,
		TeamSize:        runTeamSize,
		Type:            runType,
		Priority:        runPriority,
		ReportInterval:  runReportInterval,
	}
	if runTeam {
		opts.Collaboration = "team"
	}

	result, err := del.Submit(ctx, description, opts, delegate.Caller{
		AgentID:      rootAgentID,
		Capabilities: models.AgentCoordinator.DefaultCapabilities(),
	})
	if err != nil {
		return err
	}

	printResult(result)

	if runTUI {
		if err := tui.Run(mgr, hub); err != nil {
			return err
		}
	} else if runWatch {
		fmt.Println("watching; create .hive/signals/stop or press Ctrl-C to exit")
		waitForStop(ctx, watcher)
	}

	return nil
}

// withMaintenanceFallback applies the configured maintenance cadence
// when no loaded policy sets one. A policy file that names any cadence
// keeps full control; otherwise every policy gets the default and a
// catch-all is added so uncovered agent types are scheduled too.
func withMaintenanceFallback(policies []lifecycle.Policy, every time.Duration) []lifecycle.Policy {
	if every <= 0 {
		return policies
	}
	for _, p := range policies {
		if p.MaintenanceEvery > 0 {
			return policies
		}
	}

	out := append([]lifecycle.Policy(nil), policies...)
	hasCatchAll := false
	for i := range out {
		out[i].MaintenanceEvery = every
		if out[i].AgentType == "" {
			hasCatchAll = true
		}
	}
	if !hasCatchAll {
		out = append(out, lifecycle.Policy{MaintenanceEvery: every})
	}
	return out
}

func loadConfig() (*config.Config, error) {
	if runConfigPath != "" {
		return config.LoadFromPath(runConfigPath)
	}
	return config.Load()
}

func buildRuntime(cfg *config.Config) (runtime.Runtime, error) {
	kind := runRuntimeKind
	if kind == "" {
		kind = cfg.Runtime.Kind
	}

	switch kind {
	case "", "local":
		return runtime.NewLocalRuntime(), nil
	case "claude":
		key, _, err := config.ResolveAPIKey(cfg)
		if err != nil && !cfg.Anthropic.UseAWSBedrock {
			return nil, err
		}
		return runtime.NewClaudeRuntime(runtime.ClaudeConfig{
			Model:         anthropic.Model(cfg.Anthropic.Model),
			APIKey:        key,
			UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
			AWSRegion:     cfg.Anthropic.AWSRegion,
			AWSProfile:    cfg.Anthropic.AWSProfile,
		})
	default:
		return nil, fmt.Errorf("unknown runtime kind %q (want local or claude)", kind)
	}
}

// activateRoot registers the coordinator and walks it to active so it
// can spawn and delegate.
func activateRoot(ctx context.Context, mgr *lifecycle.Manager) error {
	if _, err := mgr.Register(ctx, rootAgentID, models.AgentCoordinator, "", models.Resources{CPUPercent: 5, MemoryMB: 128}); err != nil {
		return fmt.Errorf("register root agent: %w", err)
	}
	steps := []struct {
		next    models.AgentState
		trigger string
	}{
		{models.StateInitializing, "spawn-request"},
		{models.StateTraining, "initialization-complete"},
		{models.StateActive, "training-complete"},
	}
	for _, s := range steps {
		if !mgr.Transition(ctx, rootAgentID, s.next, s.trigger) {
			return fmt.Errorf("root agent failed to reach %s", s.next)
		}
	}
	return nil
}

func printResult(result *delegate.Result) {
	fmt.Printf("task %s: %s (strategy: %s)\n", result.TaskID, result.Status, result.Strategy)
	if result.AgentID != "" {
		fmt.Printf("  assigned to: %s\n", result.AgentID)
	}
	if len(result.SpawnedAgents) > 0 {
		fmt.Printf("  spawned: %s\n", strings.Join(result.SpawnedAgents, ", "))
	}
	if len(result.Delegations) > 0 {
		fmt.Printf("  delegations: %d\n", len(result.Delegations))
	}
	if result.Impact.AgentsCreated > 0 {
		fmt.Printf("  impact: %d agents, %d%% cpu, %d MB\n",
			result.Impact.AgentsCreated,
			int(result.Impact.ResourceDelta.CPUPercent),
			result.Impact.ResourceDelta.MemoryMB)
	}
}

func waitForStop(ctx context.Context, watcher *signals.Watcher) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if watcher.ShouldStop() {
				return
			}
		}
	}
}
