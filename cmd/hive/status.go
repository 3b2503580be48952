package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agenthive/hive/internal/state"
	"github.com/agenthive/hive/pkg/models"
)

var statusDBPath string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show persisted hive state",
	Long: `Display the hive's persisted state from the SQLite store.

Shows:
  - Live and archived agents with state and health
  - Channel and message counts
  - Open issues`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusDBPath, "db", "", "SQLite database path")
}

func runStatus(cmd *cobra.Command, args []string) error {
	dbPath := statusDBPath
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No hive state found. Run 'hive run <task>' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	ctx := cmd.Context()

	counts, err := db.CountByPartition(ctx)
	if err != nil {
		return fmt.Errorf("count records: %w", err)
	}

	bold := color.New(color.Bold)
	bold.Println("Hive")
	fmt.Printf("  database:  %s\n", dbPath)
	fmt.Printf("  channels:  %d\n", counts["channels"])
	fmt.Printf("  messages:  %d\n", counts["messages"])
	fmt.Println()

	if err := printAgents(cmd, db, "lifecycle", "Live agents"); err != nil {
		return err
	}
	return printAgents(cmd, db, "archive", "Archived agents")
}

func printAgents(cmd *cobra.Command, db *state.DB, partition, heading string) error {
	records, err := db.List(cmd.Context(), partition)
	if err != nil {
		return fmt.Errorf("list %s: %w", partition, err)
	}

	bold := color.New(color.Bold)
	bold.Printf("%s (%d)\n", heading, len(records))
	if len(records) == 0 {
		fmt.Println("  none")
		fmt.Println()
		return nil
	}

	agents := make([]*models.AgentRecord, 0, len(records))
	for _, rec := range records {
		var agent models.AgentRecord
		if err := json.Unmarshal(rec.Value, &agent); err != nil {
			continue
		}
		agents = append(agents, &agent)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].AgentID < agents[j].AgentID })

	for _, agent := range agents {
		stateText := colorForState(agent.State).Sprintf("%-12s", string(agent.State))
		line := fmt.Sprintf("  %-24s %-12s %s health %.2f", agent.AgentID, agent.Type, stateText, agent.Metrics.HealthScore)
		if agent.TerminatedAt != nil {
			line += fmt.Sprintf("  (%s, %s)", agent.TerminationReason, agent.TerminatedAt.Format(time.RFC3339))
		}
		fmt.Println(line)
		for _, issue := range agent.Metrics.OpenIssues {
			marker := "issue"
			if issue.Critical {
				marker = color.RedString("critical")
			}
			fmt.Printf("    %s: %s\n", marker, issue.Description)
		}
	}
	fmt.Println()
	return nil
}

func colorForState(s models.AgentState) *color.Color {
	switch s {
	case models.StateActive, models.StateBusy:
		return color.New(color.FgGreen)
	case models.StateError:
		return color.New(color.FgRed)
	case models.StatePaused, models.StateIdle:
		return color.New(color.FgYellow)
	case models.StateTerminated, models.StateRetiring:
		return color.New(color.FgHiBlack)
	default:
		return color.New(color.FgCyan)
	}
}
