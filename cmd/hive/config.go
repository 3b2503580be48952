package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agenthive/hive/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration",
	Long: `Display the effective hive configuration and where it came from.

Configuration is read from ~/.config/hive/config.yaml with
project-level overrides in .hive.yaml and the ANTHROPIC_API_KEY
environment variable on top.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		fmt.Printf("user config:    %s\n", configPathStatus(config.GetUserConfigPath()))
		if project := config.GetProjectConfigPath(); project != "" {
			fmt.Printf("project config: %s\n", project)
		}
		fmt.Println()

		key, source, _ := config.ResolveAPIKey(cfg)
		fmt.Printf("anthropic.api_key:            %s (%s)\n", config.MaskAPIKey(key), source)
		fmt.Printf("anthropic.model:              %s\n", orDefault(cfg.Anthropic.Model, "(sdk default)"))
		fmt.Printf("anthropic.use_aws_bedrock:    %t\n", cfg.Anthropic.UseAWSBedrock)
		fmt.Printf("comms.reporting_interval:     %s\n", cfg.Comms.ReportingInterval)
		fmt.Printf("comms.max_messages:           %d\n", cfg.Comms.MaxMessages)
		fmt.Printf("comms.anonymity_level:        %s\n", cfg.Comms.AnonymityLevel)
		fmt.Printf("lifecycle.maintenance_frequency: %s\n", cfg.Lifecycle.MaintenanceFrequency)
		fmt.Printf("lifecycle.policy_file:        %s\n", orDefault(cfg.Lifecycle.PolicyFile, "(none)"))
		fmt.Printf("monitor.short_tick:           %s\n", cfg.Monitor.ShortTick)
		fmt.Printf("monitor.medium_tick:          %s\n", cfg.Monitor.MediumTick)
		fmt.Printf("monitor.long_tick:            %s\n", cfg.Monitor.LongTick)
		fmt.Printf("runtime.kind:                 %s\n", cfg.Runtime.Kind)
		fmt.Printf("storage.db_path:              %s\n", orDefault(cfg.Storage.DBPath, "(default)"))
		fmt.Printf("storage.debug_log:            %s\n", orDefault(cfg.Storage.DebugLog, "(disabled)"))
		return nil
	},
}

func configPathStatus(path string) string {
	if _, err := os.Stat(path); err != nil {
		return path + " (not found)"
	}
	return path
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
