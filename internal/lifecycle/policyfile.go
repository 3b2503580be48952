package lifecycle

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agenthive/hive/pkg/models"
)

// policyFile is the on-disk policy document.
type policyFile struct {
	Policies []policyEntry `yaml:"policies"`
}

// policyEntry is one policy as written in YAML. Durations are strings in
// Go duration syntax ("72h", "30m", "0"); an absent field means unlimited.
type policyEntry struct {
	AgentType        string `yaml:"agent_type"`
	MaxUptime        string `yaml:"max_uptime"`
	MaxIdleTime      string `yaml:"max_idle_time"`
	MaintenanceEvery string `yaml:"maintenance_every"`
}

// LoadPolicies reads a YAML policy file.
func LoadPolicies(path string) ([]Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicies(data)
}

// ParsePolicies parses a YAML policy document.
func ParsePolicies(data []byte) ([]Policy, error) {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	policies := make([]Policy, 0, len(file.Policies))
	for i, entry := range file.Policies {
		p := Policy{AgentType: models.AgentType(entry.AgentType)}

		if entry.MaxUptime != "" {
			d, err := time.ParseDuration(entry.MaxUptime)
			if err != nil {
				return nil, fmt.Errorf("policy %d: max_uptime: %w", i, err)
			}
			p.MaxUptime = &d
		}
		if entry.MaxIdleTime != "" {
			d, err := time.ParseDuration(entry.MaxIdleTime)
			if err != nil {
				return nil, fmt.Errorf("policy %d: max_idle_time: %w", i, err)
			}
			p.MaxIdleTime = &d
		}
		if entry.MaintenanceEvery != "" {
			d, err := time.ParseDuration(entry.MaintenanceEvery)
			if err != nil {
				return nil, fmt.Errorf("policy %d: maintenance_every: %w", i, err)
			}
			p.MaintenanceEvery = d
		}

		policies = append(policies, p)
	}
	return policies, nil
}
