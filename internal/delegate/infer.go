package delegate

import (
	"strings"

	"github.com/agenthive/hive/pkg/models"
)

// profile is what keyword inference derives from a task description.
type profile struct {
	taskType     string
	agentType    models.AgentType
	capabilities []string
	// specialties counts how many distinct specialist keyword groups
	// matched; two or more suggests the task wants a team.
	specialties int
}

// keywordGroup maps trigger words to a specialist role.
type keywordGroup struct {
	words    []string
	taskType string
	agent    models.AgentType
}

// Groups are checked in order; the first match names the task type, but
// every match contributes capabilities.
var keywordGroups = []keywordGroup{
	{[]string{"security", "audit", "vulnerability", "compliance"}, "security", models.AgentSecurity},
	{[]string{"deploy", "deployment", "infrastructure", "docker", "kubernetes", "pipeline"}, "devops", models.AgentDevOps},
	{[]string{"research", "investigate", "analyze", "analysis", "study"}, "research", models.AgentResearcher},
	{[]string{"test", "testing", "qa", "quality", "verify"}, "testing", models.AgentTester},
	{[]string{"design", "architecture", "architect", "structure"}, "architecture", models.AgentArchitect},
	{[]string{"code", "implement", "build", "fix", "refactor", "debug"}, "coding", models.AgentCoder},
}

// inferProfile derives a task type and capability set from keywords in
// the description. Zero matches never block: the task proceeds with the
// generic "general" tag.
func inferProfile(description string) profile {
	lower := strings.ToLower(description)

	p := profile{}
	for _, group := range keywordGroups {
		matched := false
		for _, w := range group.words {
			if strings.Contains(lower, w) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		p.specialties++
		if p.taskType == "" {
			p.taskType = group.taskType
			p.agentType = group.agent
		}
		p.capabilities = mergeCapabilities(p.capabilities, group.agent.DefaultCapabilities())
	}

	if p.taskType == "" {
		p.taskType = "general"
		p.agentType = models.AgentGeneral
		p.capabilities = []string{"general"}
	}
	return p
}

func mergeCapabilities(have, add []string) []string {
	seen := make(map[string]bool, len(have))
	for _, c := range have {
		seen[c] = true
	}
	for _, c := range add {
		if !seen[c] {
			have = append(have, c)
			seen[c] = true
		}
	}
	return have
}

// teamRoles plans a team composition for the given size: a lone coder for
// trivial work, growing through tester, architect, analyst, and finally a
// coordinator once the team is large enough to need one.
func teamRoles(size int) []models.AgentType {
	switch {
	case size <= 1:
		return []models.AgentType{models.AgentCoder}
	case size == 2:
		return []models.AgentType{models.AgentCoder, models.AgentTester}
	case size == 3:
		return []models.AgentType{models.AgentArchitect, models.AgentCoder, models.AgentTester}
	case size <= 5:
		roles := []models.AgentType{models.AgentArchitect, models.AgentCoder, models.AgentCoder, models.AgentTester}
		if size == 5 {
			roles = append(roles, models.AgentAnalyst)
		}
		return roles
	default:
		roles := []models.AgentType{models.AgentCoordinator, models.AgentArchitect, models.AgentCoder, models.AgentCoder, models.AgentTester, models.AgentAnalyst}
		for len(roles) < size {
			roles = append(roles, models.AgentCoder)
		}
		return roles
	}
}

// capabilityOverlap returns the fraction of required capabilities the
// candidate covers. A task with no requirements matches everyone fully.
func capabilityOverlap(required, have []string) float64 {
	if len(required) == 0 {
		return 1
	}
	haveSet := make(map[string]bool, len(have))
	for _, c := range have {
		haveSet[c] = true
	}
	covered := 0
	for _, c := range required {
		if haveSet[c] {
			covered++
		}
	}
	return float64(covered) / float64(len(required))
}
