package comms

import (
	"context"
	"fmt"

	"github.com/agenthive/hive/pkg/models"
)

// HierarchyNode describes one agent's position in a parent/children/
// siblings tree.
type HierarchyNode struct {
	AgentID  string
	Parent   string
	Children []string
	Siblings []string
}

// BuildHierarchy turns an organizational tree into concrete channels. For
// each node it creates up to three channels:
//
//   - upward: node to parent, send-only for the node
//   - downward: node to children, send-only for the node
//   - peer: node and siblings, bidirectional
//
// The returned map is keyed "<agentID>-<direction>" and is persisted once
// under the hierarchy id.
func (h *Hub) BuildHierarchy(ctx context.Context, hierarchyID, rootID string, nodes []HierarchyNode) (map[string]string, error) {
	mapping := make(map[string]string)

	for _, node := range nodes {
		if node.Parent != "" {
			ch, err := h.createDirectional(ctx,
				fmt.Sprintf("%s-%s-upward", hierarchyID, node.AgentID),
				node.AgentID, []string{node.Parent})
			if err != nil {
				return nil, err
			}
			mapping[node.AgentID+"-upward"] = ch.ID
		}

		if len(node.Children) > 0 {
			ch, err := h.createDirectional(ctx,
				fmt.Sprintf("%s-%s-downward", hierarchyID, node.AgentID),
				node.AgentID, node.Children)
			if err != nil {
				return nil, err
			}
			mapping[node.AgentID+"-downward"] = ch.ID
		}

		if len(node.Siblings) > 0 {
			ch, err := h.CreateChannel(ctx,
				fmt.Sprintf("%s-%s-peer", hierarchyID, node.AgentID),
				models.ChannelPeer, node.AgentID, node.Siblings, nil)
			if err != nil {
				return nil, err
			}
			mapping[node.AgentID+"-peer"] = ch.ID
		}
	}

	if err := h.log.SaveHierarchy(ctx, hierarchyID, mapping); err != nil {
		return nil, err
	}

	h.debug.Log("comms: hierarchy %s rooted at %s produced %d channels", hierarchyID, rootID, len(mapping))
	return mapping, nil
}

// createDirectional creates a hierarchical channel where only the sender
// may send and only the receivers may receive.
func (h *Hub) createDirectional(ctx context.Context, name, sender string, receivers []string) (*models.Channel, error) {
	return h.CreateChannel(ctx, name, models.ChannelHierarchical, sender, receivers, func(ch *models.Channel) {
		ch.Permissions.CanSend = map[string]bool{sender: true}
		ch.Permissions.CanReceive = make(map[string]bool, len(receivers))
		for _, r := range receivers {
			ch.Permissions.CanReceive[r] = true
		}
	})
}
