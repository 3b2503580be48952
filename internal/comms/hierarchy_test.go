package comms

import (
	"context"
	"testing"

	"github.com/agenthive/hive/internal/state"
	"github.com/agenthive/hive/pkg/models"
)

func TestBuildHierarchy_ParentWithTwoChildren(t *testing.T) {
	store := state.NewMemStore()
	h := NewHub(Config{Store: store})
	ctx := context.Background()

	nodes := []HierarchyNode{
		{AgentID: "root", Children: []string{"c1", "c2"}},
		{AgentID: "c1", Parent: "root"},
		{AgentID: "c2", Parent: "root"},
	}

	mapping, err := h.BuildHierarchy(ctx, "org-1", "root", nodes)
	if err != nil {
		t.Fatalf("BuildHierarchy failed: %v", err)
	}

	downward, upward, peer := 0, 0, 0
	for key := range mapping {
		switch {
		case key == "root-downward":
			downward++
		case key == "c1-upward" || key == "c2-upward":
			upward++
		default:
			peer++
		}
	}
	if downward != 1 || upward != 2 || peer != 0 {
		t.Errorf("channels = %d downward, %d upward, %d other; want 1/2/0 (mapping: %v)",
			downward, upward, peer, mapping)
	}

	if store.Count("hierarchies") != 1 {
		t.Errorf("hierarchy map persisted %d times, want 1", store.Count("hierarchies"))
	}
}

func TestBuildHierarchy_DirectionalPermissions(t *testing.T) {
	h := NewHub(Config{Store: state.NewMemStore()})
	ctx := context.Background()

	mapping, err := h.BuildHierarchy(ctx, "org-2", "root", []HierarchyNode{
		{AgentID: "c1", Parent: "root"},
	})
	if err != nil {
		t.Fatalf("BuildHierarchy failed: %v", err)
	}

	ch, err := h.Channel(mapping["c1-upward"])
	if err != nil {
		t.Fatalf("Channel lookup failed: %v", err)
	}
	if ch.Kind != models.ChannelHierarchical {
		t.Errorf("kind = %s, want hierarchical", ch.Kind)
	}
	if !ch.CanSendOn("c1") {
		t.Error("child cannot send on its upward channel")
	}
	if ch.CanSendOn("root") {
		t.Error("parent can send on the child's upward channel")
	}
	if !ch.Permissions.CanReceive["root"] {
		t.Error("parent cannot receive on the upward channel")
	}
}

func TestBuildHierarchy_SiblingsGetPeerChannel(t *testing.T) {
	h := NewHub(Config{Store: state.NewMemStore()})
	ctx := context.Background()

	mapping, err := h.BuildHierarchy(ctx, "org-3", "root", []HierarchyNode{
		{AgentID: "c1", Parent: "root", Siblings: []string{"c2"}},
	})
	if err != nil {
		t.Fatalf("BuildHierarchy failed: %v", err)
	}

	chID, ok := mapping["c1-peer"]
	if !ok {
		t.Fatal("no peer channel for node with siblings")
	}
	ch, err := h.Channel(chID)
	if err != nil {
		t.Fatalf("Channel lookup failed: %v", err)
	}
	if ch.Kind != models.ChannelPeer {
		t.Errorf("kind = %s, want peer", ch.Kind)
	}
	// Peer channels are bidirectional.
	for _, id := range []string{"c1", "c2"} {
		if !ch.CanSendOn(id) || !ch.Permissions.CanReceive[id] {
			t.Errorf("%s is not bidirectional on the peer channel", id)
		}
	}
}
