package cluster

import (
	"fmt"
	"sort"
)

// DefaultWorkerGroup is the group of nodes that declare none.
const DefaultWorkerGroup = "default"

type NodeId string

// Node is a worker as seen by the cluster view.
type Node interface {
	// A unique node identifier, the worker's 'host:port'.
	Id() NodeId

	// Worker groups the node serves, never empty.
	Groups() []string

	// The latest raw heartbeat the node published, "" if none was seen.
	Status() string
}

type workerNode struct {
	id     NodeId
	groups []string
	status string
}

func (n *workerNode) String() string {
	return fmt.Sprintf("{id:%s, groups:%v, heartbeat:%q}", n.id, n.groups, n.status)
}

func (n *workerNode) Id() NodeId       { return n.id }
func (n *workerNode) Groups() []string { return n.groups }
func (n *workerNode) Status() string   { return n.status }

// NewIdNode creates a node in the default group with no heartbeat.
func NewIdNode(id string) Node {
	return NewWorkerNode(id, nil, "")
}

// NewWorkerNode creates a node serving groups whose latest heartbeat is
// status. Groups are sorted and deduplicated; no groups means the default group.
func NewWorkerNode(id string, groups []string, status string) Node {
	return &workerNode{id: NodeId(id), groups: normalizeGroups(groups), status: status}
}

func normalizeGroups(groups []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, g := range groups {
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	if len(out) == 0 {
		return []string{DefaultWorkerGroup}
	}
	sort.Strings(out)
	return out
}

var _ Node = (*workerNode)(nil)

type NodeSorter []Node

func (n NodeSorter) Len() int           { return len(n) }
func (n NodeSorter) Swap(i, j int)      { n[i], n[j] = n[j], n[i] }
func (n NodeSorter) Less(i, j int) bool { return n[i].Id() < n[j].Id() }

type NodeUpdateType int

const (
	NodeAdded NodeUpdateType = iota
	NodeRemoved
	NodeUpdated // same node, new groups or heartbeat
)

func (t NodeUpdateType) String() string {
	switch t {
	case NodeAdded:
		return "NodeAdded"
	case NodeRemoved:
		return "NodeRemoved"
	case NodeUpdated:
		return "NodeUpdated"
	}
	return fmt.Sprintf("NodeUpdateType(%d)", int(t))
}

// NodeUpdate represents a change to the cluster
type NodeUpdate struct {
	UpdateType NodeUpdateType
	Id         NodeId
	Node       Node // Only set for adds and updates
}

func (u NodeUpdate) String() string {
	return fmt.Sprintf("%v %v %v", u.UpdateType, u.Id, u.Node)
}

func NewAdd(node Node) NodeUpdate {
	return NodeUpdate{UpdateType: NodeAdded, Id: node.Id(), Node: node}
}

func NewUpdate(node Node) NodeUpdate {
	return NodeUpdate{UpdateType: NodeUpdated, Id: node.Id(), Node: node}
}

func NewRemove(id NodeId) NodeUpdate {
	return NodeUpdate{UpdateType: NodeRemoved, Id: id}
}
