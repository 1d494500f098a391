package cluster

import (
	"reflect"
	"sort"

	log "github.com/sirupsen/logrus"
)

type state struct {
	// current view of our nodes
	nodes       map[NodeId]Node
	nopCheckCnt int
}

func makeState(nodes []Node) *state {
	s := &state{
		nodes: make(map[NodeId]Node),
	}
	s.setAndDiff(nodes)
	return s
}

// setAndDiff replaces the view with newState and returns the updates that
// turn the old view into the new one: removes, then adds, then updates, each
// sorted by id.
func (s *state) setAndDiff(newState []Node) []NodeUpdate {
	next := make(map[NodeId]Node, len(newState))
	for _, n := range newState {
		next[n.Id()] = n
	}

	added, removed, updated := []Node{}, []NodeId{}, []Node{}
	for id, n := range next {
		old, exists := s.nodes[id]
		if !exists {
			added = append(added, n)
		} else if changed(old, n) {
			updated = append(updated, n)
		}
	}
	for id := range s.nodes {
		if _, exists := next[id]; !exists {
			removed = append(removed, id)
		}
	}
	sort.Sort(NodeSorter(added))
	sort.Sort(NodeSorter(updated))
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })

	outgoing := []NodeUpdate{}
	for _, id := range removed {
		log.Infof("NodeRemoved update: %s", id)
		outgoing = append(outgoing, NewRemove(id))
	}
	for _, n := range added {
		log.Infof("NodeAdded update: %s", n)
		outgoing = append(outgoing, NewAdd(n))
	}
	for _, n := range updated {
		outgoing = append(outgoing, NewUpdate(n))
	}

	// Heartbeats change every fetch, so only membership changes are worth an info line.
	if len(added) > 0 || len(removed) > 0 {
		log.Infof("Number of nodes added: %d, removed: %d, in new state: %d, in old state: %d "+
			"(%d cluster checks with no membership change)",
			len(added), len(removed), len(next), len(s.nodes), s.nopCheckCnt)
		s.nopCheckCnt = 0
	} else {
		s.nopCheckCnt++
	}
	s.nodes = next
	return outgoing
}

// filterAndUpdate applies updates and returns the ones that changed the view.
// Adding a known node is an update; removing an unknown one is dropped.
func (s *state) filterAndUpdate(updates []NodeUpdate) []NodeUpdate {
	applied := []NodeUpdate{}
	for _, u := range updates {
		old, exists := s.nodes[u.Id]
		switch u.UpdateType {
		case NodeAdded, NodeUpdated:
			if u.Node == nil {
				log.Errorf("Dropping %s without a node", u)
				continue
			}
			if !exists {
				log.Infof("NodeAdded update: %s", u.Node)
				applied = append(applied, NewAdd(u.Node))
			} else if changed(old, u.Node) {
				applied = append(applied, NewUpdate(u.Node))
			} else {
				continue
			}
			s.nodes[u.Id] = u.Node
		case NodeRemoved:
			if !exists {
				continue
			}
			log.Infof("NodeRemoved update: %s", u.Id)
			delete(s.nodes, u.Id)
			applied = append(applied, u)
		}
	}
	return applied
}

func changed(old, n Node) bool {
	return old.Status() != n.Status() || !reflect.DeepEqual(old.Groups(), n.Groups())
}
