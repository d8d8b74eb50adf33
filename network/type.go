package network

import (
	"fmt"
	"strings"
)

type NodeKind int

const (
	NodeKindNetwork NodeKind = iota
	NodeKindResidential
	NodeKindCandidate
	NodeKindAmenity
)

var nodeKindNames = map[NodeKind]string{
	NodeKindNetwork:     "network",
	NodeKindResidential: "residential",
	NodeKindCandidate:   "candidate",
	NodeKindAmenity:     "amenity",
}

func (k NodeKind) String() string {
	if s, ok := nodeKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

func ParseNodeKind(s string) (NodeKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return NodeKindNetwork, nil
	}
	for k, name := range nodeKindNames {
		if name == s {
			return k, nil
		}
	}
	return NodeKindNetwork, fmt.Errorf("unknown node kind: %q", s)
}

// Node is a point of the pedestrian network. Coordinates are carried for
// collaborators only; distances come from the graph.
type Node struct {
	ID   int64
	Kind NodeKind
	X, Y float64
}

// Edge is an undirected street segment weighted by its length in meters.
type Edge struct {
	From, To int64
	Length   float64
}

// Neighbor is one entry of a k-nearest answer.
type Neighbor struct {
	ID       int64
	Distance float64
}
