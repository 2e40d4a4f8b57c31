// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package netlist

import "fmt"

// Clustering is the post-packing overlay: primitives grouped into
// clusters, with explicit intra-cluster routes between cluster boundary
// pins and primitive pins. The primitive netlist stays authoritative
// for models and per-primitive pins; nets listed in ClusterNets connect
// cluster boundary pins instead of primitive pins.

// EndpointKind says which side of the cluster boundary a route endpoint
// sits on.
type EndpointKind uint8

const (
	ClusterIn  EndpointKind = iota // cluster input pin (indexed by Pin number)
	ClusterOut                     // cluster output pin
	MemberPin                      // a pin of a contained primitive
)

// Endpoint is one end of an intra-cluster route.
type Endpoint struct {
	Kind EndpointKind
	// Pin is the cluster pin number for ClusterIn/ClusterOut.
	Pin int
	// Member/Port/Bit identify a primitive pin for MemberPin.
	Member int // index into Netlist.Blocks
	Port   string
	Bit    int
}

// Route is one intra-cluster connection with its routed delay. Hops
// inserts that many intermediate routing nodes, splitting the delay
// evenly across the resulting edges.
type Route struct {
	From  Endpoint
	To    Endpoint
	Delay float64
	Hops  int
}

// Cluster is one packed block.
type Cluster struct {
	Name    string
	Members []int // primitive block indexes packed into this cluster

	NumIn  int
	NumOut int

	// InNet[i] / OutNet[i] bind cluster boundary pins to inter-cluster
	// nets (indexes into Clustering.Nets). NoNet entries are open.
	InNet  []int
	OutNet []int

	Routes []Route
}

// ClusterPin addresses a boundary pin of a cluster.
type ClusterPin struct {
	Cluster int
	Pin     int
	IsOut   bool
}

// ClusterNet is an inter-cluster net: a driving cluster output pin and
// ordered sink pins. Sink order is load-bearing exactly as for Net.
type ClusterNet struct {
	Name   string
	Driver ClusterPin
	Sinks  []ClusterPin
	Const  bool
}

// Clustering bundles the clusters with their inter-cluster nets.
type Clustering struct {
	Clusters []Cluster
	Nets     []ClusterNet
}

// Check validates the overlay against the primitive netlist.
func (cl *Clustering) Check(nl *Netlist) error {
	for ci := range cl.Clusters {
		c := &cl.Clusters[ci]
		if len(c.InNet) != c.NumIn || len(c.OutNet) != c.NumOut {
			return fmt.Errorf("cluster %s: pin/net binding size mismatch", c.Name)
		}
		for _, m := range c.Members {
			if m < 0 || m >= len(nl.Blocks) {
				return fmt.Errorf("cluster %s: member block %d out of range", c.Name, m)
			}
		}
		for ri := range c.Routes {
			r := &c.Routes[ri]
			for _, ep := range []Endpoint{r.From, r.To} {
				switch ep.Kind {
				case ClusterIn:
					if ep.Pin < 0 || ep.Pin >= c.NumIn {
						return fmt.Errorf("cluster %s: route uses input pin %d of %d", c.Name, ep.Pin, c.NumIn)
					}
				case ClusterOut:
					if ep.Pin < 0 || ep.Pin >= c.NumOut {
						return fmt.Errorf("cluster %s: route uses output pin %d of %d", c.Name, ep.Pin, c.NumOut)
					}
				case MemberPin:
					if !contains(c.Members, ep.Member) {
						return fmt.Errorf("cluster %s: route endpoint names non-member block %d", c.Name, ep.Member)
					}
				}
			}
		}
	}
	for ni := range cl.Nets {
		n := &cl.Nets[ni]
		if n.Driver.Cluster < 0 || n.Driver.Cluster >= len(cl.Clusters) {
			return fmt.Errorf("cluster net %s: driver cluster %d out of range", n.Name, n.Driver.Cluster)
		}
		for _, s := range n.Sinks {
			if s.Cluster < 0 || s.Cluster >= len(cl.Clusters) {
				return fmt.Errorf("cluster net %s: sink cluster %d out of range", n.Name, s.Cluster)
			}
		}
	}
	return nil
}

func contains(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
