// Package cluster provides the static agent-cluster configuration: which
// agents may read each other's shared and broadcast entries, and which
// categories auto-broadcast at write time.
//
// Membership is configuration, not stored state. It is loaded once at
// startup from a YAML file and never mutated afterwards.
package cluster

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Cluster is one named group of agents that share memory visibility.
type Cluster struct {
	Name   string   `yaml:"name"`
	Agents []string `yaml:"agents"`
}

// FileConfig is the on-disk YAML shape of the cluster configuration.
type FileConfig struct {
	Clusters []Cluster `yaml:"clusters"`

	// AutoBroadcast maps an agent to the categories whose entries are
	// written with broadcast visibility automatically.
	AutoBroadcast map[string][]string `yaml:"auto_broadcast"`
}

// Registry resolves peer relationships and auto-broadcast rules. Peer
// membership is symmetric within a cluster; an agent may belong to several
// clusters, in which case its peer set is the union.
type Registry struct {
	peers         map[string]map[string]struct{}
	autoBroadcast map[string]map[string]struct{}
}

// Load reads the cluster YAML file and builds a Registry. An empty path
// yields an empty registry: every agent is peerless.
func Load(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(FileConfig{}), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cluster: failed to read config %s: %w", path, err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cluster: failed to parse config %s: %w", path, err)
	}

	return NewRegistry(cfg), nil
}

// NewRegistry builds a Registry from an in-memory configuration.
func NewRegistry(cfg FileConfig) *Registry {
	r := &Registry{
		peers:         make(map[string]map[string]struct{}),
		autoBroadcast: make(map[string]map[string]struct{}),
	}

	for _, c := range cfg.Clusters {
		for _, agent := range c.Agents {
			if r.peers[agent] == nil {
				r.peers[agent] = make(map[string]struct{})
			}
			for _, peer := range c.Agents {
				if peer != agent {
					r.peers[agent][peer] = struct{}{}
				}
			}
		}
	}

	for agent, categories := range cfg.AutoBroadcast {
		set := make(map[string]struct{}, len(categories))
		for _, c := range categories {
			set[c] = struct{}{}
		}
		r.autoBroadcast[agent] = set
	}

	return r
}

// Peers returns the sorted peer set for an agent, excluding the agent
// itself. Unknown agents have no peers.
func (r *Registry) Peers(agentID string) []string {
	set := r.peers[agentID]
	if len(set) == 0 {
		return nil
	}

	peers := make([]string, 0, len(set))
	for p := range set {
		peers = append(peers, p)
	}
	sort.Strings(peers)
	return peers
}

// AutoBroadcasts reports whether entries written by the agent in the given
// category should be stored with broadcast visibility.
func (r *Registry) AutoBroadcasts(agentID, category string) bool {
	set := r.autoBroadcast[agentID]
	if set == nil {
		return false
	}
	_, ok := set[category]
	return ok
}
