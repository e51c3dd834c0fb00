package bootstrap

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/clusterforge/nodeident/interfaces"
)

// ManifestNode describes one node to bootstrap, as written in the
// deployment manifest.
type ManifestNode struct {
	Type     string            `yaml:"type"`
	ID       string            `yaml:"id"`
	Provided map[string]string `yaml:"provided"`
	Local    map[string]string `yaml:"local"`
}

// Manifest is the loader-side deployment description: the full set of
// nodes a process brings up, in document order.
type Manifest struct {
	Nodes []ManifestNode `yaml:"nodes"`
}

// LoadManifest parses and validates a YAML manifest.
func LoadManifest(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse node manifest: %w", err)
	}
	if len(m.Nodes) == 0 {
		return nil, fmt.Errorf("node manifest declares no nodes")
	}

	seen := map[string]bool{}
	for i, n := range m.Nodes {
		if err := n.descriptor().Validate(); err != nil {
			return nil, fmt.Errorf("manifest node %d: %w", i, err)
		}
		if seen[n.ID] {
			return nil, fmt.Errorf("manifest node %d: duplicate node id %q", i, n.ID)
		}
		seen[n.ID] = true
	}

	return &m, nil
}

// Descriptors converts the manifest into loader descriptors with
// allocated config maps.
func (m *Manifest) Descriptors() []interfaces.NodeDescriptor {
	descriptors := make([]interfaces.NodeDescriptor, 0, len(m.Nodes))
	for _, n := range m.Nodes {
		descriptors = append(descriptors, n.descriptor())
	}
	return descriptors
}

// NodeIDs returns every node id in the manifest, for AnnounceManifest.
func (m *Manifest) NodeIDs() []interfaces.NodeID {
	ids := make([]interfaces.NodeID, 0, len(m.Nodes))
	for _, n := range m.Nodes {
		ids = append(ids, interfaces.NodeID(n.ID))
	}
	return ids
}

func (n ManifestNode) descriptor() interfaces.NodeDescriptor {
	config := interfaces.NewNodeConfig()
	for k, v := range n.Provided {
		config.Provided[k] = v
	}
	for k, v := range n.Local {
		config.Local[k] = v
	}
	return interfaces.NodeDescriptor{
		Type:   interfaces.NodeType(n.Type),
		ID:     interfaces.NodeID(n.ID),
		Config: config,
	}
}
