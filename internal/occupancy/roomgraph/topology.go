package roomgraph

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// topologyDocument is the YAML connectivity descriptor. Each list entry is a
// single roomA: roomB pair:
//
//	connections:
//	  - living_room: hallway
//	  - hallway: kitchen
//	  - hallway: bathroom
type topologyDocument struct {
	Connections []map[string]string `yaml:"connections"`
}

// maxTopologySize caps descriptor files; a building topology is a few KB.
const maxTopologySize = 1 * 1024 * 1024

// Parse builds a RoomGraph from YAML descriptor bytes.
func Parse(data []byte) (*RoomGraph, error) {
	var doc topologyDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse connectivity descriptor: %w", err)
	}

	var pairs [][2]string
	for _, conn := range doc.Connections {
		for a, b := range conn {
			pairs = append(pairs, [2]string{a, b})
		}
	}
	g, err := New(pairs)
	if err != nil {
		return nil, fmt.Errorf("connectivity descriptor unusable: %w", err)
	}
	return g, nil
}

// Load reads and parses a YAML connectivity descriptor from disk. The file
// must carry a .yml or .yaml extension and stay under 1MB.
func Load(path string) (*RoomGraph, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yml" && ext != ".yaml" {
		return nil, fmt.Errorf("connectivity descriptor must have .yml or .yaml extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat connectivity descriptor: %w", err)
	}
	if info.Size() > maxTopologySize {
		return nil, fmt.Errorf("connectivity descriptor too large: %d bytes (max %d)", info.Size(), maxTopologySize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read connectivity descriptor: %w", err)
	}
	return Parse(data)
}
