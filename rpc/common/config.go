package common

import (
	"fmt"
	"github.com/lni/dragonboat/v4/config"
	"math"
	"sort"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// helper functions for to interface with Dragonboat (for the server util)
// --------------------------------------------------------------------------

// Dragonboat uses RTT (Round Trip Time) to determine the timing of elections and heartbeats.
// These default values are selected according to the RAFT Paper
const (
	electionRTTFactor  = 10
	heartbeatRTTFactor = 1
)

// ToDragonboatConfig converts the ServerConfig to Dragonboat Config
func (c *ServerConfig) ToDragonboatConfig(shardId uint64) config.Config {
	return config.Config{
		ReplicaID:          c.ReplicaID,
		ShardID:            shardId,
		ElectionRTT:        electionRTTFactor,
		HeartbeatRTT:       heartbeatRTTFactor,
		CheckQuorum:        true,
		SnapshotEntries:    c.SnapshotEntries,
		CompactionOverhead: c.CompactionOverhead,
		MaxInMemLogSize:    0,
	}
}

// ToNodeHostConfig creates a NodeHostConfig for Dragonboat
func (c *ServerConfig) ToNodeHostConfig() config.NodeHostConfig {
	return config.NodeHostConfig{
		WALDir:         c.DataDir,
		NodeHostDir:    c.DataDir,
		RTTMillisecond: c.RTTMillisecond,
		RaftAddress:    c.ClusterMembers[c.ReplicaID],
	}
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

type ServerShardType string

const (
	ShardTypeLocalIStore  ServerShardType = "local store"
	ShardTypeRemoteIStore ServerShardType = "remote store"
)

type ServerShard struct {
	// ShardID is the ID of the shard
	ShardID uint64
	// Type selects the store backing the shard
	Type ServerShardType
}

// ServerConfig holds all configuration parameters of a store server.
type ServerConfig struct {
	Shards []ServerShard

	// Dragonboat parameters
	RTTMillisecond     uint64
	SnapshotEntries    uint64
	CompactionOverhead uint64
	DataDir            string
	ReplicaID          uint64
	ClusterMembers     map[uint64]string

	// remote kvStore parameters
	TimeoutSecond int64

	// HTTP api settings
	Endpoint string

	// Logging configuration
	LogLevel string
}

// HasRemoteShard checks if the configuration contains any raft replicated shards
func (c *ServerConfig) HasRemoteShard() bool {
	for _, shard := range c.Shards {
		if shard.Type == ShardTypeRemoteIStore {
			return true
		}
	}
	return false
}

// Validate checks the configuration for obvious mistakes before anything is started
func (c *ServerConfig) Validate() error {
	if len(c.Shards) == 0 {
		return fmt.Errorf("at least one shard is required")
	}
	seen := make(map[uint64]bool, len(c.Shards))
	for _, shard := range c.Shards {
		if seen[shard.ShardID] {
			return fmt.Errorf("shard %d is configured twice", shard.ShardID)
		}
		seen[shard.ShardID] = true
		if shard.Type != ShardTypeLocalIStore && shard.Type != ShardTypeRemoteIStore {
			return fmt.Errorf("invalid shard type %q for shard %d", shard.Type, shard.ShardID)
		}
	}
	if c.HasRemoteShard() {
		if _, ok := c.ClusterMembers[c.ReplicaID]; !ok {
			return fmt.Errorf("replica %d is not part of the cluster members", c.ReplicaID)
		}
		if c.DataDir == "" {
			return fmt.Errorf("a data directory is required for replicated shards")
		}
	}
	return nil
}

func addSection(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
}

func addField(sb *strings.Builder, name, value string) {
	sb.WriteString(fmt.Sprintf("  %-24s: %s\n", name, value))
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection(&sb, "RPC Server")
	addField(&sb, "Endpoint", c.Endpoint)
	addField(&sb, "Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	addSection(&sb, "Logging")
	addField(&sb, "Log Level", c.LogLevel)

	addSection(&sb, "Shards")
	for _, shard := range c.Shards {
		addField(&sb, strconv.FormatUint(shard.ShardID, 10), string(shard.Type))
	}

	if c.HasRemoteShard() {
		addSection(&sb, "Node Identity")
		addField(&sb, "RAFT Address", c.ClusterMembers[c.ReplicaID])
		addField(&sb, "Node ID", strconv.FormatUint(c.ReplicaID, 10))

		addSection(&sb, "RAFT Parameters")
		addField(&sb, "Round Trip Time (ms)", fmt.Sprintf("%d ms", c.RTTMillisecond))
		addField(&sb, "Election RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*electionRTTFactor))
		addField(&sb, "Heartbeat RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*heartbeatRTTFactor))
		addField(&sb, "Snapshot Entries", fmt.Sprintf("%d", c.SnapshotEntries))
		addField(&sb, "Compaction Overhead", fmt.Sprintf("%d", c.CompactionOverhead))

		addSection(&sb, "Storage")
		addField(&sb, "Data Directory", c.DataDir)

		addSection(&sb, "Cluster")
		var keys []uint64
		for k := range c.ClusterMembers {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, k := range keys {
			addField(&sb, fmt.Sprintf("Node %d", k), c.ClusterMembers[k])
		}
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints              []string
	TimeoutSecond          int
	RetryCount             int
	ConnectionsPerEndpoint int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection(&sb, "Client Configuration")
	addField(&sb, "Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField(&sb, "Retry Count", strconv.Itoa(c.RetryCount))
	addField(&sb, "Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.ConnectionsPerEndpoint)))))

	addSection(&sb, "Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(&sb, strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
