package store

import (
	"github.com/ValentinKolb/dNotes/lib/db/util"
	"github.com/ValentinKolb/dNotes/rpc/common"
	"testing"
)

func TestParseShards(t *testing.T) {
	shards, err := parseShards("100=lstore, 200 = dstore")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(shards) != 2 {
		t.Fatalf("expected 2 shards, got %d", len(shards))
	}
	if shards[0].ShardID != 100 || shards[0].Type != common.ShardTypeLocalIStore {
		t.Errorf("unexpected first shard %+v", shards[0])
	}
	if shards[1].ShardID != 200 || shards[1].Type != common.ShardTypeRemoteIStore {
		t.Errorf("unexpected second shard %+v", shards[1])
	}

	for _, invalid := range []string{"", "100", "x=lstore", "100=btree"} {
		if _, err := parseShards(invalid); err == nil {
			t.Errorf("expected error for %q", invalid)
		}
	}
}

func TestParseClusterMembers(t *testing.T) {
	members, err := parseClusterMembers("node-1=localhost:63001,node-2=localhost:63002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if members[util.HashString("node-2", 0)] != "localhost:63002" {
		t.Errorf("unexpected members %v", members)
	}
	if _, err := parseClusterMembers("node-1"); err == nil {
		t.Errorf("expected error for member without address")
	}
}
