package client

import (
	"context"
	"errors"
	"github.com/ValentinKolb/dNotes/lib/store"
	"github.com/ValentinKolb/dNotes/rpc/common"
	"github.com/ValentinKolb/dNotes/rpc/serializer"
	"github.com/ValentinKolb/dNotes/rpc/server"
	"github.com/ValentinKolb/dNotes/rpc/transport"
	"sort"
	"testing"
)

// loopbackTransport connects a client directly to an in-process RPCServer.
type loopbackTransport struct {
	handler transport.ServerHandleFunc
	fail    error
}

func (l *loopbackTransport) RegisterHandler(h transport.ServerHandleFunc)       { l.handler = h }
func (l *loopbackTransport) Listen(context.Context, common.ServerConfig) error { return nil }
func (l *loopbackTransport) Connect(common.ClientConfig) error                 { return nil }
func (l *loopbackTransport) Close() error                                      { return nil }
func (l *loopbackTransport) Send(shardId uint64, req []byte) ([]byte, error) {
	if l.fail != nil {
		return nil, l.fail
	}
	return l.handler(shardId, req), nil
}

func newLoopbackStore(t *testing.T, ser serializer.IRPCSerializer) (store.IStore, *loopbackTransport) {
	t.Helper()
	lt := &loopbackTransport{}
	srv := server.NewRPCServer(common.ServerConfig{
		Shards:        []common.ServerShard{{ShardID: 7, Type: common.ShardTypeLocalIStore}},
		TimeoutSecond: 1,
	}, lt, ser)
	if err := srv.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	s, err := NewRPCStore(7, common.ClientConfig{}, lt, ser)
	if err != nil {
		t.Fatalf("NewRPCStore() error = %v", err)
	}
	return s, lt
}

func TestRPCStoreOperations(t *testing.T) {
	for name, ser := range map[string]serializer.IRPCSerializer{
		"json": serializer.NewJSONSerializer(),
		"gob":  serializer.NewGOBSerializer(),
	} {
		t.Run(name, func(t *testing.T) {
			s, _ := newLoopbackStore(t, ser)

			if err := s.Set("note:a", []byte("A")); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if err := s.Set("note:b", []byte("B")); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if err := s.HSet("user:bob", "wsToken", []byte("tok")); err != nil {
				t.Fatalf("HSet() error = %v", err)
			}

			val, ok, err := s.Get("note:a")
			if err != nil || !ok || string(val) != "A" {
				t.Errorf("Get() = %q, %v, %v", val, ok, err)
			}
			if _, ok, err := s.Get("note:missing"); err != nil || ok {
				t.Errorf("Get() of a missing key = %v, %v", ok, err)
			}

			val, ok, err = s.HGet("user:bob", "wsToken")
			if err != nil || !ok || string(val) != "tok" {
				t.Errorf("HGet() = %q, %v, %v", val, ok, err)
			}

			keys, err := s.Keys("note:")
			if err != nil {
				t.Fatalf("Keys() error = %v", err)
			}
			sort.Strings(keys)
			if len(keys) != 2 || keys[0] != "note:a" || keys[1] != "note:b" {
				t.Errorf("Keys() = %v", keys)
			}

			if has, err := s.Has("note:b"); err != nil || !has {
				t.Errorf("Has() = %v, %v", has, err)
			}

			if deleted, err := s.Delete("note:a"); err != nil || !deleted {
				t.Errorf("Delete() = %v, %v", deleted, err)
			}
			if deleted, err := s.Delete("note:a"); err != nil || deleted {
				t.Errorf("second Delete() = %v, %v", deleted, err)
			}

			info, err := s.GetDBInfo()
			if err != nil {
				t.Fatalf("GetDBInfo() error = %v", err)
			}
			if info.Keys != 2 {
				t.Errorf("GetDBInfo().Keys = %d, want 2", info.Keys)
			}
		})
	}
}

func TestRPCStoreTransportError(t *testing.T) {
	s, lt := newLoopbackStore(t, serializer.NewJSONSerializer())
	lt.fail = errors.New("connection refused")

	_, _, err := s.Get("note:a")
	var se *store.Error
	if !errors.As(err, &se) || se.Code != store.RetCInternalError {
		t.Errorf("expected a *store.Error with internal error code, got %v", err)
	}
}

func TestRPCStoreUnknownShard(t *testing.T) {
	_, lt := newLoopbackStore(t, serializer.NewJSONSerializer())

	other, err := NewRPCStore(8, common.ClientConfig{}, lt, serializer.NewJSONSerializer())
	if err != nil {
		t.Fatalf("NewRPCStore() error = %v", err)
	}
	if err := other.Set("k", []byte("v")); err == nil {
		t.Errorf("expected an error for an unknown shard")
	}
}
