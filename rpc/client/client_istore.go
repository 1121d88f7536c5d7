package client

import (
	"encoding/json"
	"github.com/ValentinKolb/dNotes/lib/db"
	"github.com/ValentinKolb/dNotes/lib/store"
	"github.com/ValentinKolb/dNotes/rpc/common"
	"github.com/ValentinKolb/dNotes/rpc/serializer"
	"github.com/ValentinKolb/dNotes/rpc/transport"
)

// NewRPCStore connects the transport and returns a store.IStore backed by the given shard.
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	Logger.Debugf("connected rpc store for shard %d", shardId)

	return &rpcStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Set(key string, value []byte) error {
	_, err := i.invoke(common.NewSetRequest(key, value))
	return err
}

func (i *rpcStore) HSet(key, field string, value []byte) error {
	_, err := i.invoke(common.NewHSetRequest(key, field, value))
	return err
}

func (i *rpcStore) Delete(key string) (bool, error) {
	resp, err := i.invoke(common.NewDeleteRequest(key))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcStore) Get(key string) ([]byte, bool, error) {
	resp, err := i.invoke(common.NewGetRequest(key))
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Ok, nil
}

func (i *rpcStore) HGet(key, field string) ([]byte, bool, error) {
	resp, err := i.invoke(common.NewHGetRequest(key, field))
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Ok, nil
}

func (i *rpcStore) Has(key string) (bool, error) {
	resp, err := i.invoke(common.NewHasRequest(key))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcStore) Keys(prefix string) ([]string, error) {
	resp, err := i.invoke(common.NewKeysRequest(prefix))
	if err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

func (i *rpcStore) GetDBInfo() (db.DatabaseInfo, error) {
	var info db.DatabaseInfo
	resp, err := i.invoke(common.NewInfoRequest())
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(resp.Value, &info); err != nil {
		return info, store.NewError(store.RetCInternalError, "invalid db info: "+err.Error())
	}
	return info, nil
}
