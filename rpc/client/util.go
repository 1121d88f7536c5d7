package client

import (
	"fmt"
	"github.com/ValentinKolb/dNotes/lib/store"
	"github.com/ValentinKolb/dNotes/rpc/common"
	"github.com/ValentinKolb/dNotes/rpc/serializer"
	"github.com/ValentinKolb/dNotes/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter stores everything an rpc client needs to reach a shard
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invoke sends a request to the shard and returns the decoded response.
// Error responses and responses of an unexpected type are turned into a *store.Error.
func (a *rpcClientAdapter) invoke(req *common.Message) (*common.Message, error) {
	reqBytes, err := a.serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	respBytes, err := a.transport.Send(a.shardId, reqBytes)
	if err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("rpc %s: %s", req.MsgType, err))
	}

	resp := &common.Message{}
	if err := a.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("rpc %s: invalid response: %s", req.MsgType, err))
	}

	if resp.MsgType == common.MsgTError || resp.Err != "" {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("rpc %s: %s", req.MsgType, resp.Err))
	}

	if resp.MsgType != req.MsgType {
		return nil, store.NewError(store.RetCInternalError,
			fmt.Sprintf("rpc %s: unexpected message type %s", req.MsgType, resp.MsgType))
	}

	return resp, nil
}
