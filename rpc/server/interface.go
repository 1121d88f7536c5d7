package server

import (
	"github.com/ValentinKolb/dNotes/lib/store"
	"github.com/ValentinKolb/dNotes/rpc/common"
)

// IRPCServerAdapter translates a request Message into calls on a store.IStore.
// Errors of the store are reported in the Err field of the response.
type IRPCServerAdapter interface {
	Handle(req *common.Message, store store.IStore) (resp *common.Message)
}
