package server

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dNotes/lib/db"
	"github.com/ValentinKolb/dNotes/lib/db/engines/maple"
	"github.com/ValentinKolb/dNotes/lib/store"
	"github.com/ValentinKolb/dNotes/lib/store/dstore"
	"github.com/ValentinKolb/dNotes/lib/store/lstore"
	"github.com/ValentinKolb/dNotes/rpc/common"
	"github.com/ValentinKolb/dNotes/rpc/serializer"
	"github.com/ValentinKolb/dNotes/rpc/transport"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	gometrics "github.com/rcrowley/go-metrics"
	"os/signal"
	"runtime"
	"syscall"
	"time"
)

var Logger = logger.GetLogger("rpc")

// statsInterval is how often the per message type timers are logged
var statsInterval = time.Minute

// serverShard is a store served under a shard id together with the adapter handling its requests
type serverShard struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// RPCServer serves one or more store shards over a transport.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]
	timers     gometrics.Registry
	nodeHost   *dragonboat.NodeHost
}

// NewRPCServer creates a new RPC server
//
// Usage:
//
//	s := server.NewRPCServer(
//		config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(ctx); err != nil {
//		...
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
		timers:     gometrics.NewRegistry(),
	}
}

// Handle decodes a request for a shard, lets the shard's adapter execute it and encodes the response.
// Failures are always reported as an error Message, never as a transport error.
func (s *RPCServer) Handle(shardId uint64, req []byte) []byte {
	var msg common.Message
	var respMsg common.Message

	start := time.Now()

	if shard, ok := s.shards.Load(shardId); !ok {
		respMsg = *common.NewErrorResponse(fmt.Sprintf("shard %d not found", shardId))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = *common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		respMsg = *shard.Adapter.Handle(&msg, shard.Store)
		gometrics.GetOrRegisterTimer(msg.MsgType.String(), s.timers).UpdateSince(start)
	}

	val, err := s.serializer.Serialize(respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// Init creates the stores for all configured shards and registers the transport handler.
func (s *RPCServer) Init() error {
	if err := s.config.Validate(); err != nil {
		return err
	}

	dbFactory := func() db.KVDB { return maple.NewMapleDB(nil) }

	// the NodeHost is only needed for raft replicated shards
	if s.config.HasRemoteShard() {
		nh, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.nodeHost = nh
	}

	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	for _, shardConfig := range s.config.Shards {
		switch shardConfig.Type {
		case common.ShardTypeLocalIStore:
			s.shards.Store(shardConfig.ShardID, serverShard{
				Store:   lstore.NewLocalStore(dbFactory),
				Adapter: NewIStoreServerAdapter(),
			})
			Logger.Infof("created local store for shard %d", shardConfig.ShardID)

		case common.ShardTypeRemoteIStore:
			err := s.nodeHost.StartConcurrentReplica(
				s.config.ClusterMembers,
				false,
				dstore.CreateStateMaschineFactory(dbFactory),
				s.config.ToDragonboatConfig(shardConfig.ShardID),
			)
			if err != nil {
				return fmt.Errorf("failed to start shard %d: %w", shardConfig.ShardID, err)
			}
			s.shards.Store(shardConfig.ShardID, serverShard{
				Store:   dstore.NewDistributedStore(s.nodeHost, shardConfig.ShardID, timeout),
				Adapter: NewIStoreServerAdapter(),
			})
			Logger.Infof("started replicated store for shard %d", shardConfig.ShardID)
		}
	}

	s.transport.RegisterHandler(s.Handle)

	Logger.Infof("store server setup completed successfully")
	return nil
}

// Serve initializes the server and blocks until ctx is cancelled or the transport fails.
func (s *RPCServer) Serve(ctx context.Context) error {
	Logger.Infof("Created RPC Server (serializer %s)", s.serializer.Name())
	Logger.Infof("%s", s.config.String())

	if err := s.Init(); err != nil {
		return err
	}
	defer s.Close()

	go s.logStats(ctx)

	return s.transport.Listen(ctx, s.config)
}

// Close stops all raft replicas hosted by this server.
func (s *RPCServer) Close() {
	if s.nodeHost != nil {
		s.nodeHost.Close()
		s.nodeHost = nil
	}
}

// logStats periodically logs count, mean and p99 of every message type
func (s *RPCServer) logStats(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.timers.Each(func(name string, i interface{}) {
				timer, ok := i.(gometrics.Timer)
				if !ok {
					return
				}
				snap := timer.Snapshot()
				Logger.Infof("%-8s count=%d mean=%s p99=%s",
					name, snap.Count(),
					time.Duration(snap.Mean()).Round(time.Microsecond),
					time.Duration(snap.Percentile(0.99)).Round(time.Microsecond))
			})
		}
	}
}
