package client

import (
	"sync/atomic"

	"github.com/asiminischi/informix-proxy/common"
	log "github.com/asiminischi/informix-proxy/logger"
	"github.com/asiminischi/informix-proxy/transport"
	"github.com/asiminischi/informix-proxy/wire"
)

// IsolationLevel names a transaction isolation level as the backend spells
// it.
type IsolationLevel string

const (
	ReadUncommitted IsolationLevel = "READ_UNCOMMITTED"
	ReadCommitted   IsolationLevel = "READ_COMMITTED"
	RepeatableRead  IsolationLevel = "REPEATABLE_READ"
	Serializable    IsolationLevel = "SERIALIZABLE"
)

// Session is an established connection to one backend database via the
// proxy. A session is safe for concurrent use. Once closed it stays closed;
// any further operation fails with a precondition error.
type Session struct {
	conn          transport.Connection
	id            string
	serverVersion string
	closed        atomic.Bool
}

// ID returns the session token assigned by the proxy.
func (s *Session) ID() string {
	return s.id
}

// ServerVersion returns the backend version string reported at connect time.
func (s *Session) ServerVersion() string {
	return s.serverVersion
}

func (s *Session) checkOpen() error {
	if s.closed.Load() {
		return common.NewPreconditionError("session is closed")
	}
	return nil
}

// Close releases the session on the proxy and closes the underlying
// connection. Closing an already closed session is a no-op.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	req := &wire.DisconnectRequest{SessionID: s.id}
	if _, err := transport.SendRPC(s.conn, wire.HandlerDisconnect, req.Serialize(nil)); err != nil {
		// Best effort - the proxy reaps sessions whose connection drops
		log.Debugf("disconnect of session %s failed: %v", s.id, err)
	}
	return s.conn.Close()
}

type PingResult struct {
	Alive     bool
	LatencyMs int64
}

// Ping checks the backend behind this session. A dead backend is reported
// as Alive false, not as an error; errors mean the proxy itself could not
// be reached.
func (s *Session) Ping() (PingResult, error) {
	if err := s.checkOpen(); err != nil {
		return PingResult{}, err
	}
	req := &wire.PingRequest{SessionID: s.id}
	buff, err := transport.SendRPC(s.conn, wire.HandlerPing, req.Serialize(nil))
	if err != nil {
		return PingResult{}, err
	}
	resp := wire.PingResponse{}
	resp.Deserialize(buff, 0)
	return PingResult{Alive: resp.Alive, LatencyMs: resp.LatencyMs}, nil
}

// Execute runs an insert, update, delete or DDL statement and returns the
// affected row count.
func (s *Session) Execute(sql string, args ...any) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	req := &wire.UpdateRequest{SessionID: s.id, SQL: sql, Parameters: encodeParameters(args)}
	buff, err := transport.SendRPC(s.conn, wire.HandlerExecuteUpdate, req.Serialize(nil))
	if err != nil {
		return 0, err
	}
	resp := wire.UpdateResponse{}
	resp.Deserialize(buff, 0)
	if resp.Error != "" {
		return 0, common.NewProxyError(common.ExecutionError, resp.Error)
	}
	return resp.RowsAffected, nil
}

// Batch runs statements as one batch and returns the per-statement affected
// row counts. The batch is atomic on the proxy side: on failure no counts
// are returned and none of the statements took effect.
func (s *Session) Batch(statements []string) ([]int64, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	req := &wire.BatchRequest{SessionID: s.id, Statements: statements}
	buff, err := transport.SendRPC(s.conn, wire.HandlerExecuteBatch, req.Serialize(nil))
	if err != nil {
		return nil, err
	}
	resp := wire.BatchResponse{}
	resp.Deserialize(buff, 0)
	if resp.Error != "" {
		return nil, common.NewProxyError(common.BatchError, resp.Error)
	}
	return resp.RowsAffected, nil
}

// Begin starts a transaction on the backend connection behind this session.
// An empty isolation level means ReadCommitted.
func (s *Session) Begin(level IsolationLevel) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if level == "" {
		level = ReadCommitted
	}
	req := &wire.BeginTransactionRequest{SessionID: s.id, IsolationLevel: string(level)}
	return s.sendTransactionRequest(wire.HandlerBeginTransaction, req.Serialize(nil))
}

func (s *Session) Commit() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	req := &wire.CommitRequest{SessionID: s.id}
	return s.sendTransactionRequest(wire.HandlerCommit, req.Serialize(nil))
}

func (s *Session) Rollback() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	req := &wire.RollbackRequest{SessionID: s.id}
	return s.sendTransactionRequest(wire.HandlerRollback, req.Serialize(nil))
}

func (s *Session) sendTransactionRequest(handlerID int, request []byte) error {
	buff, err := transport.SendRPC(s.conn, handlerID, request)
	if err != nil {
		return err
	}
	resp := wire.TransactionResponse{}
	resp.Deserialize(buff, 0)
	if !resp.Success {
		return common.NewProxyError(common.TransactionError, resp.Error)
	}
	return nil
}

// GetMetadata returns table descriptions from the backend catalog. An empty
// tableName lists every table visible to the session; a non-empty one
// restricts the result to that table.
func (s *Session) GetMetadata(tableName string) ([]wire.TableMeta, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	req := &wire.MetadataRequest{SessionID: s.id, TableName: tableName}
	buff, err := transport.SendRPC(s.conn, wire.HandlerGetMetadata, req.Serialize(nil))
	if err != nil {
		return nil, err
	}
	resp := wire.MetadataResponse{}
	resp.Deserialize(buff, 0)
	if resp.Error != "" {
		return nil, common.NewProxyError(common.MetadataError, resp.Error)
	}
	return resp.Tables, nil
}
