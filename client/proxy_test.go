package client

import (
	"strings"
	"sync"
	"testing"

	"github.com/asiminischi/informix-proxy/transport"
	"github.com/asiminischi/informix-proxy/wire"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// testProxy emulates the proxy on the in-process transport. Results are
// scripted per test and every request is recorded for assertion.
type testProxy struct {
	lock   sync.Mutex
	server *transport.LocalServer

	sessions  map[string]struct{}
	statements map[string]string

	connectErr  string
	pingAlive   bool
	pingLatency int64
	chunks      []wire.QueryChunk
	updateRows  int64
	updateErr   string
	batchRows   []int64
	batchErr    string
	beginErr    string
	commitErr   string
	rollbackErr string
	metadataErr string
	tables      []wire.TableMeta
	prepareErr  string

	connectRequests  []wire.ConnectRequest
	disconnectCount  int
	queryRequests    []wire.QueryRequest
	updateRequests   []wire.UpdateRequest
	batchRequests    []wire.BatchRequest
	isolationLevels  []string
	commitCount      int
	rollbackCount    int
	preparedRequests []wire.ExecutePreparedRequest
}

func newTestProxy(t *testing.T) (*testProxy, *Client) {
	t.Helper()
	transports := transport.NewLocalTransports()
	server, err := transports.NewLocalServer("proxy-1")
	require.NoError(t, err)
	proxy := &testProxy{
		server:     server,
		sessions:   map[string]struct{}{},
		statements: map[string]string{},
		pingAlive:  true,
	}
	proxy.registerHandlers(t)
	return proxy, NewClientWithTransport("proxy-1", transports.CreateConnection)
}

func (p *testProxy) registerHandlers(t *testing.T) {
	t.Helper()
	require.True(t, p.server.RegisterHandler(wire.HandlerConnect, p.handleConnect))
	require.True(t, p.server.RegisterHandler(wire.HandlerDisconnect, p.handleDisconnect))
	require.True(t, p.server.RegisterHandler(wire.HandlerPing, p.handlePing))
	require.True(t, p.server.RegisterHandler(wire.HandlerExecuteQuery, p.handleExecuteQuery))
	require.True(t, p.server.RegisterHandler(wire.HandlerExecuteUpdate, p.handleExecuteUpdate))
	require.True(t, p.server.RegisterHandler(wire.HandlerExecuteBatch, p.handleExecuteBatch))
	require.True(t, p.server.RegisterHandler(wire.HandlerBeginTransaction, p.handleBeginTransaction))
	require.True(t, p.server.RegisterHandler(wire.HandlerCommit, p.handleCommit))
	require.True(t, p.server.RegisterHandler(wire.HandlerRollback, p.handleRollback))
	require.True(t, p.server.RegisterHandler(wire.HandlerGetMetadata, p.handleGetMetadata))
	require.True(t, p.server.RegisterHandler(wire.HandlerPrepareStatement, p.handlePrepareStatement))
	require.True(t, p.server.RegisterHandler(wire.HandlerExecutePrepared, p.handleExecutePrepared))
	require.True(t, p.server.RegisterHandler(wire.HandlerClosePrepared, p.handleClosePrepared))
}

func (p *testProxy) sessionCount() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.sessions)
}

func (p *testProxy) sessionExists(sessionID string) bool {
	_, exists := p.sessions[sessionID]
	return exists
}

func (p *testProxy) handleConnect(_ *transport.ConnectionContext, request []byte, responseWriter transport.ResponseWriter) error {
	req := wire.ConnectRequest{}
	req.Deserialize(request, 0)
	p.lock.Lock()
	p.connectRequests = append(p.connectRequests, req)
	resp := wire.ConnectResponse{}
	if p.connectErr != "" {
		resp.Error = p.connectErr
	} else {
		sessionID := uuid.New().String()
		p.sessions[sessionID] = struct{}{}
		resp.Success = true
		resp.SessionID = sessionID
		resp.ServerVersion = "IBM Informix Dynamic Server 14.10.FC9"
	}
	p.lock.Unlock()
	return responseWriter(resp.Serialize(nil), true, nil)
}

func (p *testProxy) handleDisconnect(_ *transport.ConnectionContext, request []byte, responseWriter transport.ResponseWriter) error {
	req := wire.DisconnectRequest{}
	req.Deserialize(request, 0)
	p.lock.Lock()
	p.disconnectCount++
	_, existed := p.sessions[req.SessionID]
	delete(p.sessions, req.SessionID)
	p.lock.Unlock()
	resp := wire.DisconnectResponse{Success: existed}
	return responseWriter(resp.Serialize(nil), true, nil)
}

func (p *testProxy) handlePing(_ *transport.ConnectionContext, request []byte, responseWriter transport.ResponseWriter) error {
	req := wire.PingRequest{}
	req.Deserialize(request, 0)
	p.lock.Lock()
	resp := wire.PingResponse{Alive: p.pingAlive, LatencyMs: p.pingLatency}
	p.lock.Unlock()
	return responseWriter(resp.Serialize(nil), true, nil)
}

func (p *testProxy) handleExecuteQuery(_ *transport.ConnectionContext, request []byte, responseWriter transport.ResponseWriter) error {
	req := wire.QueryRequest{}
	req.Deserialize(request, 0)
	p.lock.Lock()
	p.queryRequests = append(p.queryRequests, req)
	chunks := p.chunks
	sessionOK := p.sessionExists(req.SessionID)
	p.lock.Unlock()
	if !sessionOK {
		chunk := wire.QueryChunk{Error: "unknown session " + req.SessionID}
		return responseWriter(chunk.Serialize(nil), true, nil)
	}
	return writeChunks(chunks, responseWriter)
}

func writeChunks(chunks []wire.QueryChunk, responseWriter transport.ResponseWriter) error {
	if len(chunks) == 0 {
		chunks = []wire.QueryChunk{{}}
	}
	for i := range chunks {
		last := i == len(chunks)-1
		if err := responseWriter(chunks[i].Serialize(nil), last, nil); err != nil {
			return err
		}
	}
	return nil
}

func (p *testProxy) handleExecuteUpdate(_ *transport.ConnectionContext, request []byte, responseWriter transport.ResponseWriter) error {
	req := wire.UpdateRequest{}
	req.Deserialize(request, 0)
	p.lock.Lock()
	p.updateRequests = append(p.updateRequests, req)
	resp := wire.UpdateResponse{Error: p.updateErr, RowsAffected: p.updateRows}
	p.lock.Unlock()
	return responseWriter(resp.Serialize(nil), true, nil)
}

func (p *testProxy) handleExecuteBatch(_ *transport.ConnectionContext, request []byte, responseWriter transport.ResponseWriter) error {
	req := wire.BatchRequest{}
	req.Deserialize(request, 0)
	p.lock.Lock()
	p.batchRequests = append(p.batchRequests, req)
	resp := wire.BatchResponse{}
	if p.batchErr != "" {
		resp.Error = p.batchErr
	} else {
		resp.RowsAffected = p.batchRows
	}
	p.lock.Unlock()
	return responseWriter(resp.Serialize(nil), true, nil)
}

func (p *testProxy) handleBeginTransaction(_ *transport.ConnectionContext, request []byte, responseWriter transport.ResponseWriter) error {
	req := wire.BeginTransactionRequest{}
	req.Deserialize(request, 0)
	p.lock.Lock()
	p.isolationLevels = append(p.isolationLevels, req.IsolationLevel)
	resp := wire.TransactionResponse{Success: p.beginErr == "", Error: p.beginErr}
	p.lock.Unlock()
	return responseWriter(resp.Serialize(nil), true, nil)
}

func (p *testProxy) handleCommit(_ *transport.ConnectionContext, request []byte, responseWriter transport.ResponseWriter) error {
	req := wire.CommitRequest{}
	req.Deserialize(request, 0)
	p.lock.Lock()
	p.commitCount++
	resp := wire.TransactionResponse{Success: p.commitErr == "", Error: p.commitErr}
	p.lock.Unlock()
	return responseWriter(resp.Serialize(nil), true, nil)
}

func (p *testProxy) handleRollback(_ *transport.ConnectionContext, request []byte, responseWriter transport.ResponseWriter) error {
	req := wire.RollbackRequest{}
	req.Deserialize(request, 0)
	p.lock.Lock()
	p.rollbackCount++
	resp := wire.TransactionResponse{Success: p.rollbackErr == "", Error: p.rollbackErr}
	p.lock.Unlock()
	return responseWriter(resp.Serialize(nil), true, nil)
}

func (p *testProxy) handleGetMetadata(_ *transport.ConnectionContext, request []byte, responseWriter transport.ResponseWriter) error {
	req := wire.MetadataRequest{}
	req.Deserialize(request, 0)
	p.lock.Lock()
	resp := wire.MetadataResponse{}
	if p.metadataErr != "" {
		resp.Error = p.metadataErr
	} else if req.TableName == "" {
		resp.Tables = p.tables
	} else {
		for _, table := range p.tables {
			if table.Name == req.TableName {
				resp.Tables = append(resp.Tables, table)
			}
		}
	}
	p.lock.Unlock()
	return responseWriter(resp.Serialize(nil), true, nil)
}

func (p *testProxy) handlePrepareStatement(_ *transport.ConnectionContext, request []byte, responseWriter transport.ResponseWriter) error {
	req := wire.PrepareRequest{}
	req.Deserialize(request, 0)
	p.lock.Lock()
	resp := wire.PrepareResponse{}
	if p.prepareErr != "" {
		resp.Error = p.prepareErr
	} else {
		statementID := uuid.New().String()
		p.statements[statementID] = req.SQL
		resp.StatementID = statementID
		resp.ParameterCount = int32(strings.Count(req.SQL, "?"))
	}
	p.lock.Unlock()
	return responseWriter(resp.Serialize(nil), true, nil)
}

func (p *testProxy) handleExecutePrepared(_ *transport.ConnectionContext, request []byte, responseWriter transport.ResponseWriter) error {
	req := wire.ExecutePreparedRequest{}
	req.Deserialize(request, 0)
	p.lock.Lock()
	p.preparedRequests = append(p.preparedRequests, req)
	_, exists := p.statements[req.StatementID]
	chunks := p.chunks
	p.lock.Unlock()
	if !exists {
		chunk := wire.QueryChunk{Error: "unknown statement " + req.StatementID}
		return responseWriter(chunk.Serialize(nil), true, nil)
	}
	return writeChunks(chunks, responseWriter)
}

func (p *testProxy) handleClosePrepared(_ *transport.ConnectionContext, request []byte, responseWriter transport.ResponseWriter) error {
	req := wire.ClosePreparedRequest{}
	req.Deserialize(request, 0)
	p.lock.Lock()
	_, existed := p.statements[req.StatementID]
	delete(p.statements, req.StatementID)
	p.lock.Unlock()
	resp := wire.ClosePreparedResponse{Success: existed}
	return responseWriter(resp.Serialize(nil), true, nil)
}

func connectSession(t *testing.T, client *Client) *Session {
	t.Helper()
	session, err := client.Connect(ConnectConfig{
		Host:     "dbhost",
		Port:     9088,
		Database: "stores7",
		Username: "informix",
		Password: "secret",
	})
	require.NoError(t, err)
	return session
}
