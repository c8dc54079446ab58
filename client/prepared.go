package client

import (
	"sync/atomic"

	"github.com/asiminischi/informix-proxy/common"
	log "github.com/asiminischi/informix-proxy/logger"
	"github.com/asiminischi/informix-proxy/transport"
	"github.com/asiminischi/informix-proxy/wire"
)

// Prepare compiles sql on the proxy and returns a statement handle bound to
// this session.
func (s *Session) Prepare(sql string) (*PreparedStatement, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	req := &wire.PrepareRequest{SessionID: s.id, SQL: sql}
	buff, err := transport.SendRPC(s.conn, wire.HandlerPrepareStatement, req.Serialize(nil))
	if err != nil {
		return nil, err
	}
	resp := wire.PrepareResponse{}
	resp.Deserialize(buff, 0)
	if resp.Error != "" {
		return nil, common.NewProxyError(common.StatementError, resp.Error)
	}
	return &PreparedStatement{
		session:    s,
		id:         resp.StatementID,
		paramCount: int(resp.ParameterCount),
	}, nil
}

// PreparedStatement is a statement compiled once on the proxy and executable
// many times with different parameters. It is only valid on the session that
// prepared it.
type PreparedStatement struct {
	session    *Session
	id         string
	paramCount int
	closed     atomic.Bool
}

// ParamCount returns the number of parameter placeholders the statement has.
func (p *PreparedStatement) ParamCount() int {
	return p.paramCount
}

func (p *PreparedStatement) checkOpen() error {
	if p.closed.Load() {
		return common.NewPreconditionError("prepared statement is closed")
	}
	return p.session.checkOpen()
}

// Query executes the statement and buffers the entire result.
func (p *PreparedStatement) Query(params []any, options ...QueryOption) (*QueryResult, error) {
	return collectQuery(func(handler RowHandler) (*QueryMeta, error) {
		return p.runQuery(params, options, handler)
	})
}

// QueryStream executes the statement and pushes each row to handler without
// buffering the result.
func (p *PreparedStatement) QueryStream(params []any, handler RowHandler, options ...QueryOption) (*QueryMeta, error) {
	return p.runQuery(params, options, handler)
}

func (p *PreparedStatement) runQuery(params []any, options []QueryOption, handler RowHandler) (*QueryMeta, error) {
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	if len(params) != p.paramCount {
		return nil, common.NewProxyErrorf(common.PreconditionError, "statement expects %d parameters but %d were provided",
			p.paramCount, len(params))
	}
	opts := applyQueryOptions(options)
	req := &wire.ExecutePreparedRequest{
		StatementID: p.id,
		Parameters:  encodeParameters(params),
		FetchSize:   opts.fetchSize,
		MaxRows:     opts.maxRows,
	}
	stream, err := p.session.conn.SendRequest(wire.HandlerExecutePrepared, req.Serialize(nil))
	if err != nil {
		return nil, err
	}
	return consumeChunks(stream, handler)
}

// Close releases the statement on the proxy. Closing an already closed
// statement, or one whose session has been closed, is a no-op.
func (p *PreparedStatement) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	if p.session.closed.Load() {
		return nil
	}
	req := &wire.ClosePreparedRequest{StatementID: p.id}
	if _, err := transport.SendRPC(p.session.conn, wire.HandlerClosePrepared, req.Serialize(nil)); err != nil {
		log.Debugf("close of prepared statement %s failed: %v", p.id, err)
	}
	return nil
}
