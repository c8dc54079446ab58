package wire

import (
	"github.com/asiminischi/informix-proxy/encoding"
)

// Handler IDs route requests to proxy operations on the transport layer.
const (
	HandlerConnect = iota + 1
	HandlerDisconnect
	HandlerPing
	HandlerExecuteQuery
	HandlerExecuteUpdate
	HandlerExecuteBatch
	HandlerBeginTransaction
	HandlerCommit
	HandlerRollback
	HandlerGetMetadata
	HandlerPrepareStatement
	HandlerExecutePrepared
	HandlerClosePrepared
)

type ConnectRequest struct {
	Host       string
	Port       int32
	Database   string
	Username   string
	Password   string
	Properties map[string]string
	PoolSize   int32
}

func (c *ConnectRequest) Serialize(buff []byte) []byte {
	buff = encoding.AppendStringToBufferLE(buff, c.Host)
	buff = encoding.AppendUint32ToBufferLE(buff, uint32(c.Port))
	buff = encoding.AppendStringToBufferLE(buff, c.Database)
	buff = encoding.AppendStringToBufferLE(buff, c.Username)
	buff = encoding.AppendStringToBufferLE(buff, c.Password)
	buff = encoding.AppendUint32ToBufferLE(buff, uint32(len(c.Properties)))
	for k, v := range c.Properties {
		buff = encoding.AppendStringToBufferLE(buff, k)
		buff = encoding.AppendStringToBufferLE(buff, v)
	}
	return encoding.AppendUint32ToBufferLE(buff, uint32(c.PoolSize))
}

func (c *ConnectRequest) Deserialize(buff []byte, offset int) int {
	c.Host, offset = encoding.ReadStringFromBufferLE(buff, offset)
	var u uint32
	u, offset = encoding.ReadUint32FromBufferLE(buff, offset)
	c.Port = int32(u)
	c.Database, offset = encoding.ReadStringFromBufferLE(buff, offset)
	c.Username, offset = encoding.ReadStringFromBufferLE(buff, offset)
	c.Password, offset = encoding.ReadStringFromBufferLE(buff, offset)
	var n uint32
	n, offset = encoding.ReadUint32FromBufferLE(buff, offset)
	if n > 0 {
		c.Properties = make(map[string]string, n)
		for i := uint32(0); i < n; i++ {
			var k, v string
			k, offset = encoding.ReadStringFromBufferLE(buff, offset)
			v, offset = encoding.ReadStringFromBufferLE(buff, offset)
			c.Properties[k] = v
		}
	}
	u, offset = encoding.ReadUint32FromBufferLE(buff, offset)
	c.PoolSize = int32(u)
	return offset
}

type ConnectResponse struct {
	Success       bool
	Error         string
	SessionID     string
	ServerVersion string
}

func (c *ConnectResponse) Serialize(buff []byte) []byte {
	buff = encoding.AppendBoolToBuffer(buff, c.Success)
	buff = encoding.AppendStringToBufferLE(buff, c.Error)
	buff = encoding.AppendStringToBufferLE(buff, c.SessionID)
	return encoding.AppendStringToBufferLE(buff, c.ServerVersion)
}

func (c *ConnectResponse) Deserialize(buff []byte, offset int) int {
	c.Success, offset = encoding.ReadBoolFromBuffer(buff, offset)
	c.Error, offset = encoding.ReadStringFromBufferLE(buff, offset)
	c.SessionID, offset = encoding.ReadStringFromBufferLE(buff, offset)
	c.ServerVersion, offset = encoding.ReadStringFromBufferLE(buff, offset)
	return offset
}

type DisconnectRequest struct {
	SessionID string
}

func (d *DisconnectRequest) Serialize(buff []byte) []byte {
	return encoding.AppendStringToBufferLE(buff, d.SessionID)
}

func (d *DisconnectRequest) Deserialize(buff []byte, offset int) int {
	d.SessionID, offset = encoding.ReadStringFromBufferLE(buff, offset)
	return offset
}

type DisconnectResponse struct {
	Success bool
}

func (d *DisconnectResponse) Serialize(buff []byte) []byte {
	return encoding.AppendBoolToBuffer(buff, d.Success)
}

func (d *DisconnectResponse) Deserialize(buff []byte, offset int) int {
	d.Success, offset = encoding.ReadBoolFromBuffer(buff, offset)
	return offset
}

type PingRequest struct {
	SessionID string
}

func (p *PingRequest) Serialize(buff []byte) []byte {
	return encoding.AppendStringToBufferLE(buff, p.SessionID)
}

func (p *PingRequest) Deserialize(buff []byte, offset int) int {
	p.SessionID, offset = encoding.ReadStringFromBufferLE(buff, offset)
	return offset
}

type PingResponse struct {
	Alive     bool
	LatencyMs int64
}

func (p *PingResponse) Serialize(buff []byte) []byte {
	buff = encoding.AppendBoolToBuffer(buff, p.Alive)
	return encoding.AppendUint64ToBufferLE(buff, uint64(p.LatencyMs))
}

func (p *PingResponse) Deserialize(buff []byte, offset int) int {
	p.Alive, offset = encoding.ReadBoolFromBuffer(buff, offset)
	var u uint64
	u, offset = encoding.ReadUint64FromBufferLE(buff, offset)
	p.LatencyMs = int64(u)
	return offset
}

type QueryRequest struct {
	SessionID  string
	SQL        string
	Parameters []Parameter
	FetchSize  int32
	MaxRows    int32
}

func (q *QueryRequest) Serialize(buff []byte) []byte {
	buff = encoding.AppendStringToBufferLE(buff, q.SessionID)
	buff = encoding.AppendStringToBufferLE(buff, q.SQL)
	buff = serializeParameters(buff, q.Parameters)
	buff = encoding.AppendUint32ToBufferLE(buff, uint32(q.FetchSize))
	return encoding.AppendUint32ToBufferLE(buff, uint32(q.MaxRows))
}

func (q *QueryRequest) Deserialize(buff []byte, offset int) int {
	q.SessionID, offset = encoding.ReadStringFromBufferLE(buff, offset)
	q.SQL, offset = encoding.ReadStringFromBufferLE(buff, offset)
	q.Parameters, offset = deserializeParameters(buff, offset)
	var u uint32
	u, offset = encoding.ReadUint32FromBufferLE(buff, offset)
	q.FetchSize = int32(u)
	u, offset = encoding.ReadUint32FromBufferLE(buff, offset)
	q.MaxRows = int32(u)
	return offset
}

// QueryChunk is one message of the streamed response to a query execution.
// Columns are populated on at most one chunk of the stream. TotalRows is
// the server's running row count, not this chunk's row count.
type QueryChunk struct {
	Error     string
	Columns   []ColumnMeta
	Rows      []Row
	HasMore   bool
	TotalRows int64
}

func (q *QueryChunk) Serialize(buff []byte) []byte {
	buff = encoding.AppendStringToBufferLE(buff, q.Error)
	buff = serializeColumns(buff, q.Columns)
	buff = encoding.AppendUint32ToBufferLE(buff, uint32(len(q.Rows)))
	for i := range q.Rows {
		buff = q.Rows[i].Serialize(buff)
	}
	buff = encoding.AppendBoolToBuffer(buff, q.HasMore)
	return encoding.AppendUint64ToBufferLE(buff, uint64(q.TotalRows))
}

func (q *QueryChunk) Deserialize(buff []byte, offset int) int {
	q.Error, offset = encoding.ReadStringFromBufferLE(buff, offset)
	q.Columns, offset = deserializeColumns(buff, offset)
	var n uint32
	n, offset = encoding.ReadUint32FromBufferLE(buff, offset)
	if n > 0 {
		q.Rows = make([]Row, n)
		for i := range q.Rows {
			offset = q.Rows[i].Deserialize(buff, offset)
		}
	}
	q.HasMore, offset = encoding.ReadBoolFromBuffer(buff, offset)
	var u uint64
	u, offset = encoding.ReadUint64FromBufferLE(buff, offset)
	q.TotalRows = int64(u)
	return offset
}

type UpdateRequest struct {
	SessionID  string
	SQL        string
	Parameters []Parameter
}

func (u *UpdateRequest) Serialize(buff []byte) []byte {
	buff = encoding.AppendStringToBufferLE(buff, u.SessionID)
	buff = encoding.AppendStringToBufferLE(buff, u.SQL)
	return serializeParameters(buff, u.Parameters)
}

func (u *UpdateRequest) Deserialize(buff []byte, offset int) int {
	u.SessionID, offset = encoding.ReadStringFromBufferLE(buff, offset)
	u.SQL, offset = encoding.ReadStringFromBufferLE(buff, offset)
	u.Parameters, offset = deserializeParameters(buff, offset)
	return offset
}

type UpdateResponse struct {
	Error        string
	RowsAffected int64
}

func (u *UpdateResponse) Serialize(buff []byte) []byte {
	buff = encoding.AppendStringToBufferLE(buff, u.Error)
	return encoding.AppendUint64ToBufferLE(buff, uint64(u.RowsAffected))
}

func (u *UpdateResponse) Deserialize(buff []byte, offset int) int {
	u.Error, offset = encoding.ReadStringFromBufferLE(buff, offset)
	var v uint64
	v, offset = encoding.ReadUint64FromBufferLE(buff, offset)
	u.RowsAffected = int64(v)
	return offset
}

type BatchRequest struct {
	SessionID  string
	Statements []string
}

func (b *BatchRequest) Serialize(buff []byte) []byte {
	buff = encoding.AppendStringToBufferLE(buff, b.SessionID)
	buff = encoding.AppendUint32ToBufferLE(buff, uint32(len(b.Statements)))
	for _, stmt := range b.Statements {
		buff = encoding.AppendStringToBufferLE(buff, stmt)
	}
	return buff
}

func (b *BatchRequest) Deserialize(buff []byte, offset int) int {
	b.SessionID, offset = encoding.ReadStringFromBufferLE(buff, offset)
	var n uint32
	n, offset = encoding.ReadUint32FromBufferLE(buff, offset)
	if n > 0 {
		b.Statements = make([]string, n)
		for i := range b.Statements {
			b.Statements[i], offset = encoding.ReadStringFromBufferLE(buff, offset)
		}
	}
	return offset
}

type BatchResponse struct {
	Error        string
	RowsAffected []int64
}

func (b *BatchResponse) Serialize(buff []byte) []byte {
	buff = encoding.AppendStringToBufferLE(buff, b.Error)
	buff = encoding.AppendUint32ToBufferLE(buff, uint32(len(b.RowsAffected)))
	for _, ra := range b.RowsAffected {
		buff = encoding.AppendUint64ToBufferLE(buff, uint64(ra))
	}
	return buff
}

func (b *BatchResponse) Deserialize(buff []byte, offset int) int {
	b.Error, offset = encoding.ReadStringFromBufferLE(buff, offset)
	var n uint32
	n, offset = encoding.ReadUint32FromBufferLE(buff, offset)
	if n > 0 {
		b.RowsAffected = make([]int64, n)
		for i := range b.RowsAffected {
			var u uint64
			u, offset = encoding.ReadUint64FromBufferLE(buff, offset)
			b.RowsAffected[i] = int64(u)
		}
	}
	return offset
}

type BeginTransactionRequest struct {
	SessionID      string
	IsolationLevel string
}

func (b *BeginTransactionRequest) Serialize(buff []byte) []byte {
	buff = encoding.AppendStringToBufferLE(buff, b.SessionID)
	return encoding.AppendStringToBufferLE(buff, b.IsolationLevel)
}

func (b *BeginTransactionRequest) Deserialize(buff []byte, offset int) int {
	b.SessionID, offset = encoding.ReadStringFromBufferLE(buff, offset)
	b.IsolationLevel, offset = encoding.ReadStringFromBufferLE(buff, offset)
	return offset
}

// TransactionResponse is shared by begin, commit and rollback.
type TransactionResponse struct {
	Success bool
	Error   string
}

func (t *TransactionResponse) Serialize(buff []byte) []byte {
	buff = encoding.AppendBoolToBuffer(buff, t.Success)
	return encoding.AppendStringToBufferLE(buff, t.Error)
}

func (t *TransactionResponse) Deserialize(buff []byte, offset int) int {
	t.Success, offset = encoding.ReadBoolFromBuffer(buff, offset)
	t.Error, offset = encoding.ReadStringFromBufferLE(buff, offset)
	return offset
}

type CommitRequest struct {
	SessionID string
}

func (c *CommitRequest) Serialize(buff []byte) []byte {
	return encoding.AppendStringToBufferLE(buff, c.SessionID)
}

func (c *CommitRequest) Deserialize(buff []byte, offset int) int {
	c.SessionID, offset = encoding.ReadStringFromBufferLE(buff, offset)
	return offset
}

type RollbackRequest struct {
	SessionID string
}

func (r *RollbackRequest) Serialize(buff []byte) []byte {
	return encoding.AppendStringToBufferLE(buff, r.SessionID)
}

func (r *RollbackRequest) Deserialize(buff []byte, offset int) int {
	r.SessionID, offset = encoding.ReadStringFromBufferLE(buff, offset)
	return offset
}

type MetadataRequest struct {
	SessionID string
	TableName string
}

func (m *MetadataRequest) Serialize(buff []byte) []byte {
	buff = encoding.AppendStringToBufferLE(buff, m.SessionID)
	return encoding.AppendStringToBufferLE(buff, m.TableName)
}

func (m *MetadataRequest) Deserialize(buff []byte, offset int) int {
	m.SessionID, offset = encoding.ReadStringFromBufferLE(buff, offset)
	m.TableName, offset = encoding.ReadStringFromBufferLE(buff, offset)
	return offset
}

type MetadataResponse struct {
	Error  string
	Tables []TableMeta
}

func (m *MetadataResponse) Serialize(buff []byte) []byte {
	buff = encoding.AppendStringToBufferLE(buff, m.Error)
	buff = encoding.AppendUint32ToBufferLE(buff, uint32(len(m.Tables)))
	for i := range m.Tables {
		buff = m.Tables[i].Serialize(buff)
	}
	return buff
}

func (m *MetadataResponse) Deserialize(buff []byte, offset int) int {
	m.Error, offset = encoding.ReadStringFromBufferLE(buff, offset)
	var n uint32
	n, offset = encoding.ReadUint32FromBufferLE(buff, offset)
	if n > 0 {
		m.Tables = make([]TableMeta, n)
		for i := range m.Tables {
			offset = m.Tables[i].Deserialize(buff, offset)
		}
	}
	return offset
}

type PrepareRequest struct {
	SessionID string
	SQL       string
}

func (p *PrepareRequest) Serialize(buff []byte) []byte {
	buff = encoding.AppendStringToBufferLE(buff, p.SessionID)
	return encoding.AppendStringToBufferLE(buff, p.SQL)
}

func (p *PrepareRequest) Deserialize(buff []byte, offset int) int {
	p.SessionID, offset = encoding.ReadStringFromBufferLE(buff, offset)
	p.SQL, offset = encoding.ReadStringFromBufferLE(buff, offset)
	return offset
}

type PrepareResponse struct {
	Error          string
	StatementID    string
	ParameterCount int32
}

func (p *PrepareResponse) Serialize(buff []byte) []byte {
	buff = encoding.AppendStringToBufferLE(buff, p.Error)
	buff = encoding.AppendStringToBufferLE(buff, p.StatementID)
	return encoding.AppendUint32ToBufferLE(buff, uint32(p.ParameterCount))
}

func (p *PrepareResponse) Deserialize(buff []byte, offset int) int {
	p.Error, offset = encoding.ReadStringFromBufferLE(buff, offset)
	p.StatementID, offset = encoding.ReadStringFromBufferLE(buff, offset)
	var u uint32
	u, offset = encoding.ReadUint32FromBufferLE(buff, offset)
	p.ParameterCount = int32(u)
	return offset
}

type ExecutePreparedRequest struct {
	StatementID string
	Parameters  []Parameter
	FetchSize   int32
	MaxRows     int32
}

func (e *ExecutePreparedRequest) Serialize(buff []byte) []byte {
	buff = encoding.AppendStringToBufferLE(buff, e.StatementID)
	buff = serializeParameters(buff, e.Parameters)
	buff = encoding.AppendUint32ToBufferLE(buff, uint32(e.FetchSize))
	return encoding.AppendUint32ToBufferLE(buff, uint32(e.MaxRows))
}

func (e *ExecutePreparedRequest) Deserialize(buff []byte, offset int) int {
	e.StatementID, offset = encoding.ReadStringFromBufferLE(buff, offset)
	e.Parameters, offset = deserializeParameters(buff, offset)
	var u uint32
	u, offset = encoding.ReadUint32FromBufferLE(buff, offset)
	e.FetchSize = int32(u)
	u, offset = encoding.ReadUint32FromBufferLE(buff, offset)
	e.MaxRows = int32(u)
	return offset
}

type ClosePreparedRequest struct {
	StatementID string
}

func (c *ClosePreparedRequest) Serialize(buff []byte) []byte {
	return encoding.AppendStringToBufferLE(buff, c.StatementID)
}

func (c *ClosePreparedRequest) Deserialize(buff []byte, offset int) int {
	c.StatementID, offset = encoding.ReadStringFromBufferLE(buff, offset)
	return offset
}

type ClosePreparedResponse struct {
	Success bool
}

func (c *ClosePreparedResponse) Serialize(buff []byte) []byte {
	return encoding.AppendBoolToBuffer(buff, c.Success)
}

func (c *ClosePreparedResponse) Deserialize(buff []byte, offset int) int {
	c.Success, offset = encoding.ReadBoolFromBuffer(buff, offset)
	return offset
}

func serializeParameters(buff []byte, params []Parameter) []byte {
	buff = encoding.AppendUint32ToBufferLE(buff, uint32(len(params)))
	for i := range params {
		buff = params[i].Serialize(buff)
	}
	return buff
}

func deserializeParameters(buff []byte, offset int) ([]Parameter, int) {
	var n uint32
	n, offset = encoding.ReadUint32FromBufferLE(buff, offset)
	if n == 0 {
		return nil, offset
	}
	params := make([]Parameter, n)
	for i := range params {
		offset = params[i].Deserialize(buff, offset)
	}
	return params, offset
}
