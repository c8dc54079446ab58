package client

import (
	"github.com/asiminischi/informix-proxy/common"
	"github.com/asiminischi/informix-proxy/transport"
	"github.com/asiminischi/informix-proxy/wire"
)

const defaultFetchSize = 100

type queryOptions struct {
	fetchSize int32
	maxRows   int32
}

type QueryOption func(*queryOptions)

// WithFetchSize sets how many rows the proxy packs into one result chunk.
func WithFetchSize(fetchSize int) QueryOption {
	return func(o *queryOptions) {
		o.fetchSize = int32(fetchSize)
	}
}

// WithMaxRows caps the total number of rows the proxy returns. Zero means
// unlimited.
func WithMaxRows(maxRows int) QueryOption {
	return func(o *queryOptions) {
		o.maxRows = int32(maxRows)
	}
}

func applyQueryOptions(options []QueryOption) queryOptions {
	opts := queryOptions{fetchSize: defaultFetchSize}
	for _, option := range options {
		option(&opts)
	}
	return opts
}

// Row is one decoded result row. Values are positionally aligned with the
// column metadata of the result they belong to.
type Row struct {
	columns []wire.ColumnMeta
	values  []any
}

func (r *Row) Len() int {
	return len(r.values)
}

func (r *Row) Value(index int) any {
	return r.values[index]
}

func (r *Row) ColumnName(index int) string {
	return r.columns[index].Name
}

// Get looks a value up by column name. The second return is false when the
// result has no column with that name.
func (r *Row) Get(name string) (any, bool) {
	for i := range r.columns {
		if r.columns[i].Name == name {
			return r.values[i], true
		}
	}
	return nil, false
}

// QueryResult is a fully materialized query result. RowCount is the row
// count the proxy reported, and HasMore is set when the result was truncated
// by a max rows cap.
type QueryResult struct {
	Columns  []wire.ColumnMeta
	Rows     []Row
	RowCount int64
	HasMore  bool
}

// QueryMeta describes a streamed result after its rows have been consumed.
type QueryMeta struct {
	Columns  []wire.ColumnMeta
	RowCount int64
	HasMore  bool
}

// RowHandler receives rows one at a time, in result order, as chunks arrive.
// Returning an error aborts consumption of the stream.
type RowHandler func(row Row) error

// Query executes sql and buffers the entire result.
func (s *Session) Query(sql string, params []any, options ...QueryOption) (*QueryResult, error) {
	return collectQuery(func(handler RowHandler) (*QueryMeta, error) {
		return s.runQuery(sql, params, options, handler)
	})
}

// QueryStream executes sql and pushes each row to handler without buffering
// the result. The returned meta is valid once QueryStream returns.
func (s *Session) QueryStream(sql string, params []any, handler RowHandler, options ...QueryOption) (*QueryMeta, error) {
	return s.runQuery(sql, params, options, handler)
}

func (s *Session) runQuery(sql string, params []any, options []QueryOption, handler RowHandler) (*QueryMeta, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	opts := applyQueryOptions(options)
	req := &wire.QueryRequest{
		SessionID:  s.id,
		SQL:        sql,
		Parameters: encodeParameters(params),
		FetchSize:  opts.fetchSize,
		MaxRows:    opts.maxRows,
	}
	stream, err := s.conn.SendRequest(wire.HandlerExecuteQuery, req.Serialize(nil))
	if err != nil {
		return nil, err
	}
	return consumeChunks(stream, handler)
}

func collectQuery(run func(handler RowHandler) (*QueryMeta, error)) (*QueryResult, error) {
	res := &QueryResult{}
	meta, err := run(func(row Row) error {
		res.Rows = append(res.Rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Columns = meta.Columns
	res.RowCount = meta.RowCount
	res.HasMore = meta.HasMore
	return res, nil
}

// consumeChunks aggregates the chunked response to a query execution. Column
// metadata is taken from whichever chunk carries it and applied to the rows
// of every subsequent chunk; the proxy's row count is taken from each chunk
// in turn so the last chunk's count wins.
func consumeChunks(stream *transport.ResponseStream, handler RowHandler) (*QueryMeta, error) {
	meta := &QueryMeta{}
	for {
		buff, last, err := stream.Receive()
		if err != nil {
			return nil, err
		}
		chunk := wire.QueryChunk{}
		chunk.Deserialize(buff, 0)
		if chunk.Error != "" {
			stream.Cancel()
			return nil, common.NewProxyError(common.QueryError, chunk.Error)
		}
		if chunk.Columns != nil {
			meta.Columns = chunk.Columns
		}
		if len(chunk.Rows) > 0 && meta.Columns == nil {
			stream.Cancel()
			return nil, common.NewProxyError(common.ProtocolError, "received rows before column metadata")
		}
		for i := range chunk.Rows {
			row, err := decodeRow(meta.Columns, &chunk.Rows[i])
			if err != nil {
				stream.Cancel()
				return nil, err
			}
			if err := handler(row); err != nil {
				stream.Cancel()
				return nil, err
			}
		}
		meta.RowCount = chunk.TotalRows
		meta.HasMore = chunk.HasMore
		if last {
			return meta, nil
		}
	}
}

func decodeRow(columns []wire.ColumnMeta, wireRow *wire.Row) (Row, error) {
	if len(wireRow.Values) != len(columns) {
		return Row{}, common.NewProxyErrorf(common.ProtocolError, "row has %d values but result has %d columns",
			len(wireRow.Values), len(columns))
	}
	values := make([]any, len(wireRow.Values))
	for i := range wireRow.Values {
		values[i] = decodeValue(&wireRow.Values[i])
	}
	return Row{columns: columns, values: values}, nil
}
