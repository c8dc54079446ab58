package client

import (
	"testing"

	"github.com/asiminischi/informix-proxy/common"
	"github.com/asiminischi/informix-proxy/wire"
	"github.com/stretchr/testify/require"
)

func TestConnectAndClose(t *testing.T) {
	proxy, cl := newTestProxy(t)
	session := connectSession(t, cl)
	require.NotEmpty(t, session.ID())
	require.Equal(t, "IBM Informix Dynamic Server 14.10.FC9", session.ServerVersion())
	require.Equal(t, 1, proxy.sessionCount())

	require.NoError(t, session.Close())
	require.Equal(t, 0, proxy.sessionCount())
	require.Equal(t, 1, proxy.disconnectCount)
}

func TestCloseIsIdempotent(t *testing.T) {
	proxy, cl := newTestProxy(t)
	session := connectSession(t, cl)
	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
	require.Equal(t, 1, proxy.disconnectCount)
}

func TestConnectPassesConfigThrough(t *testing.T) {
	proxy, cl := newTestProxy(t)
	session, err := cl.Connect(ConnectConfig{
		Host:       "dbhost",
		Port:       9088,
		Database:   "stores7",
		Username:   "informix",
		Password:   "secret",
		Properties: map[string]string{"LOCK_MODE_WAIT": "30"},
		PoolSize:   5,
	})
	require.NoError(t, err)
	defer closeSession(t, session)

	require.Len(t, proxy.connectRequests, 1)
	req := proxy.connectRequests[0]
	require.Equal(t, "dbhost", req.Host)
	require.Equal(t, int32(9088), req.Port)
	require.Equal(t, "stores7", req.Database)
	require.Equal(t, map[string]string{"LOCK_MODE_WAIT": "30"}, req.Properties)
	require.Equal(t, int32(5), req.PoolSize)
}

func TestConnectFailure(t *testing.T) {
	proxy, cl := newTestProxy(t)
	proxy.connectErr = "invalid credentials for user informix"
	_, err := cl.Connect(ConnectConfig{Host: "dbhost", Database: "stores7"})
	require.Error(t, err)
	require.True(t, common.IsProxyErrorWithCode(err, common.ConnectionError))
	require.Equal(t, "invalid credentials for user informix", err.Error())
	require.Equal(t, 0, proxy.sessionCount())
}

func TestWithSessionClosesExactlyOnce(t *testing.T) {
	proxy, cl := newTestProxy(t)
	var inSession *Session
	err := cl.WithSession(ConnectConfig{Host: "dbhost", Database: "stores7"}, func(session *Session) error {
		inSession = session
		require.Equal(t, 1, proxy.sessionCount())
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 0, proxy.sessionCount())
	require.Equal(t, 1, proxy.disconnectCount)
	// Session must not be usable after WithSession returns
	_, err = inSession.Ping()
	require.True(t, common.IsProxyErrorWithCode(err, common.PreconditionError))
}

func TestWithSessionPropagatesActionError(t *testing.T) {
	proxy, cl := newTestProxy(t)
	actionErr := common.Error("action failed")
	err := cl.WithSession(ConnectConfig{Host: "dbhost", Database: "stores7"}, func(_ *Session) error {
		return actionErr
	})
	require.Equal(t, actionErr, err)
	require.Equal(t, 1, proxy.disconnectCount)
}

func TestPing(t *testing.T) {
	proxy, cl := newTestProxy(t)
	proxy.pingLatency = 3
	session := connectSession(t, cl)
	defer closeSession(t, session)

	res, err := session.Ping()
	require.NoError(t, err)
	require.True(t, res.Alive)
	require.Equal(t, int64(3), res.LatencyMs)
}

func TestPingDeadBackendIsNotAnError(t *testing.T) {
	proxy, cl := newTestProxy(t)
	proxy.pingAlive = false
	session := connectSession(t, cl)
	defer closeSession(t, session)

	res, err := session.Ping()
	require.NoError(t, err)
	require.False(t, res.Alive)
}

func TestExecute(t *testing.T) {
	proxy, cl := newTestProxy(t)
	proxy.updateRows = 3
	session := connectSession(t, cl)
	defer closeSession(t, session)

	rowsAffected, err := session.Execute("update customer set discount = ? where state = ?", 0.1, "CA")
	require.NoError(t, err)
	require.Equal(t, int64(3), rowsAffected)

	require.Len(t, proxy.updateRequests, 1)
	req := proxy.updateRequests[0]
	require.Equal(t, session.ID(), req.SessionID)
	require.Equal(t, []wire.Parameter{
		{Tag: wire.ParameterTagDouble, DoubleValue: 0.1},
		{Tag: wire.ParameterTagString, StringValue: "CA"},
	}, req.Parameters)
}

func TestExecuteError(t *testing.T) {
	proxy, cl := newTestProxy(t)
	proxy.updateErr = "constraint violation on customer_pk"
	session := connectSession(t, cl)
	defer closeSession(t, session)

	_, err := session.Execute("insert into customer values (1)")
	require.Error(t, err)
	require.True(t, common.IsProxyErrorWithCode(err, common.ExecutionError))
	require.Equal(t, "constraint violation on customer_pk", err.Error())
}

func TestBatch(t *testing.T) {
	proxy, cl := newTestProxy(t)
	proxy.batchRows = []int64{1, 2}
	session := connectSession(t, cl)
	defer closeSession(t, session)

	counts, err := session.Batch([]string{
		"insert into state values ('CA', 'California')",
		"update state set sname = 'Oregon' where code in ('OR', 'ORE')",
	})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, counts)
	require.Len(t, proxy.batchRequests, 1)
	require.Len(t, proxy.batchRequests[0].Statements, 2)
}

func TestBatchFailureReturnsNoCounts(t *testing.T) {
	proxy, cl := newTestProxy(t)
	proxy.batchErr = "statement 2 failed, batch rolled back"
	session := connectSession(t, cl)
	defer closeSession(t, session)

	counts, err := session.Batch([]string{"insert into t values (1)", "bad sql"})
	require.Error(t, err)
	require.True(t, common.IsProxyErrorWithCode(err, common.BatchError))
	require.Nil(t, counts)
}

func TestTransactionLifecycle(t *testing.T) {
	proxy, cl := newTestProxy(t)
	session := connectSession(t, cl)
	defer closeSession(t, session)

	require.NoError(t, session.Begin(""))
	require.NoError(t, session.Commit())
	require.NoError(t, session.Begin(Serializable))
	require.NoError(t, session.Rollback())

	require.Equal(t, []string{"READ_COMMITTED", "SERIALIZABLE"}, proxy.isolationLevels)
	require.Equal(t, 1, proxy.commitCount)
	require.Equal(t, 1, proxy.rollbackCount)
}

func TestTransactionFailure(t *testing.T) {
	proxy, cl := newTestProxy(t)
	proxy.commitErr = "transaction was rolled back by the server"
	session := connectSession(t, cl)
	defer closeSession(t, session)

	require.NoError(t, session.Begin(ReadUncommitted))
	err := session.Commit()
	require.Error(t, err)
	require.True(t, common.IsProxyErrorWithCode(err, common.TransactionError))
	require.Equal(t, "transaction was rolled back by the server", err.Error())
}

func TestGetMetadata(t *testing.T) {
	proxy, cl := newTestProxy(t)
	proxy.tables = []wire.TableMeta{
		{Name: "customer", Schema: "informix", Type: "TABLE", Columns: []wire.ColumnMeta{
			{Name: "customer_num", Type: "SERIAL", Precision: 10},
		}},
		{Name: "orders", Schema: "informix", Type: "TABLE"},
	}
	session := connectSession(t, cl)
	defer closeSession(t, session)

	tables, err := session.GetMetadata("")
	require.NoError(t, err)
	require.Len(t, tables, 2)

	tables, err = session.GetMetadata("customer")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	require.Equal(t, "customer", tables[0].Name)
	require.Equal(t, "SERIAL", tables[0].Columns[0].Type)
}

func TestGetMetadataError(t *testing.T) {
	proxy, cl := newTestProxy(t)
	proxy.metadataErr = "catalog not accessible"
	session := connectSession(t, cl)
	defer closeSession(t, session)

	_, err := session.GetMetadata("")
	require.Error(t, err)
	require.True(t, common.IsProxyErrorWithCode(err, common.MetadataError))
}

func TestOperationsOnClosedSession(t *testing.T) {
	_, cl := newTestProxy(t)
	session := connectSession(t, cl)
	require.NoError(t, session.Close())

	_, err := session.Ping()
	requirePrecondition(t, err)
	_, err = session.Query("select 1", nil)
	requirePrecondition(t, err)
	_, err = session.QueryStream("select 1", nil, func(Row) error { return nil })
	requirePrecondition(t, err)
	_, err = session.Execute("delete from t")
	requirePrecondition(t, err)
	_, err = session.Batch([]string{"delete from t"})
	requirePrecondition(t, err)
	requirePrecondition(t, session.Begin(""))
	requirePrecondition(t, session.Commit())
	requirePrecondition(t, session.Rollback())
	_, err = session.GetMetadata("")
	requirePrecondition(t, err)
	_, err = session.Prepare("select 1")
	requirePrecondition(t, err)
}

func requirePrecondition(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	require.True(t, common.IsProxyErrorWithCode(err, common.PreconditionError))
}

func closeSession(t *testing.T, session *Session) {
	t.Helper()
	require.NoError(t, session.Close())
}
