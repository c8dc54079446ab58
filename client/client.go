// Package client is the client library for the database proxy. A Client is
// created once per proxy endpoint; each Connect establishes an independent
// session against a backend database.
package client

import (
	"github.com/asiminischi/informix-proxy/common"
	"github.com/asiminischi/informix-proxy/transport"
	"github.com/asiminischi/informix-proxy/wire"
)

type Client struct {
	address     string
	connFactory transport.ConnectionFactory
}

// NewClient creates a client for the proxy listening at address.
func NewClient(address string, tlsConf TLSConfig) (*Client, error) {
	goTLS, err := tlsConf.ToGoTlsConfig()
	if err != nil {
		return nil, err
	}
	socketClient := transport.NewSocketClient(goTLS)
	return &Client{address: address, connFactory: socketClient.CreateConnection}, nil
}

// NewClientWithTransport creates a client on a caller supplied transport.
func NewClientWithTransport(address string, connFactory transport.ConnectionFactory) *Client {
	return &Client{address: address, connFactory: connFactory}
}

// ConnectConfig identifies the backend database a session is established
// against. Properties are passed through to the backend JDBC driver
// verbatim. A zero PoolSize leaves the pool size to the proxy's default.
type ConnectConfig struct {
	Host       string
	Port       int
	Database   string
	Username   string
	Password   string
	Properties map[string]string
	PoolSize   int
}

// Connect establishes a session. The returned session owns its transport
// connection and must be closed by the caller.
func (c *Client) Connect(cfg ConnectConfig) (*Session, error) {
	conn, err := c.connFactory(c.address)
	if err != nil {
		return nil, err
	}
	req := &wire.ConnectRequest{
		Host:       cfg.Host,
		Port:       int32(cfg.Port),
		Database:   cfg.Database,
		Username:   cfg.Username,
		Password:   cfg.Password,
		Properties: cfg.Properties,
		PoolSize:   int32(cfg.PoolSize),
	}
	buff, err := transport.SendRPC(conn, wire.HandlerConnect, req.Serialize(nil))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	resp := wire.ConnectResponse{}
	resp.Deserialize(buff, 0)
	if !resp.Success {
		_ = conn.Close()
		return nil, common.NewProxyError(common.ConnectionError, resp.Error)
	}
	return &Session{conn: conn, id: resp.SessionID, serverVersion: resp.ServerVersion}, nil
}

// WithSession runs action against a fresh session and closes the session
// exactly once when action returns.
func (c *Client) WithSession(cfg ConnectConfig, action func(session *Session) error) error {
	session, err := c.Connect(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = session.Close()
	}()
	return action(session)
}
