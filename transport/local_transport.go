package transport

import (
	"sync"

	"github.com/asiminischi/informix-proxy/common"
	"github.com/asiminischi/informix-proxy/errwrap"
	log "github.com/asiminischi/informix-proxy/logger"
)

// LocalTransports provides an in-process transport for testing. Servers are
// registered by address and connections deliver requests to them directly,
// preserving the per-connection ordering the socket transport provides.
type LocalTransports struct {
	lock                 sync.RWMutex
	servers              map[string]*LocalServer
	connectionIDSequence int
}

func NewLocalTransports() *LocalTransports {
	return &LocalTransports{servers: map[string]*LocalServer{}}
}

func (lt *LocalTransports) NewLocalServer(address string) (*LocalServer, error) {
	lt.lock.Lock()
	defer lt.lock.Unlock()
	if _, exists := lt.servers[address]; exists {
		return nil, errwrap.Errorf("local server already registered at address %s", address)
	}
	server := &LocalServer{address: address, handlers: map[int]RequestHandler{}}
	lt.servers[address] = server
	return server, nil
}

func (lt *LocalTransports) CreateConnection(address string) (Connection, error) {
	lt.lock.Lock()
	defer lt.lock.Unlock()
	server, exists := lt.servers[address]
	if !exists {
		return nil, Error{Msg: "no local server registered at address " + address}
	}
	lt.connectionIDSequence++
	conn := &LocalConnection{
		id:      lt.connectionIDSequence,
		server:  server,
		msgChan: make(chan localRequest, 10),
	}
	conn.deliverExitGroup.Add(1)
	go conn.deliverLoop()
	return conn, nil
}

type LocalServer struct {
	lock     sync.RWMutex
	address  string
	handlers map[int]RequestHandler
}

func (l *LocalServer) Start() error {
	return nil
}

func (l *LocalServer) Stop() error {
	return nil
}

func (l *LocalServer) Address() string {
	return l.address
}

func (l *LocalServer) RegisterHandler(handlerID int, handler RequestHandler) bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	_, exists := l.handlers[handlerID]
	if !exists {
		l.handlers[handlerID] = handler
	}
	return !exists
}

func (l *LocalServer) lookupHandler(handlerID int) (RequestHandler, bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	handler, ok := l.handlers[handlerID]
	return handler, ok
}

type localRequest struct {
	handler     RequestHandler
	request     []byte
	respChannel chan frameHolder
}

// LocalConnection delivers requests to the server's handlers on a single
// goroutine, mirroring the ordering guarantees of a socket connection.
type LocalConnection struct {
	lock             sync.Mutex
	id               int
	server           *LocalServer
	msgChan          chan localRequest
	closed           bool
	deliverExitGroup sync.WaitGroup
}

func (c *LocalConnection) SendRequest(handlerID int, request []byte) (*ResponseStream, error) {
	handler, ok := c.server.lookupHandler(handlerID)
	if !ok {
		return nil, errwrap.Errorf("no handler registered with id %d", handlerID)
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return nil, Error{Msg: "connection closed"}
	}
	ch := make(chan frameHolder, streamChannelSize)
	c.msgChan <- localRequest{handler: handler, request: request, respChannel: ch}
	return &ResponseStream{ch: ch}, nil
}

func (c *LocalConnection) deliverLoop() {
	defer c.deliverExitGroup.Done()
	ctx := &ConnectionContext{ConnectionID: c.id}
	for msg := range c.msgChan {
		respChannel := msg.respChannel
		responseWriter := func(response []byte, last bool, err error) error {
			if err != nil {
				respChannel <- frameHolder{err: maybeConvertError(err), last: true}
				return nil
			}
			respChannel <- frameHolder{payload: response, last: last}
			return nil
		}
		if err := msg.handler(ctx, msg.request, responseWriter); err != nil {
			log.Errorf("local transport handler failed: %v", err)
			respChannel <- frameHolder{err: maybeConvertError(err), last: true}
		}
	}
}

// maybeConvertError mirrors what the socket transport does when it encodes
// and decodes an error frame.
func maybeConvertError(err error) error {
	var perr common.ProxyError
	if errwrap.As(err, &perr) {
		return perr
	}
	return common.NewProxyError(common.InternalError, err.Error())
}

func (c *LocalConnection) Close() error {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return nil
	}
	c.closed = true
	close(c.msgChan)
	c.lock.Unlock()
	c.deliverExitGroup.Wait()
	return nil
}
