package transport

import (
	"crypto/tls"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asiminischi/informix-proxy/common"
	"github.com/asiminischi/informix-proxy/errwrap"
	log "github.com/asiminischi/informix-proxy/logger"
)

/*
Frames are length prefixed with a big-endian uint32; the length excludes the
prefix itself.

Request frame body:
  version       uint16 BE
  correlationID uint64 BE
  handlerID     uint64 BE
  payload       bytes

Response frame body:
  version       uint16 BE
  correlationID uint64 BE
  flags         byte (bit 0 = error frame, bit 1 = last frame)
  payload       bytes

An error frame payload is:
  errorCode     uint16 BE
  msgLength     uint32 BE
  msg           bytes
*/

const (
	requestHeaderSize  = 18
	responseHeaderSize = 11

	dialTimeout  = 5 * time.Second
	writeTimeout = 5 * time.Second
)

// SocketClient creates socket connections to a proxy endpoint.
type SocketClient struct {
	tlsConf *tls.Config
}

func NewSocketClient(tlsConf *tls.Config) *SocketClient {
	return &SocketClient{tlsConf: tlsConf}
}

func (s *SocketClient) CreateConnection(address string) (Connection, error) {
	netConn, err := createNetConnection(address, s.tlsConf)
	if err != nil {
		return nil, err
	}
	sc := &SocketConnection{
		conn:            netConn,
		responseStreams: map[uint64]chan frameHolder{},
	}
	sc.start()
	return sc, nil
}

func createNetConnection(address string, tlsConf *tls.Config) (net.Conn, error) {
	var netConn net.Conn
	var err error
	if tlsConf != nil {
		dialer := &net.Dialer{Timeout: dialTimeout}
		netConn, err = tls.DialWithDialer(dialer, "tcp", address, tlsConf)
	} else {
		netConn, err = net.DialTimeout("tcp", address, dialTimeout)
	}
	if err != nil {
		return nil, Error{Msg: err.Error()}
	}
	if tcpConn, ok := netConn.(*net.TCPConn); ok {
		if err = tcpConn.SetNoDelay(true); err != nil {
			return nil, err
		}
		if err = tcpConn.SetKeepAlive(true); err != nil {
			return nil, err
		}
	}
	return netConn, nil
}

// SocketConnection multiplexes concurrent requests over one socket, matching
// response frames to callers by correlation ID.
type SocketConnection struct {
	lock                  sync.Mutex
	writeLock             sync.Mutex
	conn                  net.Conn
	correlationIDSequence uint64
	responseStreams       map[uint64]chan frameHolder
	closed                bool
	readLoopExitGroup     sync.WaitGroup
}

func (s *SocketConnection) start() {
	s.readLoopExitGroup.Add(1)
	go s.readLoop()
}

func (s *SocketConnection) readLoop() {
	defer s.readLoopExitGroup.Done()
	err := readFrames(s.conn, s.responseHandler)
	s.sendErrorResponsesAndCloseConnection(err)
}

func (s *SocketConnection) responseHandler(buff []byte) error {
	if len(buff) < responseHeaderSize {
		return errwrap.Errorf("truncated response frame: %d bytes", len(buff))
	}
	if version := binary.BigEndian.Uint16(buff); version != transportV1 {
		return errwrap.Errorf("unsupported transport version %d", version)
	}
	correlationID := binary.BigEndian.Uint64(buff[2:])
	flags := buff[10]
	s.lock.Lock()
	ch, ok := s.responseStreams[correlationID]
	if ok && flags&(frameFlagError|frameFlagLast) != 0 {
		delete(s.responseStreams, correlationID)
	}
	s.lock.Unlock()
	if !ok {
		// Cancelled stream - drop the remaining frames
		log.Debugf("dropping response frame for unknown correlation id %d", correlationID)
		return nil
	}
	payload := buff[responseHeaderSize:]
	if flags&frameFlagError != 0 {
		ch <- frameHolder{err: decodeErrorFrame(payload), last: true}
		return nil
	}
	ch <- frameHolder{payload: payload, last: flags&frameFlagLast != 0}
	return nil
}

func decodeErrorFrame(payload []byte) error {
	errorCode := binary.BigEndian.Uint16(payload)
	msgLen := binary.BigEndian.Uint32(payload[2:])
	msg := string(payload[6 : 6+msgLen])
	return common.NewProxyError(common.ErrCode(errorCode), msg)
}

func encodeErrorFrame(buff []byte, err error) []byte {
	errorCode := common.InternalError
	var perr common.ProxyError
	if errwrap.As(err, &perr) {
		errorCode = perr.Code
	}
	buff = binary.BigEndian.AppendUint16(buff, uint16(errorCode))
	msg := err.Error()
	buff = binary.BigEndian.AppendUint32(buff, uint32(len(msg)))
	return append(buff, msg...)
}

// sendErrorResponsesAndCloseConnection fans a transport failure out to every
// in-flight request so no caller blocks forever, then closes the socket.
func (s *SocketConnection) sendErrorResponsesAndCloseConnection(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err != nil && !s.closed {
		log.Warnf("connection read loop failed: %v", err)
	}
	msg := "connection closed"
	if err != nil {
		msg = err.Error()
	}
	for _, ch := range s.responseStreams {
		ch <- frameHolder{err: Error{Msg: msg}, last: true}
	}
	s.responseStreams = map[uint64]chan frameHolder{}
	if closeErr := s.conn.Close(); closeErr != nil {
		// Ignore - connection might already have been closed from other side
	}
}

func (s *SocketConnection) SendRequest(handlerID int, request []byte) (*ResponseStream, error) {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return nil, Error{Msg: "connection closed"}
	}
	correlationID := s.correlationIDSequence
	s.correlationIDSequence++
	ch := make(chan frameHolder, streamChannelSize)
	s.responseStreams[correlationID] = ch
	s.lock.Unlock()
	buff := make([]byte, 4, 4+requestHeaderSize+len(request))
	buff = binary.BigEndian.AppendUint16(buff, transportV1)
	buff = binary.BigEndian.AppendUint64(buff, correlationID)
	buff = binary.BigEndian.AppendUint64(buff, uint64(handlerID))
	buff = append(buff, request...)
	binary.BigEndian.PutUint32(buff, uint32(len(buff)-4))
	if err := s.writeMessage(buff); err != nil {
		s.lock.Lock()
		delete(s.responseStreams, correlationID)
		s.lock.Unlock()
		return nil, err
	}
	return &ResponseStream{
		ch: ch,
		cancel: func() {
			s.lock.Lock()
			delete(s.responseStreams, correlationID)
			s.lock.Unlock()
			// Drain buffered frames so a blocked read loop can progress.
			// Later frames for this correlation ID miss the map and are
			// dropped there.
			for {
				select {
				case <-ch:
				default:
					return
				}
			}
		},
	}, nil
}

func (s *SocketConnection) writeMessage(buff []byte) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return Error{Msg: err.Error()}
	}
	_, err := s.conn.Write(buff)
	if err != nil {
		return Error{Msg: err.Error()}
	}
	return nil
}

func (s *SocketConnection) Close() error {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return nil
	}
	s.closed = true
	s.lock.Unlock()
	err := s.conn.Close()
	s.readLoopExitGroup.Wait()
	return err
}

func readFrames(conn net.Conn, frameHandler func(buff []byte) error) error {
	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			return err
		}
		frameLen := binary.BigEndian.Uint32(header)
		frame := make([]byte, frameLen)
		if _, err := io.ReadFull(conn, frame); err != nil {
			return err
		}
		if err := frameHandler(frame); err != nil {
			return err
		}
	}
}

// SocketServer accepts socket connections and dispatches request frames to
// registered handlers. The client library uses it in tests; a proxy front-end
// would embed it directly.
type SocketServer struct {
	lock               sync.RWMutex
	address            string
	tlsConf            *tls.Config
	listener           net.Listener
	started            bool
	handlers           map[int]RequestHandler
	connections        map[*serverConnection]struct{}
	acceptLoopExitGroup sync.WaitGroup
	connectionIDSequence int64
}

func NewSocketServer(address string, tlsConf *tls.Config) *SocketServer {
	return &SocketServer{
		address:     address,
		tlsConf:     tlsConf,
		handlers:    map[int]RequestHandler{},
		connections: map[*serverConnection]struct{}{},
	}
}

func (s *SocketServer) RegisterHandler(handlerID int, handler RequestHandler) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, exists := s.handlers[handlerID]
	if !exists {
		s.handlers[handlerID] = handler
	}
	return !exists
}

func (s *SocketServer) lookupHandler(handlerID int) (RequestHandler, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	handler, ok := s.handlers[handlerID]
	return handler, ok
}

func (s *SocketServer) Start() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.started {
		return nil
	}
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return errwrap.WithStack(err)
	}
	if s.tlsConf != nil {
		listener = tls.NewListener(listener, s.tlsConf)
	}
	s.listener = listener
	s.started = true
	s.acceptLoopExitGroup.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *SocketServer) Stop() error {
	s.lock.Lock()
	if !s.started {
		s.lock.Unlock()
		return nil
	}
	s.started = false
	err := s.listener.Close()
	conns := make([]*serverConnection, 0, len(s.connections))
	for conn := range s.connections {
		conns = append(conns, conn)
	}
	s.connections = map[*serverConnection]struct{}{}
	s.lock.Unlock()
	for _, conn := range conns {
		conn.stop()
	}
	s.acceptLoopExitGroup.Wait()
	return err
}

// Address returns the listen address, resolved to the actual port when the
// server was started on port zero.
func (s *SocketServer) Address() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.started {
		return s.listener.Addr().String()
	}
	return s.address
}

func (s *SocketServer) acceptLoop() {
	defer s.acceptLoopExitGroup.Done()
	for {
		netConn, err := s.listener.Accept()
		if err != nil {
			// Listener closed on Stop
			return
		}
		conn := &serverConnection{
			id:     int(atomic.AddInt64(&s.connectionIDSequence, 1)),
			server: s,
			conn:   netConn,
		}
		s.lock.Lock()
		if !s.started {
			s.lock.Unlock()
			_ = netConn.Close()
			return
		}
		s.connections[conn] = struct{}{}
		s.lock.Unlock()
		conn.start()
	}
}

func (s *SocketServer) removeConnection(conn *serverConnection) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.connections, conn)
}

type serverConnection struct {
	id        int
	server    *SocketServer
	conn      net.Conn
	writeLock sync.Mutex
	closed    atomic.Bool
}

func (c *serverConnection) start() {
	go func() {
		if err := readFrames(c.conn, c.handleFrame); err != nil {
			if !c.closed.Load() {
				log.Debugf("server connection %d read loop exited: %v", c.id, err)
			}
		}
		c.server.removeConnection(c)
		c.stop()
	}()
}

func (c *serverConnection) stop() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if err := c.conn.Close(); err != nil {
		// Ignore
	}
}

func (c *serverConnection) handleFrame(buff []byte) error {
	if len(buff) < requestHeaderSize {
		return errwrap.Errorf("truncated request frame: %d bytes", len(buff))
	}
	if version := binary.BigEndian.Uint16(buff); version != transportV1 {
		return errwrap.Errorf("unsupported transport version %d", version)
	}
	correlationID := binary.BigEndian.Uint64(buff[2:])
	handlerID := int(binary.BigEndian.Uint64(buff[10:]))
	handler, ok := c.server.lookupHandler(handlerID)
	if !ok {
		return c.writeResponseFrame(correlationID, nil, true, errwrap.Errorf("no handler registered with id %d", handlerID))
	}
	ctx := &ConnectionContext{ConnectionID: c.id}
	responseWriter := func(response []byte, last bool, err error) error {
		return c.writeResponseFrame(correlationID, response, last, err)
	}
	if err := handler(ctx, buff[requestHeaderSize:], responseWriter); err != nil {
		return c.writeResponseFrame(correlationID, nil, true, err)
	}
	return nil
}

func (c *serverConnection) writeResponseFrame(correlationID uint64, response []byte, last bool, err error) error {
	buff := make([]byte, 4, 4+responseHeaderSize+len(response))
	buff = binary.BigEndian.AppendUint16(buff, transportV1)
	buff = binary.BigEndian.AppendUint64(buff, correlationID)
	var flags byte
	if err != nil {
		flags = frameFlagError | frameFlagLast
	} else if last {
		flags = frameFlagLast
	}
	buff = append(buff, flags)
	if err != nil {
		buff = encodeErrorFrame(buff, err)
	} else {
		buff = append(buff, response...)
	}
	binary.BigEndian.PutUint32(buff, uint32(len(buff)-4))
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	if _, werr := c.conn.Write(buff); werr != nil {
		return errwrap.WithStack(werr)
	}
	return nil
}
