package common

import (
	"fmt"

	"github.com/asiminischi/informix-proxy/errwrap"
)

// ProxyError is the error type surfaced for every failure reported by the
// database proxy, or raised locally when an operation is attempted against a
// session that is not established. Msg carries the proxy's error text
// verbatim when the proxy reported one.
type ProxyError struct {
	Code ErrCode
	Msg  string
}

func (p ProxyError) Error() string {
	return p.Msg
}

type ErrCode int

const (
	PreconditionError ErrCode = iota + 1000
	ConnectionError
	QueryError
	ProtocolError
	ExecutionError
	BatchError
	TransactionError
	MetadataError
	StatementError
	InternalError ErrCode = iota + 5000
)

func NewProxyError(errorCode ErrCode, msg string) ProxyError {
	return ProxyError{Code: errorCode, Msg: msg}
}

func NewProxyErrorf(errorCode ErrCode, msgFormat string, args ...interface{}) ProxyError {
	return ProxyError{Code: errorCode, Msg: fmt.Sprintf(msgFormat, args...)}
}

func NewPreconditionError(msg string) error {
	return NewProxyError(PreconditionError, msg)
}

func NewQueryErrorf(msgFormat string, args ...interface{}) error {
	return NewProxyErrorf(QueryError, msgFormat, args...)
}

func IsProxyErrorWithCode(err error, code ErrCode) bool {
	var perr ProxyError
	if errwrap.As(err, &perr) {
		return perr.Code == code
	}
	return false
}

func Error(msg string) error {
	return errwrap.New(msg)
}
