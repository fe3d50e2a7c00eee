package driver

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/cloudshuttle/cqlbulk/pkg/statement"
)

// preparedStmt is Mock's trivial PreparedStatement implementation.
type preparedStmt struct {
	cql string
}

func (p *preparedStmt) CQL() string { return p.cql }

// mockResultFuture is a synchronously-resolved ResultFuture, since Mock
// never actually issues network I/O.
type mockResultFuture struct {
	result *statement.WriteResult
	err    error
}

func (f *mockResultFuture) Await(ctx context.Context) (*statement.WriteResult, error) {
	return f.result, f.err
}

// ExecuteFunc lets tests script per-call behavior: return a result, or
// an error (wrap it in a *driver.Error to control recoverable vs
// unrecoverable classification).
type ExecuteFunc func(item interface{}) (*statement.WriteResult, error)

// Mock is an in-memory Driver for tests. By default it acknowledges
// every statement and batch as a successful write; tests override
// ExecuteFunc to script failures.
type Mock struct {
	mu          sync.Mutex
	ExecuteFunc ExecuteFunc
	Prepared    []string
	Executed    []interface{}
}

// NewMock returns a Mock that always reports success.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Prepare(ctx context.Context, cql string) (PreparedStatement, error) {
	m.mu.Lock()
	m.Prepared = append(m.Prepared, cql)
	m.mu.Unlock()
	return &preparedStmt{cql: cql}, nil
}

func (m *Mock) ExecuteAsync(ctx context.Context, item interface{}) (ResultFuture, error) {
	m.mu.Lock()
	m.Executed = append(m.Executed, item)
	fn := m.ExecuteFunc
	m.mu.Unlock()

	if fn != nil {
		result, err := fn(item)
		if err != nil {
			return nil, err
		}
		return &mockResultFuture{result: result}, nil
	}

	switch v := item.(type) {
	case *statement.Statement:
		return &mockResultFuture{result: statement.EmptySuccessWriteResult(v)}, nil
	case *statement.Batch:
		return &mockResultFuture{result: statement.EmptySuccessBatchWriteResult(v)}, nil
	default:
		return &mockResultFuture{result: &statement.WriteResult{Success: true}}, nil
	}
}

func (m *Mock) Metrics() interface{} { return nil }

// TokenFor computes a deterministic pseudo-token from the routing key
// bytes for test repeatability, not a real partitioner.
func (m *Mock) TokenFor(routingKey []byte) Token {
	if len(routingKey) == 0 {
		return 0
	}
	padded := make([]byte, 8)
	copy(padded, routingKey)
	return Token(binary.BigEndian.Uint64(padded))
}

// Replicas returns a single fixed node for every token.
func (m *Mock) Replicas(t Token) []Node {
	return []Node{"node-1"}
}
