package kvs

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// TxState is the lifecycle position of a transaction
type TxState int

const (
	TxOpen TxState = iota
	TxCommitted
	TxRolledBack
)

func (s TxState) String() string {
	switch s {
	case TxOpen:
		return "open"
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolled back"
	default:
		return "unknown"
	}
}

// OperationType defines types of recorded mutations
type OperationType int

const (
	OpPut OperationType = iota
	OpDelete
)

func (o OperationType) String() string {
	if o == OpDelete {
		return "delete"
	}
	return "put"
}

// TransactionOperation is one mutation recorded by a transaction
type TransactionOperation struct {
	Type OperationType
	Key  string
}

var nextTxnID int64

// txGuard enforces the Open -> Committed|RolledBack lifecycle shared by every backend
type txGuard struct {
	id         int64
	backend    AdapterName
	writable   bool
	state      TxState
	operations []TransactionOperation
	log        *logrus.Entry
}

func newTxGuard(backend AdapterName, writable bool) txGuard {
	id := atomic.AddInt64(&nextTxnID, 1)
	log := logrus.WithFields(logrus.Fields{
		"component": "Transaction",
		"backend":   backend,
		"txn_id":    id,
		"writable":  writable,
	})
	log.Debug("Transaction started")
	return txGuard{
		id:       id,
		backend:  backend,
		writable: writable,
		state:    TxOpen,
		log:      log,
	}
}

func (g *txGuard) Writable() bool { return g.writable }

func (g *txGuard) State() TxState { return g.state }

func (g *txGuard) checkOpen() error {
	if g.state != TxOpen {
		g.log.WithField("state", g.state).Error("Transaction used after it was closed")
		return ErrTxClosed
	}
	return nil
}

func (g *txGuard) checkWrite() error {
	if err := g.checkOpen(); err != nil {
		return err
	}
	if !g.writable {
		g.log.Error("Mutation attempted on read-only transaction")
		return ErrTxReadOnly
	}
	return nil
}

// record logs a mutation for a transaction
func (g *txGuard) record(op OperationType, key []byte) {
	g.operations = append(g.operations, TransactionOperation{Type: op, Key: string(key)})
	g.log.WithFields(logrus.Fields{
		"op_type": op,
		"key":     string(key),
	}).Debug("Operation recorded")
}

func (g *txGuard) finish(state TxState) {
	g.state = state
	log := g.log.WithField("operations", len(g.operations))
	if state == TxCommitted {
		log.Debug("Transaction committed")
	} else {
		log.Debug("Transaction rolled back")
	}
	g.operations = nil
}
