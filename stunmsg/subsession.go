package stunmsg

import (
	"net"
	"sync"
	"time"

	"github.com/pion/stun/v3"
)

// SendFunc transmits an encoded message to dst. The datagram socket itself
// is an external collaborator (spec §1/§6); SubSession only ever calls this
// function, never touches a net.Conn directly.
type SendFunc func(dst net.Addr, data []byte) error

// Callbacks is the STUN sub-session's upcall set (§6: on_rx_request,
// on_rx_indication, on_request_complete). on_send_msg is implicit: every
// send goes through Config.Send.
type Callbacks struct {
	OnRxRequest       func(m *Message, src net.Addr)
	OnRxIndication    func(m *Message, src net.Addr)
	OnRequestComplete func(tx *Transaction, resp *Message, src net.Addr, err error)
}

// Config tunes the retransmit timer (request retransmit is explicitly an
// external-collaborator concern per §1, but a Binding probe still needs
// one, so this facade owns a minimal exponential-backoff schedule).
type Config struct {
	RTO            time.Duration
	MaxRetransmits int
	Send           SendFunc
}

// StatusError wraps a STUN ERROR-CODE as a Go error (§4.6: "Failure ...
// with the STUN status").
type StatusError struct {
	Code   int
	Reason string
}

func (e *StatusError) Error() string {
	return "stun error " + itoa(e.Code) + ": " + e.Reason
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b [8]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		b[i] = '-'
	}
	return string(b[i:])
}

// ErrTimeout is returned to OnRequestComplete when a transaction exhausts
// its retransmits without a response.
var ErrTimeout = &StatusError{Code: 0, Reason: "timeout"}

// Transaction tracks one in-flight Binding request.
type Transaction struct {
	ID      stun.TransactionID
	Dst     net.Addr
	Request *Message

	attempt int
	timer   *time.Timer
	done    bool
}

// SubSession is the STUN transaction manager spec §6 names as a consumed
// external collaborator: transaction ID matching, retransmit, and request
// vs. indication vs. response classification. The core (Probe Engine,
// Component) only ever calls SendRequest/HandleIncoming/Destroy on it.
type SubSession struct {
	mu      sync.Mutex
	cfg     Config
	cb      Callbacks
	pending map[stun.TransactionID]*Transaction
}

func NewSubSession(cfg Config, cb Callbacks) *SubSession {
	if cfg.RTO <= 0 {
		cfg.RTO = 500 * time.Millisecond
	}
	if cfg.MaxRetransmits <= 0 {
		cfg.MaxRetransmits = 7
	}
	return &SubSession{
		cfg:     cfg,
		cb:      cb,
		pending: make(map[stun.TransactionID]*Transaction),
	}
}

// SendRequest transmits req to dst and tracks it for matching and
// retransmit. The request's transaction ID must already be set (callers
// get it from BuildBindingRequest).
func (s *SubSession) SendRequest(dst net.Addr, req *Message) (*Transaction, error) {
	s.mu.Lock()
	tx := &Transaction{ID: req.TransactionID, Dst: dst, Request: req}
	s.pending[req.TransactionID] = tx
	s.mu.Unlock()

	if err := s.cfg.Send(dst, req.Raw); err != nil {
		s.mu.Lock()
		delete(s.pending, req.TransactionID)
		s.mu.Unlock()
		return nil, err
	}

	s.armRetransmit(tx)
	return tx, nil
}

func (s *SubSession) armRetransmit(tx *Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.done {
		return
	}
	tx.timer = time.AfterFunc(s.cfg.RTO<<uint(tx.attempt), func() { s.onRetransmitFire(tx) })
}

func (s *SubSession) onRetransmitFire(tx *Transaction) {
	s.mu.Lock()
	if tx.done {
		s.mu.Unlock()
		return
	}
	tx.attempt++
	if tx.attempt > s.cfg.MaxRetransmits {
		delete(s.pending, tx.ID)
		tx.done = true
		s.mu.Unlock()
		s.cb.OnRequestComplete(tx, nil, nil, ErrTimeout)
		return
	}
	s.mu.Unlock()

	if err := s.cfg.Send(tx.Dst, tx.Request.Raw); err != nil {
		s.mu.Lock()
		delete(s.pending, tx.ID)
		tx.done = true
		s.mu.Unlock()
		s.cb.OnRequestComplete(tx, nil, nil, err)
		return
	}
	s.armRetransmit(tx)
}

// HandleIncoming parses data and dispatches it: responses complete the
// matching transaction, requests and indications are handed to the
// configured callbacks. Returns false if data was not a STUN message at
// all, so the caller can fall through to data-plane handling.
func (s *SubSession) HandleIncoming(data []byte, src net.Addr) bool {
	m, err := Parse(data)
	if err != nil {
		return true
	}
	if m == nil {
		return false
	}

	switch {
	case m.IsSuccess() || m.IsErrorClass():
		s.completeTransaction(m, src)
	case m.IsRequest():
		if s.cb.OnRxRequest != nil {
			s.cb.OnRxRequest(m, src)
		}
	case m.IsIndication():
		if s.cb.OnRxIndication != nil {
			s.cb.OnRxIndication(m, src)
		}
	}
	return true
}

func (s *SubSession) completeTransaction(resp *Message, src net.Addr) {
	s.mu.Lock()
	tx, ok := s.pending[resp.TransactionID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, resp.TransactionID)
	tx.done = true
	if tx.timer != nil {
		tx.timer.Stop()
	}
	s.mu.Unlock()

	if resp.IsErrorClass() {
		code, reason, _ := resp.ErrorCode()
		s.cb.OnRequestComplete(tx, resp, src, &StatusError{Code: code, Reason: reason})
		return
	}
	s.cb.OnRequestComplete(tx, resp, src, nil)
}

// Destroy cancels every pending transaction's retransmit timer (§5:
// "destroys each component's STUN sub-session, which cancels pending
// transactions").
func (s *SubSession) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, tx := range s.pending {
		if tx.timer != nil {
			tx.timer.Stop()
		}
		delete(s.pending, id)
	}
}
