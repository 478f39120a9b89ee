package ice

import (
	"net"
	"time"

	"github.com/pion/logging"

	"github.com/icelink/agent/stunmsg"
)

const (
	defaultRTO            = 500 * time.Millisecond
	defaultMaxRetransmits = 7
)

// Component is one media-stream component (§3: RTP=1, RTCP=2, ...): a
// bound socket plus the STUN sub-session that sends and receives Binding
// transactions over it (§4.1's add_component).
type Component struct {
	ID           int
	conn         net.PacketConn
	boundAddress TransportAddress
	subsession   *stunmsg.SubSession
	log          logging.LeveledLogger

	keepaliveStop chan struct{}
}

func newComponent(id int, conn net.PacketConn, log logging.LeveledLogger, cb stunmsg.Callbacks) *Component {
	c := &Component{
		ID:           id,
		conn:         conn,
		boundAddress: makeTransportAddress(conn.LocalAddr()),
		log:          log,
	}
	c.subsession = stunmsg.NewSubSession(stunmsg.Config{
		RTO:            defaultRTO,
		MaxRetransmits: defaultMaxRetransmits,
		Send: func(dst net.Addr, data []byte) error {
			_, err := conn.WriteTo(data, dst)
			return err
		},
	}, cb)
	return c
}

// readLoop demultiplexes inbound datagrams into STUN traffic (handed to the
// sub-session) and data-plane traffic (handed to onData), mirroring the
// teacher's base.go read loop. Runs until the socket is closed.
func (c *Component) readLoop(onData func(componentID int, data []byte, src net.Addr)) {
	buf := make([]byte, 1500)
	for {
		n, src, err := c.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		data := append([]byte(nil), buf[:n]...)
		if c.subsession.HandleIncoming(data, src) {
			continue
		}
		if onData != nil {
			onData(c.ID, data, src)
		}
	}
}

func (c *Component) startKeepalive(interval time.Duration, send func()) {
	if interval <= 0 {
		return
	}
	c.keepaliveStop = make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				send()
			case <-c.keepaliveStop:
				return
			}
		}
	}()
}

func (c *Component) stopKeepalive() {
	if c.keepaliveStop != nil {
		close(c.keepaliveStop)
		c.keepaliveStop = nil
	}
}

func (c *Component) close() {
	c.stopKeepalive()
	c.subsession.Destroy()
	c.conn.Close()
}
