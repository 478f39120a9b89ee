package ice

import (
	"net"
	"time"

	"github.com/pkg/errors"
)

// Conn adapts a component's nominated pair to net.Conn, the way the
// teacher's ChannelConn adapts a gathered pair to the standard library
// interface. Reads block on the component's demuxed data-plane channel;
// writes go straight to the nominated remote address.
type Conn struct {
	session     *Session
	componentID int
	rx          chan []byte
	closed      chan struct{}
	readBuf     []byte
}

// Conn returns a net.Conn writing to and reading from componentID's
// nominated pair. Must be called after the component has a nominated pair
// (see SelectedPair); it is not required to be Completed first to start
// receiving data, since the nominated pair is usable for media as soon as
// it exists (§GLOSSARY "Nomination").
func (s *Session) Conn(componentID int) (*Conn, error) {
	s.mu.Lock()
	if _, ok := s.components[componentID]; !ok {
		s.mu.Unlock()
		return nil, newError(InvalidArgument, "unknown component %d", componentID)
	}
	rx := make(chan []byte, 64)
	s.dataSinks[componentID] = rx
	s.mu.Unlock()

	return &Conn{session: s, componentID: componentID, rx: rx, closed: make(chan struct{})}, nil
}

func (c *Conn) Read(b []byte) (int, error) {
	if len(c.readBuf) > 0 {
		n := copy(b, c.readBuf)
		c.readBuf = c.readBuf[n:]
		return n, nil
	}
	select {
	case data := <-c.rx:
		n := copy(b, data)
		if n < len(data) {
			c.readBuf = data[n:]
		}
		return n, nil
	case <-c.closed:
		return 0, errors.New("ice: conn closed")
	}
}

func (c *Conn) Write(b []byte) (int, error) {
	pair, ok := c.session.SelectedPair(c.componentID)
	if !ok {
		return 0, errors.Errorf("ice: component %d has no nominated pair yet", c.componentID)
	}

	c.session.mu.Lock()
	comp, ok := c.session.components[c.componentID]
	c.session.mu.Unlock()
	if !ok {
		return 0, errors.Errorf("ice: component %d has no socket", c.componentID)
	}

	return comp.conn.WriteTo(b, pair.Remote.Address.netAddr())
}

func (c *Conn) Close() error {
	c.session.mu.Lock()
	delete(c.session.dataSinks, c.componentID)
	c.session.mu.Unlock()
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

func (c *Conn) LocalAddr() net.Addr {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	comp, ok := c.session.components[c.componentID]
	if !ok {
		return nil
	}
	return comp.conn.LocalAddr()
}

func (c *Conn) RemoteAddr() net.Addr {
	pair, ok := c.session.SelectedPair(c.componentID)
	if !ok {
		return nil
	}
	return pair.Remote.Address.netAddr()
}

func (c *Conn) SetDeadline(t time.Time) error      { return nil }
func (c *Conn) SetReadDeadline(t time.Time) error  { return nil }
func (c *Conn) SetWriteDeadline(t time.Time) error { return nil }
