package m17

/*------------------------------------------------------------------
 *
 * Purpose:   	Provide service to host applications via KISS
 *		protocol over a TCP socket.
 *
 * Description:	This provides a TCP listener for communication with
 *		client applications, bridging their KISS byte streams
 *		to the modem.
 *
 * 		Briefly, a frame is composed of
 *
 *			* FEND (0xC0)
 *			* Contents - with special escape sequences so a
 *				0xC0 byte in the data is not taken as end
 *				of frame.
 *			* FEND
 *
 *		Multiple clients may attach at once. Frames decoded off
 *		the air go to all of them; frames for transmission are
 *		accepted from any of them. A client can go away and come
 *		back again without restarting this application.
 *
 *		The listener is announced over DNS-SD so client
 *		applications can discover it instead of typing in yet
 *		another IP address and port.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

const DNS_SD_SERVICE = "_kiss-tnc._tcp"

// KissTcpServer accepts TCP connections and bridges their KISS byte
// streams to a modem endpoint.
type KissTcpServer struct {
	port     int
	name     string
	listener net.Listener

	mu      sync.Mutex
	clients map[net.Conn]struct{}
	closed  bool
}

// NewKissTcpServer prepares a server on the given TCP port. name is
// the DNS-SD service name; empty selects a default based on the
// hostname. Announcement happens on Serve.
func NewKissTcpServer(port int, name string) *KissTcpServer {
	if name == "" {
		name = default_service_name()
	}
	return &KissTcpServer{
		port:    port,
		name:    name,
		clients: make(map[net.Conn]struct{}),
	}
}

func default_service_name() string {
	var hostname, err = os.Hostname()
	if err != nil {
		return "M17 TNC"
	}
	// on some systems, an FQDN is returned; remove domain part
	hostname, _, _ = strings.Cut(hostname, ".")
	return "M17 TNC on " + hostname
}

// Serve listens for clients and pumps KISS bytes between them and the
// modem until the modem's KISS stream ends or Close is called. Frames
// from the modem fan out to every attached client.
func (s *KissTcpServer) Serve(modem io.ReadWriter) error {
	var listener, err = net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("KISS TCP listen on port %d: %w", s.port, err)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		listener.Close()
		return nil
	}
	s.listener = listener
	s.mu.Unlock()

	s.announce()
	log.Info("ready to accept KISS TCP client applications", "port", s.port)

	go s.accept_loop(modem)

	// Fan incoming KISS frames out to every client.
	var buf = make([]byte, MAX_KISS_LEN)
	for {
		var n, rerr = modem.Read(buf)
		if n > 0 {
			s.broadcast(buf[:n])
		}
		if rerr != nil {
			s.Close()
			if rerr == io.EOF || rerr == os.ErrClosed {
				return nil
			}
			return rerr
		}
	}
}

func (s *KissTcpServer) accept_loop(modem io.Writer) {
	for {
		var conn, err = s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.clients[conn] = struct{}{}
		s.mu.Unlock()
		log.Info("attached KISS TCP client application", "remote", conn.RemoteAddr())
		go s.client_loop(conn, modem)
	}
}

func (s *KissTcpServer) client_loop(conn net.Conn, modem io.Writer) {
	defer s.drop(conn)
	var buf = make([]byte, 4096)
	for {
		var n, err = conn.Read(buf)
		if n > 0 {
			if _, werr := modem.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			log.Info("KISS TCP client application has gone away", "remote", conn.RemoteAddr())
			return
		}
	}
}

func (s *KissTcpServer) broadcast(data []byte) {
	s.mu.Lock()
	var conns = make([]net.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		if _, err := conn.Write(data); err != nil {
			log.Error("error sending to KISS client application, closing connection",
				"remote", conn.RemoteAddr(), "error", err)
			s.drop(conn)
		}
	}
}

func (s *KissTcpServer) drop(conn net.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

// Close stops accepting clients and disconnects the attached ones.
func (s *KissTcpServer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	var listener = s.listener
	var conns = make([]net.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.clients = make(map[net.Conn]struct{})
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	for _, conn := range conns {
		conn.Close()
	}
}

func (s *KissTcpServer) announce() {
	var cfg = dnssd.Config{ //nolint:exhaustruct
		Name: s.name,
		Type: DNS_SD_SERVICE,
		Port: s.port,
	}

	var sv, err = dnssd.NewService(cfg)
	if err != nil {
		log.Error("DNS-SD: failed to create service", "error", err)
		return
	}

	var rp, rperr = dnssd.NewResponder()
	if rperr != nil {
		log.Error("DNS-SD: failed to create responder", "error", rperr)
		return
	}

	if _, err := rp.Add(sv); err != nil {
		log.Error("DNS-SD: failed to add service", "error", err)
		return
	}

	log.Info("DNS-SD: announcing KISS TCP", "port", s.port, "name", s.name)

	go func() {
		if err := rp.Respond(context.Background()); err != nil {
			log.Error("DNS-SD: responder error", "error", err)
		}
	}()
}
