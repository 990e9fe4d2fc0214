package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/world"
)

const (
	handshakeTimeout = 5 * time.Second
	readTimeout      = 60 * time.Second
	writeTimeout     = 5 * time.Second
	sessionBuffer    = 1024
)

// Options параметры сервера наблюдателей
type Options struct {
	AllowRemote bool // Разрешить подключения не с loopback
	Buffer      int  // Очередь сообщений сессии; 0: 1024
	Logger      *logging.Logger
	Registerer  prometheus.Registerer
}

type session struct {
	id  string
	out chan []byte

	mu  sync.Mutex
	sub subscription
}

func (s *session) subscription() subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub
}

func (s *session) setSubscription(sub subscription) {
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
}

// Server транслирует изменения блоков наблюдателям по websocket.
// Является world.Listener: OnBlockChange вызывается в потоке симуляции и
// не блокируется, при переполнении очереди сессии сообщение отбрасывается.
type Server struct {
	upgrader    websocket.Upgrader
	allowRemote bool
	buffer      int
	logger      *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*session
	nextID   atomic.Uint64

	dropped   atomic.Uint64
	dropCount prometheus.Counter
	connected prometheus.Gauge
}

var _ world.Listener = (*Server)(nil)

// NewServer создаёт сервер наблюдателей
func NewServer(opts Options) *Server {
	if opts.Buffer <= 0 {
		opts.Buffer = sessionBuffer
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetComponentLogger("observer")
	}
	s := &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		allowRemote: opts.AllowRemote,
		buffer:      opts.Buffer,
		logger:      opts.Logger,
		sessions:    make(map[string]*session),
		dropCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockworld",
			Subsystem: "observer",
			Name:      "dropped_messages_total",
			Help:      "Сообщения, отброшенные из-за переполнения очереди сессии.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockworld",
			Subsystem: "observer",
			Name:      "sessions",
			Help:      "Подключённые наблюдатели.",
		}),
	}
	if opts.Registerer != nil {
		opts.Registerer.MustRegister(s.dropCount, s.connected)
	}
	return s
}

// OnBlockChange рассылает изменение сессиям, подписанным на его чанк
func (s *Server) OnBlockChange(change world.BlockChange) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.sessions) == 0 {
		return
	}

	var payload []byte
	for _, sess := range s.sessions {
		if !sess.subscription().contains(change.Pos) {
			continue
		}
		if payload == nil {
			var err error
			if payload, err = json.Marshal(blockMsg(change)); err != nil {
				s.logger.Error("ошибка сериализации изменения: %v", err)
				return
			}
		}
		select {
		case sess.out <- payload:
		default:
			s.dropped.Add(1)
			s.dropCount.Inc()
		}
	}
}

// Sessions количество подключённых наблюдателей
func (s *Server) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Dropped количество отброшенных сообщений
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

func (s *Server) join(sub subscription) *session {
	sess := &session{
		id:  fmt.Sprintf("O%d", s.nextID.Add(1)),
		out: make(chan []byte, s.buffer),
		sub: sub,
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	s.connected.Inc()
	return sess
}

func (s *Server) leave(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
	s.connected.Dec()
}

// Handler websocket-эндпоинт. Клиент первым сообщением присылает SUBSCRIBE,
// повторные SUBSCRIBE меняют область подписки.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
		sub, err := readSubscribe(conn)
		if err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
			return
		}

		sess := s.join(subscription{center: sub.Center, radius: sub.Radius})
		defer s.leave(sess)
		s.logger.Info("наблюдатель %s подключён (%s), центр %v радиус %d", sess.id, r.RemoteAddr, sub.Center, sub.Radius)

		hello, _ := json.Marshal(HelloMsg{Type: MsgHello, ProtocolVersion: ProtocolVersion, Session: sess.id})
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		closeCode, closeText := websocket.CloseNormalClosure, "bye"
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			sub, err := readSubscribe(conn)
			if errors.Is(err, errProtocolVersion) {
				closeCode, closeText = websocket.ClosePolicyViolation, "protocol version mismatch"
				break
			}
			if err != nil {
				break
			}
			sess.setSubscription(subscription{center: sub.Center, radius: sub.Radius})
			s.logger.Debug("наблюдатель %s: центр %v радиус %d", sess.id, sub.Center, sub.Radius)
		}

		cancel()
		closeWith(conn, closeCode, closeText)

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		s.logger.Info("наблюдатель %s отключён", sess.id)
	}
}

// errProtocolVersion клиент прислал SUBSCRIBE с чужой версией протокола
var errProtocolVersion = errors.New("protocol version mismatch")

// readSubscribe читает сообщения до корректной подписки. Ошибка либо
// ошибка чтения, либо errProtocolVersion.
func readSubscribe(conn *websocket.Conn) (SubscribeMsg, error) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return SubscribeMsg{}, err
		}
		var sub SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil || sub.Type != MsgSubscribe {
			continue
		}
		if sub.ProtocolVersion != ProtocolVersion {
			return SubscribeMsg{}, errProtocolVersion
		}
		normalizeSubscribe(&sub)
		return sub, nil
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
