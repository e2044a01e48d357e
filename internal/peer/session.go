package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/btcwire/internal/observability"
	"github.com/danmuck/btcwire/internal/protocol/frame"
	"github.com/danmuck/btcwire/internal/protocol/message"
	"github.com/danmuck/btcwire/internal/protocol/wire"
)

var (
	ErrSelfConnection   = errors.New("peer: connected to self")
	ErrHandshakeTimeout = errors.New("peer: handshake timed out")
	ErrNotEstablished   = errors.New("peer: handshake not complete")
	ErrSessionClosed    = errors.New("peer: session closed")
)

type State int32

const (
	StateIdle State = iota
	StateHandshaking
	StateEstablished
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHandshaking:
		return "handshaking"
	case StateEstablished:
		return "established"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// PeerInfo is what the remote announced in its version message.
type PeerInfo struct {
	Version     int32            `json:"version"`
	UserAgent   string           `json:"user_agent"`
	Services    wire.ServiceFlag `json:"services"`
	StartHeight int32            `json:"start_height"`
	Relay       bool             `json:"relay"`
	Nonce       uint64           `json:"nonce"`
	// AddrRecv is how the remote sees us.
	AddrRecv string `json:"addr_recv"`
	Remote   string `json:"remote"`
}

// Snapshot is a point-in-time view of a session for status reporting.
type Snapshot struct {
	State     string            `json:"state"`
	Network   string            `json:"network"`
	Remote    string            `json:"remote"`
	Since     time.Time         `json:"since"`
	Peer      *PeerInfo         `json:"peer,omitempty"`
	Received  map[string]uint64 `json:"received"`
	Sent      map[string]uint64 `json:"sent"`
	LastError string            `json:"last_error,omitempty"`
}

// Handler receives every message read after the handshake. Returning an error
// ends Run with that error.
type Handler func(message.Message) error

type Session struct {
	conn   net.Conn
	cfg    Config
	log    zerolog.Logger
	stream *frame.Stream

	writeMu sync.Mutex

	mu       sync.Mutex
	state    State
	since    time.Time
	info     *PeerInfo
	received map[message.Command]uint64
	sent     map[message.Command]uint64
	lastErr  error
	// early holds messages that arrived before verack.
	early []message.Message

	closeOnce sync.Once
}

// New wraps an established connection. The handshake has not run yet.
func New(conn net.Conn, cfg Config, logger zerolog.Logger) *Session {
	cfg = cfg.WithDefaults()
	dec := frame.NewDecoder(cfg.Magic)
	return &Session{
		conn:     conn,
		cfg:      cfg,
		log:      logger.With().Str("peer", conn.RemoteAddr().String()).Str("network", cfg.Network).Logger(),
		stream:   frame.NewStream(conn, dec),
		state:    StateIdle,
		since:    time.Now(),
		received: make(map[message.Command]uint64),
		sent:     make(map[message.Command]uint64),
	}
}

// Handshake sends our version and waits until the remote's version and
// verack have both arrived. It answers the remote version with verack and
// pings with pong along the way.
func (s *Session) Handshake(ctx context.Context) (PeerInfo, error) {
	start := time.Now()
	info, err := s.handshake(ctx)
	observability.RecordHandshake(s.cfg.Network, time.Since(start), err)
	if err != nil {
		s.fail(err)
		return PeerInfo{}, err
	}
	s.setState(StateEstablished)
	s.log.Info().
		Int32("version", info.Version).
		Str("user_agent", info.UserAgent).
		Stringer("services", info.Services).
		Int32("start_height", info.StartHeight).
		Dur("took", time.Since(start)).
		Msg("handshake complete")
	return info, nil
}

func (s *Session) handshake(ctx context.Context) (PeerInfo, error) {
	if st := s.State(); st != StateIdle {
		return PeerInfo{}, fmt.Errorf("peer: handshake from state %s", st)
	}
	s.setState(StateHandshaking)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancel()

	nonce, err := s.cfg.Nonces.Next()
	if err != nil {
		return PeerInfo{}, err
	}
	if err := s.Send(ctx, s.versionPayload(nonce)); err != nil {
		return PeerInfo{}, s.handshakeErr(ctx, err)
	}

	var (
		info      PeerInfo
		gotVer    bool
		gotVerAck bool
	)
	for !gotVer || !gotVerAck {
		msg, err := s.read(ctx)
		if err != nil {
			return PeerInfo{}, s.handshakeErr(ctx, err)
		}
		switch p := msg.Payload().(type) {
		case message.VersionMessage:
			if s.cfg.Nonces.Seen(p.Nonce) {
				return PeerInfo{}, ErrSelfConnection
			}
			if gotVer {
				s.log.Warn().Msg("duplicate version ignored")
				continue
			}
			gotVer = true
			info = PeerInfo{
				Version:     p.Version,
				UserAgent:   p.UserAgent.Value,
				Services:    p.Services,
				StartHeight: p.StartHeight,
				Relay:       p.Relay,
				Nonce:       p.Nonce,
				AddrRecv:    p.AddrRecv.String(),
				Remote:      s.conn.RemoteAddr().String(),
			}
			if err := s.Send(ctx, message.VerAck{}); err != nil {
				return PeerInfo{}, s.handshakeErr(ctx, err)
			}
		case message.VerAck:
			gotVerAck = true
		case message.Ping:
			if err := s.Send(ctx, message.Pong{Nonce: p.Nonce}); err != nil {
				return PeerInfo{}, s.handshakeErr(ctx, err)
			}
		default:
			s.mu.Lock()
			s.early = append(s.early, msg)
			s.mu.Unlock()
		}
	}

	s.mu.Lock()
	s.info = &info
	s.mu.Unlock()
	return info, nil
}

func (s *Session) handshakeErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrHandshakeTimeout, s.cfg.HandshakeTimeout, err)
	}
	return err
}

func (s *Session) versionPayload(nonce uint64) message.VersionMessage {
	return s.cfg.VersionMessage(
		nonce,
		netAddress(s.conn.RemoteAddr(), 0),
		netAddress(s.conn.LocalAddr(), s.cfg.Services),
	)
}

func netAddress(addr net.Addr, services wire.ServiceFlag) wire.NetAddress {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return wire.NewNetAddress(tcp, services)
	}
	return wire.NetAddress{Services: services}
}

// Run reads messages until ctx is done, the handler fails, the stream ends
// or, with StopOnSendHeaders, sendheaders arrives. Pings are answered before
// the handler sees them. A clean disconnect returns nil.
func (s *Session) Run(ctx context.Context, handler Handler) error {
	if st := s.State(); st != StateEstablished {
		return fmt.Errorf("%w: state %s", ErrNotEstablished, st)
	}

	s.mu.Lock()
	early := s.early
	s.early = nil
	s.mu.Unlock()
	for _, msg := range early {
		stop, err := s.dispatch(ctx, msg, handler)
		if err != nil || stop {
			return s.finish(err)
		}
	}

	for {
		msg, err := s.read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return s.finish(ctx.Err())
			}
			if errors.Is(err, io.EOF) {
				s.log.Info().Msg("peer disconnected")
				return s.finish(nil)
			}
			if errors.Is(err, net.ErrClosed) {
				return s.finish(ErrSessionClosed)
			}
			return s.finish(err)
		}
		stop, err := s.dispatch(ctx, msg, handler)
		if err != nil || stop {
			return s.finish(err)
		}
	}
}

func (s *Session) dispatch(ctx context.Context, msg message.Message, handler Handler) (bool, error) {
	if p, ok := msg.Payload().(message.Ping); ok {
		if err := s.Send(ctx, message.Pong{Nonce: p.Nonce}); err != nil {
			return false, err
		}
	}
	if handler != nil {
		if err := handler(msg); err != nil {
			return false, err
		}
	}
	if s.cfg.StopOnSendHeaders && msg.Command() == message.CmdSendHeaders {
		s.log.Info().Msg("sendheaders received, stopping")
		return true, nil
	}
	return false, nil
}

func (s *Session) finish(err error) error {
	if err != nil {
		s.fail(err)
	}
	return err
}

// read blocks for one message. Cancelling ctx unblocks it by expiring the
// read deadline.
func (s *Session) read(ctx context.Context) (message.Message, error) {
	deadline := time.Now().Add(s.cfg.ReadTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return message.Message{}, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	msg, err := s.stream.Next()
	if err != nil {
		if kind := decodeErrorKind(err); kind != "" {
			observability.RecordDecodeError(s.cfg.Network, kind)
			s.log.Warn().Err(err).Str("kind", kind).Msg("dropping stream on decode error")
		}
		return message.Message{}, err
	}

	s.mu.Lock()
	s.received[msg.Command()]++
	s.mu.Unlock()
	observability.RecordMessage(s.cfg.Network, observability.DirectionIn, msg.Command().String(), msg.SerializeSize())
	s.log.Debug().Stringer("cmd", msg.Command()).Uint32("len", msg.Length()).Msg("recv")
	return msg, nil
}

// Send encodes payload under the session magic and writes it.
func (s *Session) Send(ctx context.Context, payload message.Payload) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	msg, err := message.New(s.cfg.Magic, payload.Command(), payload)
	if err != nil {
		return err
	}
	raw, err := frame.EncodeMessage(msg)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	deadline := time.Now().Add(s.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if _, err := s.conn.Write(raw); err != nil {
		return fmt.Errorf("peer: write %s: %w", msg.Command(), err)
	}

	s.mu.Lock()
	s.sent[msg.Command()]++
	s.mu.Unlock()
	observability.RecordMessage(s.cfg.Network, observability.DirectionOut, msg.Command().String(), len(raw))
	s.log.Debug().Stringer("cmd", msg.Command()).Int("len", len(raw)).Msg("send")
	return nil
}

// Close closes the connection. It is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.setState(StateClosed)
		err = s.conn.Close()
	})
	return err
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = st
	s.since = time.Now()
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// Snapshot copies the session counters and peer info.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		State:    s.state.String(),
		Network:  s.cfg.Network,
		Remote:   s.conn.RemoteAddr().String(),
		Since:    s.since,
		Received: countsByName(s.received),
		Sent:     countsByName(s.sent),
	}
	if s.info != nil {
		info := *s.info
		snap.Peer = &info
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap
}

func countsByName(in map[message.Command]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for cmd, n := range in {
		out[cmd.String()] = n
	}
	return out
}

// decodeErrorKind classifies a stream error for metrics. Transport errors
// return "".
func decodeErrorKind(err error) string {
	switch {
	case errors.Is(err, frame.ErrChecksumMismatch):
		return "checksum"
	case errors.Is(err, frame.ErrMagicMismatch):
		return "magic"
	case errors.Is(err, message.ErrUnknownCommand):
		return "unknown_command"
	case errors.Is(err, message.ErrMalformedCommand):
		return "malformed_command"
	case errors.Is(err, message.ErrPayloadTooLarge):
		return "too_large"
	case errors.Is(err, message.ErrPayloadLength):
		return "length"
	case errors.Is(err, message.ErrTooManyAddresses):
		return "too_many_addresses"
	case errors.Is(err, wire.ErrNonCanonicalVarInt):
		return "varint"
	case errors.Is(err, wire.ErrVarStringTooLong):
		return "string_too_long"
	default:
		return ""
	}
}
