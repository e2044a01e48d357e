package peer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danmuck/btcwire/internal/protocol/frame"
	"github.com/danmuck/btcwire/internal/protocol/message"
	"github.com/danmuck/btcwire/internal/protocol/wire"
	"github.com/danmuck/btcwire/internal/testutil/testlog"
)

const testMagic = 0xdab5bffa

const remoteNonce = 0x5eed5eed5eed5eed

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Network = "regtest"
	cfg.Magic = testMagic
	cfg.UserAgent = "/btcwire-test:0.1.0/"
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.ReadTimeout = 2 * time.Second
	cfg.WriteTimeout = 2 * time.Second
	cfg.StopOnSendHeaders = true
	cfg.Nonces = NewNonceCache(8)
	return cfg
}

// remote is the far end of a net.Pipe speaking the wire protocol. Its reads
// run on their own goroutine so session writes never block on it.
type remote struct {
	conn  net.Conn
	inbox chan message.Message
}

func newPair(t *testing.T, cfg Config) (*Session, *remote) {
	t.Helper()
	logger := testlog.Start(t)
	local, far := net.Pipe()
	s := New(local, cfg, logger)
	r := &remote{conn: far, inbox: make(chan message.Message, 32)}
	go func() {
		defer close(r.inbox)
		for {
			m, err := frame.ReadMessage(far, frame.NewDecoder(testMagic))
			if err != nil {
				return
			}
			r.inbox <- m
		}
	}()
	t.Cleanup(func() {
		_ = s.Close()
		_ = far.Close()
	})
	return s, r
}

func (r *remote) write(p message.Payload) error {
	m, err := message.New(testMagic, p.Command(), p)
	if err != nil {
		return err
	}
	_, err = frame.WriteMessage(r.conn, m)
	return err
}

func (r *remote) expect(cmd message.Command) (message.Message, error) {
	select {
	case m, ok := <-r.inbox:
		if !ok {
			return message.Message{}, errors.New("remote: connection closed")
		}
		if m.Command() != cmd {
			return m, fmt.Errorf("remote: got %s, want %s", m.Command(), cmd)
		}
		return m, nil
	case <-time.After(2 * time.Second):
		return message.Message{}, fmt.Errorf("remote: timed out waiting for %s", cmd)
	}
}

func remoteVersion(nonce uint64) message.VersionMessage {
	return message.VersionMessage{
		Version:     70016,
		Services:    wire.SFNodeNetwork | wire.SFNodeWitness,
		Timestamp:   time.Now().Unix(),
		AddrRecv:    wire.NetAddress{IP: wire.IPv4(127, 0, 0, 1), Port: 50000},
		Nonce:       nonce,
		UserAgent:   wire.NewVarString("/Satoshi:27.0.0/"),
		StartHeight: 101,
		Relay:       true,
	}
}

// acceptHandshake plays the remote side of a handshake, sending extra
// between its version and verack.
func (r *remote) acceptHandshake(extra ...message.Payload) <-chan error {
	errc := make(chan error, 1)
	go func() {
		errc <- func() error {
			if _, err := r.expect(message.CmdVersion); err != nil {
				return err
			}
			if err := r.write(remoteVersion(remoteNonce)); err != nil {
				return err
			}
			for _, p := range extra {
				if err := r.write(p); err != nil {
					return err
				}
			}
			if err := r.write(message.VerAck{}); err != nil {
				return err
			}
			_, err := r.expect(message.CmdVerAck)
			return err
		}()
	}()
	return errc
}

func establish(t *testing.T, s *Session, r *remote, extra ...message.Payload) PeerInfo {
	t.Helper()
	errc := r.acceptHandshake(extra...)
	info, err := s.Handshake(context.Background())
	require.NoError(t, err)
	require.NoError(t, <-errc)
	return info
}

func TestHandshake(t *testing.T) {
	s, r := newPair(t, testConfig())

	errc := make(chan error, 1)
	go func() {
		errc <- func() error {
			m, err := r.expect(message.CmdVersion)
			if err != nil {
				return err
			}
			ours := m.Payload().(message.VersionMessage)
			if ours.UserAgent.Value != "/btcwire-test:0.1.0/" || ours.Version != 70016 {
				return fmt.Errorf("unexpected version %+v", ours)
			}
			if err := r.write(remoteVersion(remoteNonce)); err != nil {
				return err
			}
			if err := r.write(message.Ping{Nonce: 9}); err != nil {
				return err
			}
			if _, err := r.expect(message.CmdVerAck); err != nil {
				return err
			}
			pong, err := r.expect(message.CmdPong)
			if err != nil {
				return err
			}
			if pong.Payload() != (message.Pong{Nonce: 9}) {
				return fmt.Errorf("unexpected pong %+v", pong.Payload())
			}
			return r.write(message.VerAck{})
		}()
	}()

	info, err := s.Handshake(context.Background())
	require.NoError(t, err)
	require.NoError(t, <-errc)

	require.Equal(t, int32(70016), info.Version)
	require.Equal(t, "/Satoshi:27.0.0/", info.UserAgent)
	require.True(t, info.Services.Has(wire.SFNodeWitness))
	require.Equal(t, int32(101), info.StartHeight)
	require.Equal(t, "127.0.0.1:50000", info.AddrRecv)
	require.Equal(t, StateEstablished, s.State())

	snap := s.Snapshot()
	require.Equal(t, "established", snap.State)
	require.Equal(t, uint64(1), snap.Sent["version"])
	require.Equal(t, uint64(1), snap.Sent["verack"])
	require.Equal(t, uint64(1), snap.Sent["pong"])
	require.Equal(t, uint64(1), snap.Received["version"])
	require.NotNil(t, snap.Peer)
	require.Equal(t, info, *snap.Peer)
}

func TestHandshakeDetectsSelfConnection(t *testing.T) {
	cfg := testConfig()
	s, r := newPair(t, cfg)

	echoed := make(chan uint64, 1)
	go func() {
		m, err := r.expect(message.CmdVersion)
		if err != nil {
			return
		}
		echoed <- m.Payload().(message.VersionMessage).Nonce
		// Echo our own version back, nonce included.
		_ = r.write(m.Payload())
	}()

	_, err := s.Handshake(context.Background())
	require.ErrorIs(t, err, ErrSelfConnection)
	require.Contains(t, s.Snapshot().LastError, "self")
	require.True(t, cfg.Nonces.Seen(<-echoed))
	require.Equal(t, 1, cfg.Nonces.Len())
}

func TestHandshakeNonceFromOtherCacheIsNotSelf(t *testing.T) {
	other := NewNonceCache(8)
	foreign, err := other.Next()
	require.NoError(t, err)

	s, r := newPair(t, testConfig())
	errc := make(chan error, 1)
	go func() {
		errc <- func() error {
			if _, err := r.expect(message.CmdVersion); err != nil {
				return err
			}
			if err := r.write(remoteVersion(foreign)); err != nil {
				return err
			}
			if err := r.write(message.VerAck{}); err != nil {
				return err
			}
			_, err := r.expect(message.CmdVerAck)
			return err
		}()
	}()

	info, err := s.Handshake(context.Background())
	require.NoError(t, err)
	require.NoError(t, <-errc)
	require.Equal(t, foreign, info.Nonce)
	require.False(t, sharedNonces.Seen(foreign))
}

func TestHandshakeTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.HandshakeTimeout = 100 * time.Millisecond
	s, r := newPair(t, cfg)

	go func() { _, _ = r.expect(message.CmdVersion) }()

	start := time.Now()
	_, err := s.Handshake(context.Background())
	require.ErrorIs(t, err, ErrHandshakeTimeout)
	require.Less(t, time.Since(start), time.Second)
}

func TestHandshakeTwiceFails(t *testing.T) {
	s, r := newPair(t, testConfig())
	establish(t, s, r)
	_, err := s.Handshake(context.Background())
	require.Error(t, err)
}

func TestRunRepliesToPingAndStopsOnSendHeaders(t *testing.T) {
	s, r := newPair(t, testConfig())
	establish(t, s, r, message.WtxidRelay{}, message.SendAddrV2{})

	var (
		mu   sync.Mutex
		seen []message.Command
	)
	done := make(chan error, 1)
	go func() {
		done <- s.Run(context.Background(), func(m message.Message) error {
			mu.Lock()
			seen = append(seen, m.Command())
			mu.Unlock()
			return nil
		})
	}()

	require.NoError(t, r.write(message.Ping{Nonce: 77}))
	pong, err := r.expect(message.CmdPong)
	require.NoError(t, err)
	require.Equal(t, message.Pong{Nonce: 77}, pong.Payload())

	require.NoError(t, r.write(message.FeeFilter{MinFeeRate: 1000}))
	require.NoError(t, r.write(message.SendHeaders{}))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on sendheaders")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []message.Command{
		message.CmdWtxidRelay,
		message.CmdSendAddrV2,
		message.CmdPing,
		message.CmdFeeFilter,
		message.CmdSendHeaders,
	}, seen)
}

func TestRunHandlerErrorStops(t *testing.T) {
	s, r := newPair(t, testConfig())
	establish(t, s, r)

	boom := errors.New("boom")
	done := make(chan error, 1)
	go func() {
		done <- s.Run(context.Background(), func(message.Message) error { return boom })
	}()
	require.NoError(t, r.write(message.GetAddr{}))
	require.ErrorIs(t, <-done, boom)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s, r := newPair(t, testConfig())
	establish(t, s, r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, nil) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run ignored cancellation")
	}
}

func TestRunDropsStreamOnBadMagic(t *testing.T) {
	s, r := newPair(t, testConfig())
	establish(t, s, r)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), nil) }()

	m, err := message.New(0xd9b4bef9, message.CmdVerAck, message.VerAck{})
	require.NoError(t, err)
	_, err = frame.WriteMessage(r.conn, m)
	require.NoError(t, err)

	require.ErrorIs(t, <-done, frame.ErrMagicMismatch)
	require.Contains(t, s.Snapshot().LastError, "magic")
}

func TestRunRemoteDisconnect(t *testing.T) {
	s, r := newPair(t, testConfig())
	establish(t, s, r)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), nil) }()
	require.NoError(t, r.conn.Close())
	require.NoError(t, <-done)
}

func TestRunBeforeHandshake(t *testing.T) {
	s, _ := newPair(t, testConfig())
	require.ErrorIs(t, s.Run(context.Background(), nil), ErrNotEstablished)
}

func TestSendAfterClose(t *testing.T) {
	s, _ := newPair(t, testConfig())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Send(context.Background(), message.Ping{Nonce: 1}), ErrSessionClosed)
	require.Equal(t, StateClosed, s.State())
}

func TestDecodeErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&frame.ChecksumError{}, "checksum"},
		{fmt.Errorf("%w: x", frame.ErrMagicMismatch), "magic"},
		{&message.UnknownCommandError{}, "unknown_command"},
		{message.ErrMalformedCommand, "malformed_command"},
		{message.ErrPayloadTooLarge, "too_large"},
		{&message.PayloadLengthError{}, "length"},
		{wire.ErrNonCanonicalVarInt, "varint"},
		{errors.New("connection reset"), ""},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, decodeErrorKind(tc.err), tc.err.Error())
	}
}
