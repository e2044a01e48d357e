package frame

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"io"
	"net"
	"net/netip"
	"testing"
	"time"

	btcwire "github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/btcwire/internal/protocol/checksum"
	"github.com/danmuck/btcwire/internal/protocol/message"
	"github.com/danmuck/btcwire/internal/protocol/wire"
)

const mainnet = 0xd9b4bef9

func versionPayload() message.VersionMessage {
	return message.VersionMessage{
		Version:   70016,
		Services:  wire.SFNodeNetwork | wire.SFNodeWitness | wire.SFNodeNetworkLimited,
		Timestamp: 1680126222,
		AddrRecv: wire.NetAddress{
			IP:   wire.IPFromAddr(netip.MustParseAddr("2a02:8308:900c:5900:b59b:b551:1c26:2a8")),
			Port: 56190,
		},
		AddrFrom: wire.NetAddress{
			Services: 1033,
			IP:       wire.IPFromAddr(netip.MustParseAddr("2001:db8::2")),
			Port:     8333,
		},
		Nonce:       6940951773072803923,
		UserAgent:   wire.NewVarString("/Satoshi:23.0.0/"),
		StartHeight: 783080,
		Relay:       true,
	}
}

func mustMessage(t *testing.T, p message.Payload) message.Message {
	t.Helper()
	m, err := message.New(mainnet, p.Command(), p)
	require.NoError(t, err)
	return m
}

func mustEncode(t *testing.T, m message.Message) []byte {
	t.Helper()
	b, err := EncodeMessage(m)
	require.NoError(t, err)
	return b
}

func TestDecodeNextEmptyBuffer(t *testing.T) {
	var buf bytes.Buffer
	_, ok, err := NewDecoder(mainnet).DecodeNext(&buf)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDecodeNextByteByByte(t *testing.T) {
	want := mustMessage(t, versionPayload())
	raw := mustEncode(t, want)
	dec := NewDecoder(mainnet)

	var buf bytes.Buffer
	for i, b := range raw {
		buf.WriteByte(b)
		got, ok, err := dec.DecodeNext(&buf)
		require.NoError(t, err, "byte %d", i)
		if i < len(raw)-1 {
			require.False(t, ok, "byte %d", i)
			require.Equal(t, i+1, buf.Len(), "nothing consumed before a whole message")
			continue
		}
		require.True(t, ok)
		require.Equal(t, want, got)
		require.Zero(t, buf.Len())
	}
}

func TestDecodeNextDrainsOneMessagePerCall(t *testing.T) {
	version := mustMessage(t, versionPayload())
	verack := mustMessage(t, message.VerAck{})
	partialPing := mustEncode(t, mustMessage(t, message.Ping{Nonce: 7}))[:10]

	var buf bytes.Buffer
	buf.Write(mustEncode(t, version))
	buf.Write(mustEncode(t, verack))
	buf.Write(partialPing)
	dec := NewDecoder(mainnet)

	got, ok, err := dec.DecodeNext(&buf)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, version, got)
	require.Equal(t, message.HeaderSize+len(partialPing), buf.Len())

	got, ok, err = dec.DecodeNext(&buf)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, verack, got)
	require.Equal(t, partialPing, buf.Bytes())

	_, ok, err = dec.DecodeNext(&buf)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, partialPing, buf.Bytes())
}

func TestDecodeNextEveryPrefixIsNotYet(t *testing.T) {
	var stream []byte
	for _, p := range []message.Payload{versionPayload(), message.VerAck{}, message.Ping{Nonce: 1}, message.FeeFilter{MinFeeRate: 1000}} {
		stream = append(stream, mustEncode(t, mustMessage(t, p))...)
	}
	first := message.HeaderSize + int(mustMessage(t, versionPayload()).Length())
	dec := NewDecoder(mainnet)
	for i := 0; i < first; i++ {
		buf := bytes.NewBuffer(append([]byte(nil), stream[:i]...))
		_, ok, err := dec.DecodeNext(buf)
		require.NoError(t, err, "prefix %d", i)
		require.False(t, ok, "prefix %d", i)
		require.Equal(t, i, buf.Len())
	}
}

func TestDecodeNextUnknownCommandIsFatal(t *testing.T) {
	raw := mustEncode(t, mustMessage(t, message.VerAck{}))
	copy(raw[4:16], "inv\x00\x00\x00\x00\x00\x00\x00\x00\x00")
	buf := bytes.NewBuffer(raw)

	_, ok, err := NewDecoder(mainnet).DecodeNext(buf)
	require.False(t, ok)
	require.ErrorIs(t, err, message.ErrUnknownCommand)
	require.Equal(t, message.HeaderSize, buf.Len(), "buffer untouched on error")
}

func TestDecodeNextChecksumMismatch(t *testing.T) {
	raw := mustEncode(t, mustMessage(t, message.Ping{Nonce: 99}))
	raw[len(raw)-1] ^= 0xff

	_, _, err := NewDecoder(mainnet).DecodeNext(bytes.NewBuffer(append([]byte(nil), raw...)))
	var sumErr *ChecksumError
	require.ErrorAs(t, err, &sumErr)
	require.ErrorIs(t, err, ErrChecksumMismatch)
	require.Equal(t, message.CmdPing, sumErr.Command)

	dec := NewDecoder(mainnet)
	dec.SkipChecksum = true
	got, ok, err := dec.DecodeNext(bytes.NewBuffer(raw))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, message.Ping{Nonce: 99 ^ (0xff << 56)}, got.Payload())
}

func TestDecodeNextMagicMismatch(t *testing.T) {
	raw := mustEncode(t, mustMessage(t, message.VerAck{}))

	_, _, err := NewDecoder(0x0709110b).DecodeNext(bytes.NewBuffer(append([]byte(nil), raw...)))
	require.ErrorIs(t, err, ErrMagicMismatch)

	got, ok, err := NewDecoder(0).DecodeNext(bytes.NewBuffer(raw))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(mainnet), got.Magic())
}

func TestDecodeNextPayloadCap(t *testing.T) {
	raw := mustEncode(t, mustMessage(t, versionPayload()))
	dec := NewDecoder(mainnet)
	dec.MaxPayload = 64

	// Only the header is present; the cap applies before the body arrives.
	_, _, err := dec.DecodeNext(bytes.NewBuffer(raw[:message.HeaderSize]))
	require.ErrorIs(t, err, message.ErrPayloadTooLarge)
}

func TestDecodeNextLengthDisagreesWithPayload(t *testing.T) {
	// A ping whose header declares 9 bytes: one trailing byte inside the frame.
	body := []byte{1, 0, 0, 0, 0, 0, 0, 0, 0}
	h := message.Header{Magic: mainnet, Command: message.CmdPing, Length: uint32(len(body))}
	var buf bytes.Buffer
	_, err := h.Encode(wire.Grow(&buf))
	require.NoError(t, err)
	buf.Write(body)

	dec := NewDecoder(mainnet)
	dec.SkipChecksum = true
	_, ok, err := dec.DecodeNext(&buf)
	require.False(t, ok)
	require.ErrorIs(t, err, message.ErrPayloadLength)
}

func TestDecodedInvalidUserAgentEncodesBack(t *testing.T) {
	raw := mustEncode(t, mustMessage(t, versionPayload()))
	at := bytes.Index(raw, []byte("Satoshi"))
	raw[at] = 0xff
	binary.LittleEndian.PutUint32(raw[20:24], checksum.Sum(raw[message.HeaderSize:]))

	msg, ok, err := NewDecoder(mainnet).DecodeNext(bytes.NewBuffer(append([]byte(nil), raw...)))
	require.NoError(t, err)
	require.True(t, ok)

	again, err := EncodeMessage(msg)
	require.NoError(t, err)
	require.Equal(t, raw, again)

	// The re-encoded frame passes the checksum check again.
	_, ok, err = NewDecoder(mainnet).DecodeNext(bytes.NewBuffer(again))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestReadWriteMessage(t *testing.T) {
	var buf bytes.Buffer
	for _, p := range []message.Payload{versionPayload(), message.VerAck{}, message.Pong{Nonce: 3}} {
		_, err := WriteMessage(&buf, mustMessage(t, p))
		require.NoError(t, err)
	}
	for _, cmd := range []message.Command{message.CmdVersion, message.CmdVerAck, message.CmdPong} {
		m, err := ReadMessage(&buf, NewDecoder(mainnet))
		require.NoError(t, err)
		require.Equal(t, cmd, m.Command())
	}
	_, err := ReadMessage(&buf, NewDecoder(mainnet))
	require.ErrorIs(t, err, io.EOF)
}

func TestReadMessageTruncated(t *testing.T) {
	raw := mustEncode(t, mustMessage(t, versionPayload()))

	_, err := ReadMessage(bytes.NewReader(raw[:10]), NewDecoder(mainnet))
	require.ErrorIs(t, err, ErrShortHeader)

	_, err = ReadMessage(bytes.NewReader(raw[:40]), NewDecoder(mainnet))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestWriteMessageRejectsSendCompact(t *testing.T) {
	m, err := message.New(mainnet, message.CmdSendCompact, message.SendCompact{Announce: true, Version: 1})
	require.NoError(t, err)
	_, err = WriteMessage(io.Discard, m)
	require.ErrorIs(t, err, message.ErrUnimplementedCommand)
}

// oneByteReader hands out its input one byte per Read.
type oneByteReader struct {
	data []byte
}

func (r *oneByteReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}

func TestStream(t *testing.T) {
	var raw []byte
	raw = append(raw, mustEncode(t, mustMessage(t, versionPayload()))...)
	raw = append(raw, mustEncode(t, mustMessage(t, message.SendHeaders{}))...)

	s := NewStream(&oneByteReader{data: raw}, NewDecoder(mainnet))
	m, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, message.CmdVersion, m.Command())
	m, err = s.Next()
	require.NoError(t, err)
	require.Equal(t, message.CmdSendHeaders, m.Command())
	require.Zero(t, s.Buffered())

	_, err = s.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestStreamUnexpectedEOF(t *testing.T) {
	raw := mustEncode(t, mustMessage(t, message.Ping{Nonce: 5}))
	s := NewStream(bytes.NewReader(raw[:len(raw)-3]), NewDecoder(mainnet))
	_, err := s.Next()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Equal(t, len(raw)-3, s.Buffered())
}

func TestVersionReadableByBtcd(t *testing.T) {
	raw := mustEncode(t, mustMessage(t, versionPayload()))

	msg, _, err := btcwire.ReadMessage(bytes.NewReader(raw), btcwire.ProtocolVersion, btcwire.MainNet)
	require.NoError(t, err)
	v, ok := msg.(*btcwire.MsgVersion)
	require.True(t, ok, "got %T", msg)

	require.Equal(t, int32(70016), v.ProtocolVersion)
	require.Equal(t, btcwire.ServiceFlag(1033), v.Services)
	require.Equal(t, int64(1680126222), v.Timestamp.Unix())
	require.True(t, v.AddrYou.IP.Equal(net.ParseIP("2a02:8308:900c:5900:b59b:b551:1c26:2a8")))
	require.Equal(t, uint16(56190), v.AddrYou.Port)
	require.True(t, v.AddrMe.IP.Equal(net.ParseIP("2001:db8::2")))
	require.Equal(t, uint16(8333), v.AddrMe.Port)
	require.Equal(t, uint64(6940951773072803923), v.Nonce)
	require.Equal(t, "/Satoshi:23.0.0/", v.UserAgent)
	require.Equal(t, int32(783080), v.LastBlock)
	require.False(t, v.DisableRelayTx)
}

func TestBtcdVersionDecodes(t *testing.T) {
	you := btcwire.NewNetAddressIPPort(net.ParseIP("2001:db8::10"), 18333, btcwire.SFNodeNetwork)
	me := btcwire.NewNetAddressIPPort(net.ParseIP("2001:db8::20"), 18334, btcwire.SFNodeWitness)
	bv := btcwire.NewMsgVersion(me, you, 12345, 100)
	bv.Timestamp = time.Unix(1680126222, 0)
	bv.AddUserAgent("btcwire-test", "0.1.0")

	var buf bytes.Buffer
	require.NoError(t, btcwire.WriteMessage(&buf, bv, btcwire.ProtocolVersion, btcwire.TestNet3))

	m, err := ReadMessage(&buf, NewDecoder(uint32(btcwire.TestNet3)))
	require.NoError(t, err)
	v, ok := m.Payload().(message.VersionMessage)
	require.True(t, ok)
	require.Equal(t, int32(btcwire.ProtocolVersion), v.Version)
	require.Equal(t, int64(1680126222), v.Timestamp)
	require.Equal(t, netip.MustParseAddr("2001:db8::10"), v.AddrRecv.IP.Addr())
	require.Equal(t, uint16(18333), v.AddrRecv.Port)
	require.Equal(t, wire.SFNodeWitness, v.AddrFrom.Services)
	require.Equal(t, uint64(12345), v.Nonce)
	require.Equal(t, bv.UserAgent, v.UserAgent.Value)
	require.Equal(t, int32(100), v.StartHeight)
	require.True(t, v.Relay)
}

func TestBtcdVerAckChecksumMatches(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, btcwire.WriteMessage(&buf, btcwire.NewMsgVerAck(), btcwire.ProtocolVersion, btcwire.MainNet))
	ours := mustEncode(t, mustMessage(t, message.VerAck{}))
	if !bytes.Equal(buf.Bytes(), ours) {
		t.Fatalf("verack mismatch\n btcd: %s\n ours: %s", hex.EncodeToString(buf.Bytes()), hex.EncodeToString(ours))
	}
}
