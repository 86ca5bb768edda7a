package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/ion/pkg/protocol"
	"github.com/vango-dev/ion/pkg/ticket"
)

func countHandler(ctx context.Context, args *protocol.Reader, st *ServerStream) error {
	if _, err := args.StartArray(); err != nil {
		return err
	}
	n, err := args.ReadInt64()
	if err != nil {
		return err
	}
	for i := int64(0); i < n; i++ {
		if err := st.SendWith(func(w *protocol.Writer) error {
			w.WriteInt(i)
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func sumHandler(ctx context.Context, _ *protocol.Reader, st *ServerStream) error {
	var sum int64
	for {
		item, err := st.Recv(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		v, err := protocol.NewReader(item).ReadInt64()
		if err != nil {
			return err
		}
		sum += v
	}
	return st.SendWith(func(w *protocol.Writer) error {
		w.WriteInt(sum)
		return nil
	})
}

func wsURL(base, path string) string {
	return "ws" + strings.TrimPrefix(base, "http") + path
}

func newStreamServer(t *testing.T, config *ServerConfig) string {
	t.Helper()
	srv, ts := newTestServer(t, config)
	srv.HandleStream("Calculator", "Count", countHandler)
	srv.HandleStream("Calculator", "Sum", sumHandler)
	srv.HandleStream("Calculator", "Fail", func(context.Context, *protocol.Reader, *ServerStream) error {
		return protocol.NewError("STREAM_BROKEN", "gave up")
	})
	return ts.URL
}

func readFrame(t *testing.T, conn *websocket.Conn) protocol.Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if mt != websocket.BinaryMessage {
		t.Fatalf("message type = %d", mt)
	}
	f, err := protocol.DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	return f
}

func TestStreamCount(t *testing.T) {
	base := newStreamServer(t, nil)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(base, protocol.StreamPath("Calculator", "Count")), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.BinaryMessage, encodeInts(10)); err != nil {
		t.Fatal(err)
	}
	for i := int64(0); i < 10; i++ {
		f := readFrame(t, conn)
		if f.Op != protocol.OpData {
			t.Fatalf("frame %d op = %v", i, f.Op)
		}
		v, err := protocol.NewReader(f.Payload).ReadInt64()
		if err != nil || v != i {
			t.Fatalf("frame %d = %d, %v", i, v, err)
		}
	}
	if f := readFrame(t, conn); f.Op != protocol.OpEnd {
		t.Fatalf("final op = %v, want END", f.Op)
	}
}

func TestStreamDuplex(t *testing.T) {
	base := newStreamServer(t, nil)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(base, protocol.StreamPath("Calculator", "Sum")), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.WriteMessage(websocket.BinaryMessage, encodeInts())
	for _, v := range []int64{1, 2, 3, 4} {
		w := protocol.NewWriter()
		w.WriteInt(v)
		conn.WriteMessage(websocket.BinaryMessage, protocol.DataFrame(w.Bytes()).Encode())
	}
	conn.WriteMessage(websocket.BinaryMessage, protocol.EndFrame().Encode())

	f := readFrame(t, conn)
	v, _ := protocol.NewReader(f.Payload).ReadInt64()
	if f.Op != protocol.OpData || v != 10 {
		t.Fatalf("sum frame = %v %d", f.Op, v)
	}
	if f := readFrame(t, conn); f.Op != protocol.OpEnd {
		t.Fatalf("final op = %v", f.Op)
	}
}

func TestStreamPeerError(t *testing.T) {
	base := newStreamServer(t, nil)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(base, protocol.StreamPath("Calculator", "Sum")), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.WriteMessage(websocket.BinaryMessage, encodeInts())
	conn.WriteMessage(websocket.BinaryMessage, protocol.ErrorFrame(protocol.NewError("CLIENT_GONE", "bye")).Encode())

	f := readFrame(t, conn)
	if f.Op != protocol.OpError {
		t.Fatalf("op = %v, want ERROR", f.Op)
	}
}

func TestStreamHandlerError(t *testing.T) {
	base := newStreamServer(t, nil)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(base, protocol.StreamPath("Calculator", "Fail")), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.WriteMessage(websocket.BinaryMessage, encodeInts())

	f := readFrame(t, conn)
	if f.Op != protocol.OpError {
		t.Fatalf("op = %v, want ERROR", f.Op)
	}
	pe := f.Err()
	if pe.Code != "STREAM_BROKEN" || pe.Message != "gave up" {
		t.Errorf("error = %v", pe)
	}
}

func TestStreamRejections(t *testing.T) {
	ex, err := ticket.NewKeyedExchanger([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	base := newStreamServer(t, DefaultServerConfig().WithExchanger(ex))
	url := wsURL(base, protocol.StreamPath("Calculator", "Count"))

	raw, err := ex.Issue(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	forged := append([]byte(nil), raw...)
	forged[0] ^= 0xff

	tests := []struct {
		name         string
		url          string
		subprotocols []string
		code         string
	}{
		{"no sub-protocol", url, nil, protocol.CodeUnsupportedSubProtocol},
		{"foreign sub-protocol", url, []string{"graphql-ws"}, protocol.CodeUnsupportedSubProtocol},
		{"wrong version", url, []string{"ion!ticket#3!ver#2"}, protocol.CodeUnsupportedSubProtocol},
		{"forged ticket", url, []string{protocol.BuildSubProtocol(forged)}, protocol.CodeTicketBroken},
		{"unknown method", wsURL(base, protocol.StreamPath("Calculator", "Nope")), nil, protocol.CodeMethodNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := websocket.Dialer{Subprotocols: tt.subprotocols, HandshakeTimeout: 5 * time.Second}
			conn, resp, err := d.Dial(tt.url, nil)
			if err == nil {
				conn.Close()
				t.Fatal("dial succeeded")
			}
			if resp == nil {
				t.Fatalf("no response: %v", err)
			}
			if got := resp.Header.Get(protocol.HeaderStatus); got != tt.code {
				t.Errorf("%s = %q, want %q", protocol.HeaderStatus, got, tt.code)
			}
		})
	}

	t.Run("valid ticket", func(t *testing.T) {
		sp := protocol.BuildSubProtocol(raw)
		d := websocket.Dialer{Subprotocols: []string{sp}}
		conn, _, err := d.Dial(url, nil)
		if err != nil {
			t.Fatal(err)
		}
		defer conn.Close()
		if conn.Subprotocol() != sp {
			t.Errorf("Subprotocol = %q, want %q", conn.Subprotocol(), sp)
		}
		conn.WriteMessage(websocket.BinaryMessage, encodeInts(1))
		if f := readFrame(t, conn); f.Op != protocol.OpData {
			t.Fatalf("op = %v", f.Op)
		}
	})

	t.Run("replayed ticket", func(t *testing.T) {
		d := websocket.Dialer{Subprotocols: []string{protocol.BuildSubProtocol(raw)}}
		_, resp, err := d.Dial(url, nil)
		if err == nil || resp == nil {
			t.Fatalf("dial err = %v", err)
		}
		if got := resp.Header.Get(protocol.HeaderStatus); got != protocol.CodeTicketBroken {
			t.Errorf("%s = %q", protocol.HeaderStatus, got)
		}
	})
}

func TestStreamRequiresUpgrade(t *testing.T) {
	base := newStreamServer(t, nil)
	resp, err := http.Get(base + protocol.StreamPath("Calculator", "Count"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("status = %d, want 412", resp.StatusCode)
	}
	if got := resp.Header.Get(protocol.HeaderStatus); got != protocol.CodeUnsupportedTransport {
		t.Errorf("%s = %q", protocol.HeaderStatus, got)
	}
}

func TestExchange(t *testing.T) {
	t.Run("no exchanger", func(t *testing.T) {
		_, ts := newTestServer(t, nil)
		resp, body := post(t, ts.URL+protocol.ExchangePath, protocol.MediaType, nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if string(body) != "\x81\x41\x00" {
			t.Fatalf("body = %x, want 814100", body)
		}
	})

	t.Run("keyed exchanger", func(t *testing.T) {
		ex, _ := ticket.NewKeyedExchanger([]byte("secret"))
		_, ts := newTestServer(t, DefaultServerConfig().WithExchanger(ex))
		_, body := post(t, ts.URL+protocol.ExchangePath, protocol.MediaType, nil, nil)
		raw, err := protocol.DecodeTicket(body)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := ex.Redeem(context.Background(), raw); err != nil {
			t.Fatalf("Redeem issued ticket: %v", err)
		}
	})

	t.Run("rejecting exchanger", func(t *testing.T) {
		_, ts := newTestServer(t, DefaultServerConfig().WithExchanger(ticket.Funcs{}))
		resp, body := post(t, ts.URL+protocol.ExchangePath, protocol.MediaType, nil, nil)
		if resp.StatusCode != http.StatusPreconditionFailed {
			t.Fatalf("status = %d, want 412", resp.StatusCode)
		}
		if pe := decodeErrorBody(t, body); pe.Code != protocol.CodeExchangeRejected {
			t.Errorf("code = %q", pe.Code)
		}
	})

	t.Run("wrong media type", func(t *testing.T) {
		_, ts := newTestServer(t, nil)
		resp, _ := post(t, ts.URL+protocol.ExchangePath, "text/plain", nil, nil)
		if resp.StatusCode != http.StatusUnsupportedMediaType {
			t.Fatalf("status = %d", resp.StatusCode)
		}
	})
}
