package cnc

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
)

func newTestTCPTransport(t *testing.T, maxConns int) *TCPTransport {
	t.Helper()
	log, _ := test.NewNullLogger()
	tr, err := NewTCPTransport(context.Background(), "127.0.0.1:0", TCPOptions{
		MaxConnections: maxConns,
		ReceiveTimeout: 20 * time.Millisecond,
		Logger:         log,
	})
	if err != nil {
		t.Fatalf("NewTCPTransport: %v", err)
	}
	return tr
}

func TestTCPTransportServesRequests(t *testing.T) {
	transport := newTestTCPTransport(t, 4)
	c, _ := newTestCNC(t, transport)
	inst := newMockInstrument("test")
	c.RegisterDevice("Gen1", inst)
	c.RegisterCommand(frequencyCommand("test"))

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := DialTCPClient(ctx, transport.Addr().String())
	if err != nil {
		t.Fatalf("DialTCPClient: %v", err)
	}
	defer client.Close()

	status, err := client.Send(ctx, Request{
		Command:    "SetFrequency",
		Instrument: "Gen1",
		Parameters: map[string]any{"freq": 50000, "channel": 1},
	})
	if err != nil || status != StatusCompleted {
		t.Fatalf("Send = %s, %v", status, err)
	}

	status, err = client.Send(ctx, Request{Command: "SetFrequency", Instrument: "Nope"})
	if err != nil || status != StatusFailed {
		t.Fatalf("Send unknown device = %s, %v", status, err)
	}

	if got := inst.Clauses(); len(got) != 1 || got[0] != "C1:BSWV FRQ,50000" {
		t.Fatalf("clauses = %q", got)
	}
}

func TestTCPTransportAnswersGarbage(t *testing.T) {
	transport := newTestTCPTransport(t, 4)
	c, _ := newTestCNC(t, transport)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Shutdown()

	conn, err := net.Dial("tcp", transport.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	r := bufio.NewReader(conn)
	for _, line := range []string{"hello\n", "\n", `{"cmd":"X"}` + "\n"} {
		conn.Write([]byte(line))
		if line == "\n" {
			continue
		}
		reply, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read reply: %v", err)
		}
		if strings.TrimSpace(reply) != string(StatusFailed) {
			t.Fatalf("reply to %q = %q", line, reply)
		}
	}
}

func TestTCPTransportReceiveTimeout(t *testing.T) {
	transport := newTestTCPTransport(t, 1)
	defer transport.Close()

	if _, err := transport.Receive(context.Background()); err != ErrNoRequest {
		t.Fatalf("Expected ErrNoRequest, got: %v", err)
	}

	transport.Close()
	if transport.IsConnected() {
		t.Fatal("Expected transport to be closed")
	}
	if _, err := transport.Receive(context.Background()); err != ErrTransportNotConnected {
		t.Fatalf("Expected ErrTransportNotConnected, got: %v", err)
	}
}

func TestTCPClientSendAfterClose(t *testing.T) {
	transport := newTestTCPTransport(t, 1)
	defer transport.Close()

	client, err := DialTCPClient(context.Background(), transport.Addr().String())
	if err != nil {
		t.Fatalf("DialTCPClient: %v", err)
	}
	client.Close()

	if _, err := client.Send(context.Background(), Request{Command: "SetFrequency", Instrument: "Gen1"}); err == nil || !strings.Contains(err.Error(), "set deadline") {
		t.Fatalf("Expected the deadline error of a closed connection, got: %v", err)
	}
}
