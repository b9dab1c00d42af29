package transport

import (
	"testing"
)

func TestBind_PicksFirstFreePort(t *testing.T) {
	blocker, err := Bind("127.0.0.1", 18100)
	if err != nil {
		t.Fatalf("failed to bind blocker: %v", err)
	}
	defer blocker.Close()

	ep, err := Bind("127.0.0.1", 18100)
	if err != nil {
		t.Fatalf("failed to bind around taken port: %v", err)
	}
	defer ep.Close()

	if ep.LocalURI() == blocker.LocalURI() {
		t.Fatalf("expected a different port than the taken one, got %s twice", ep.LocalURI())
	}
}

func TestConnection_SendReceive(t *testing.T) {
	ep, err := Bind("127.0.0.1", 18200)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	defer ep.Close()

	host, port, err := ParseHostPort(ep.LocalURI())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	accepted := make(chan *Connection, 1)
	go func() {
		conn, err := ep.Accept()
		if err != nil {
			t.Errorf("accept failed: %v", err)
			return
		}
		accepted <- conn
	}()

	client, err := Connect(host, port)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer client.Close()

	server := <-accepted
	defer server.Close()

	payload := []byte("hello graybat")
	if err := client.Send(payload); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	buf := make([]byte, len(payload))
	if err := server.Receive(buf); err != nil {
		t.Fatalf("receive failed: %v", err)
	}

	if string(buf) != string(payload) {
		t.Errorf("expected %q, got %q", payload, buf)
	}
}

func TestConnection_PrefixSizeFraming(t *testing.T) {
	ep, err := Bind("127.0.0.1", 18300)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	defer ep.Close()

	host, port, err := ParseHostPort(ep.LocalURI())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	accepted := make(chan *Connection, 1)
	go func() {
		conn, err := ep.Accept()
		if err != nil {
			t.Errorf("accept failed: %v", err)
			return
		}
		accepted <- conn
	}()

	client, err := Connect(host, port)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer client.Close()

	server := <-accepted
	defer server.Close()

	payload := []byte("variable length framed payload")
	if err := client.SendPrefixSize(payload); err != nil {
		t.Fatalf("send prefix failed: %v", err)
	}

	var got []byte
	if err := server.ReceivePrefixSize(&got); err != nil {
		t.Fatalf("receive prefix failed: %v", err)
	}

	if string(got) != string(payload) {
		t.Errorf("expected %q, got %q", payload, got)
	}
}
