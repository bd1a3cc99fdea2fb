package transport

import (
	"encoding/binary"
	"encoding/json"
	"net"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := NewConn(server)
	cc := NewConn(client)

	go func() {
		sc.WriteJSON(map[string]string{"kind": "ls"})
	}()

	payload, err := cc.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}

	kind, _, ok := DecodeRequest(payload)
	if !ok || kind != "ls" {
		t.Fatalf("expected kind ls, got %q ok=%v", kind, ok)
	}
}

func TestReadFrameRejectsOversizeLength(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	cc := NewConn(client)

	go func() {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], MaxFrameSize+1)
		server.Write(lenBuf[:])
	}()

	if _, err := cc.ReadFrame(); err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestReadFrameRejectsInvalidUTF8(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	cc := NewConn(client)

	go func() {
		payload := []byte{0xff, 0xfe, 0xfd}
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
		server.Write(lenBuf[:])
		server.Write(payload)
	}()

	if _, err := cc.ReadFrame(); err != ErrInvalidUTF8 {
		t.Fatalf("expected ErrInvalidUTF8, got %v", err)
	}
}

func TestDecodeRequestRejectsNonObject(t *testing.T) {
	if _, _, ok := DecodeRequest([]byte(`[1,2,3]`)); ok {
		t.Fatal("expected a JSON array to be rejected")
	}
}

func TestDecodeRequestRejectsMissingKind(t *testing.T) {
	if _, _, ok := DecodeRequest([]byte(`{"foo":1}`)); ok {
		t.Fatal("expected a missing kind to be rejected")
	}
}

func TestDecodeRequestExtractsArgs(t *testing.T) {
	kind, fields, ok := DecodeRequest([]byte(`{"kind":"volume","delta":10}`))
	if !ok || kind != "volume" {
		t.Fatalf("unexpected decode: kind=%q ok=%v", kind, ok)
	}
	var delta int
	if err := json.Unmarshal(fields["delta"], &delta); err != nil || delta != 10 {
		t.Fatalf("expected delta 10, got %d err=%v", delta, err)
	}
}

func TestSendGreeting(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := NewConn(server)
	cc := NewConn(client)

	go sc.SendGreeting("0.1.0")

	payload, err := cc.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	var g Greeting
	if err := json.Unmarshal(payload, &g); err != nil {
		t.Fatal(err)
	}
	if g.Version != "0.1.0" {
		t.Fatalf("expected version 0.1.0, got %q", g.Version)
	}
}
