package server

import (
	"encoding/json"
	"net"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/alfazet/musing/catalog"
	"github.com/alfazet/musing/dispatch"
	"github.com/alfazet/musing/player"
	"github.com/alfazet/musing/playlistio"
	"github.com/alfazet/musing/queue"
	"github.com/alfazet/musing/state"
	"github.com/alfazet/musing/transport"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func newTestRouter(t *testing.T) *dispatch.Router {
	t.Helper()
	root := t.TempDir()
	playlistDir := t.TempDir()

	c := catalog.New(root, testLogger())
	q := queue.New()
	p := player.New(q, []string{"default"}, testLogger())
	t.Cleanup(p.Close)
	store := playlistio.New(playlistDir, root)
	broadcaster := state.New(c, q, p, store)

	return dispatch.New(c, q, p, broadcaster, store, testLogger())
}

// startServer runs a Server in the background on an ephemeral port and
// returns it once it is accepting connections.
func startServer(t *testing.T) *Server {
	t.Helper()
	srv := New(newTestRouter(t), testLogger())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run("127.0.0.1:0")
	}()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server did not start listening in time")
		}
		select {
		case err := <-errCh:
			t.Fatalf("server exited early: %v", err)
		default:
			time.Sleep(time.Millisecond)
		}
	}

	t.Cleanup(srv.Shutdown)
	return srv
}

func dial(t *testing.T, srv *Server) *transport.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	return transport.NewConn(conn)
}

func TestServerSendsGreetingOnConnect(t *testing.T) {
	srv := startServer(t)
	fc := dial(t, srv)
	defer fc.Close()

	payload, err := fc.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	var greeting transport.Greeting
	if err := json.Unmarshal(payload, &greeting); err != nil {
		t.Fatal(err)
	}
	if greeting.Version == "" {
		t.Fatal("expected a non-empty version in the greeting")
	}
}

func TestServerRoundTripsRequest(t *testing.T) {
	srv := startServer(t)
	fc := dial(t, srv)
	defer fc.Close()

	if _, err := fc.ReadFrame(); err != nil {
		t.Fatal(err)
	}

	if err := fc.WriteJSON(map[string]any{"kind": "moderandom"}); err != nil {
		t.Fatal(err)
	}
	payload, err := fc.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	var resp map[string]any
	if err := json.Unmarshal(payload, &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("expected ok status, got %+v", resp)
	}
}

func TestServerRejectsMalformedFrame(t *testing.T) {
	srv := startServer(t)
	fc := dial(t, srv)
	defer fc.Close()

	if _, err := fc.ReadFrame(); err != nil {
		t.Fatal(err)
	}

	if err := fc.WriteFrame([]byte("not json")); err != nil {
		t.Fatal(err)
	}
	payload, err := fc.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	var resp map[string]any
	if err := json.Unmarshal(payload, &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "err" {
		t.Fatalf("expected an err status for a malformed frame, got %+v", resp)
	}
}

func TestShutdownStopsAcceptingConnections(t *testing.T) {
	srv := startServer(t)
	srv.Shutdown()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := net.Dial("tcp", srv.Addr().String()); err != nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("server kept accepting connections after Shutdown")
		}
		time.Sleep(50 * time.Millisecond)
	}
}
