package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// hubServer upgrades each request and registers the connection under the
// user id from the query string, signalling on registered.
func hubServer(t *testing.T, hub *EventHub, registered chan<- uint) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		var uid uint = 1
		if r.URL.Query().Get("user") == "2" {
			uid = 2
		}
		hub.Register(NewWSClient(uid, conn))
		registered <- uid
	}))
}

func dialHub(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+query, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestEventHubPublishReachesOwnSocketsOnly(t *testing.T) {
	hub := NewEventHub()
	registered := make(chan uint, 2)
	srv := hubServer(t, hub, registered)
	defer srv.Close()

	alice := dialHub(t, srv, "?user=1")
	defer alice.Close()
	bob := dialHub(t, srv, "?user=2")
	defer bob.Close()
	<-registered
	<-registered

	hub.Publish(1, MealIngestedEvent{
		Kind:              "meal.ingested",
		MealID:            7,
		FoodItems:         2,
		ResolutionSources: []string{"barcode", "default"},
	})

	alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := alice.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev MealIngestedEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("payload %s: %v", msg, err)
	}
	if ev.Kind != "meal.ingested" || ev.MealID != 7 || ev.FoodItems != 2 {
		t.Errorf("event = %+v", ev)
	}

	bob.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, cross, err := bob.ReadMessage(); err == nil {
		t.Errorf("other user received %s", cross)
	}
}

// Concurrent ingestion requests publish to the same user at once; every
// frame must still go out through the client's single writer.
func TestEventHubConcurrentPublishes(t *testing.T) {
	hub := NewEventHub()
	registered := make(chan uint, 1)
	srv := hubServer(t, hub, registered)
	defer srv.Close()

	conn := dialHub(t, srv, "")
	defer conn.Close()
	<-registered

	const publishers = 32
	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hub.Publish(1, MealIngestedEvent{Kind: "meal.ingested", MealID: uint(i + 1)})
		}(i)
	}
	wg.Wait()

	for i := 0; i < publishers; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Fatalf("read %d/%d: %v", i+1, publishers, err)
		}
	}
}

func TestEventHubUnregisterClosesConnection(t *testing.T) {
	hub := NewEventHub()
	up := websocket.Upgrader{}
	clients := make(chan *WSClient, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		cl := NewWSClient(1, conn)
		hub.Register(cl)
		clients <- cl
	}))
	defer srv.Close()

	conn := dialHub(t, srv, "")
	defer conn.Close()
	cl := <-clients

	hub.Unregister(cl)
	hub.Unregister(cl) // repeat is a no-op, must not panic

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected close after unregister")
	}

	// publishing after unregister must not panic on the closed channel
	hub.Publish(1, MealIngestedEvent{Kind: "meal.ingested", MealID: 1})
}
