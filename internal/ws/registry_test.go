package ws

import (
	"fmt"
	"sync"
	"testing"
)

func TestRegistryMultiDevice(t *testing.T) {
	hub, _ := newTestHub(t)
	reg := hub.Registry

	c1 := newFakeConn("c1", 1)
	c2 := newFakeConn("c2", 1)

	reg.Register(c1)
	reg.Register(c2)

	if !reg.IsOnline(1) {
		t.Error("Expected user online")
	}
	if reg.ConnectionCount(1) != 2 {
		t.Errorf("Expected 2 connections, got %d", reg.ConnectionCount(1))
	}

	reg.Unregister(c1)
	if !reg.IsOnline(1) {
		t.Error("Expected user still online with one connection left")
	}

	reg.Unregister(c2)
	if reg.IsOnline(1) {
		t.Error("Expected user offline after last connection dropped")
	}
	if reg.ConnectionCount(1) != 0 {
		t.Errorf("Expected 0 connections, got %d", reg.ConnectionCount(1))
	}
}

func TestRegistryUnregisterUnknownConn(t *testing.T) {
	hub, _ := newTestHub(t)
	reg := hub.Registry

	// Unregistering a connection that was never registered must not panic
	// or flip state.
	reg.Unregister(newFakeConn("ghost", 1))
	if reg.IsOnline(1) {
		t.Error("Expected user offline")
	}
}

func TestRegistryConcurrentRegisterUnregister(t *testing.T) {
	hub, _ := newTestHub(t)
	reg := hub.Registry

	// Churn many short-lived connections while one stays put; after
	// quiescence the state must reflect exactly the survivor.
	keeper := newFakeConn("keeper", 1)
	reg.Register(keeper)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newFakeConn(fmt.Sprintf("churn-%d", i), 1)
			reg.Register(c)
			reg.Unregister(c)
		}(i)
	}
	wg.Wait()

	if !reg.IsOnline(1) {
		t.Error("Expected user online: keeper connection still registered")
	}
	if reg.ConnectionCount(1) != 1 {
		t.Errorf("Expected 1 connection after churn, got %d", reg.ConnectionCount(1))
	}

	reg.Unregister(keeper)
	if reg.IsOnline(1) {
		t.Error("Expected user offline after keeper left")
	}
}

func TestSendToUserIsolatesFailures(t *testing.T) {
	hub, _ := newTestHub(t)
	reg := hub.Registry

	healthy := newFakeConn("healthy", 1)
	broken := newFakeConn("broken", 1)
	broken.setFail(true)

	reg.Register(healthy)
	reg.Register(broken)

	delivered := reg.SendToUser(1, errorEvent("ping"))
	if delivered != 1 {
		t.Errorf("Expected 1 successful write, got %d", delivered)
	}
	if len(healthy.eventsOfType(evtError)) != 1 {
		t.Error("Expected healthy connection to receive the event")
	}

	// The broken connection is unregistered as a side effect.
	if reg.ConnectionCount(1) != 1 {
		t.Errorf("Expected broken connection dropped, count %d", reg.ConnectionCount(1))
	}
	if !broken.closed {
		t.Error("Expected broken connection closed")
	}
}

func TestSendToUsersDedupe(t *testing.T) {
	hub, _ := newTestHub(t)
	reg := hub.Registry

	c := newFakeConn("c", 1)
	reg.Register(c)

	reg.SendToUsers([]int64{1, 1, 1}, errorEvent("once"))

	if n := len(c.eventsOfType(evtError)); n != 1 {
		t.Errorf("Expected exactly 1 delivery despite duplicate IDs, got %d", n)
	}
}

func TestSendToConversationExcludesUser(t *testing.T) {
	hub, _ := newTestHub(t)
	reg := hub.Registry

	a := newFakeConn("a", 1)
	b := newFakeConn("b", 2)
	reg.Register(a)
	reg.Register(b)
	reg.Join(7, a)
	reg.Join(7, b)

	reg.SendToConversation(7, errorEvent("typing"), 1)

	if len(a.eventsOfType(evtError)) != 0 {
		t.Error("Expected originator's connection to be excluded")
	}
	if len(b.eventsOfType(evtError)) != 1 {
		t.Error("Expected other participant to receive the event")
	}
}

func TestUnregisterLeavesRooms(t *testing.T) {
	hub, _ := newTestHub(t)
	reg := hub.Registry

	a := newFakeConn("a", 1)
	b := newFakeConn("b", 2)
	reg.Register(a)
	reg.Register(b)
	reg.Join(7, a)
	reg.Join(7, b)

	reg.Unregister(a)
	reg.SendToConversation(7, errorEvent("after"), 0)

	if len(a.eventsOfType(evtError)) != 0 {
		t.Error("Expected unregistered connection to leave its rooms")
	}
	if len(b.eventsOfType(evtError)) != 1 {
		t.Error("Expected remaining room member to receive the event")
	}
}
