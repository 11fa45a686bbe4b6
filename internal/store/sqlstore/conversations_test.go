package sqlstore

import (
	"testing"
)

func TestFindOrCreateConversationIdempotent(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	alice := createTestUser(t, "alice", "alice@example.com")
	bob := createTestUser(t, "bob", "bob@example.com")

	first := createTestConversation(t, alice.ID, bob.ID)
	// Reversed order must resolve to the same conversation.
	second := createTestConversation(t, bob.ID, alice.ID)

	if first.ID != second.ID {
		t.Errorf("Expected same conversation, got %d and %d", first.ID, second.ID)
	}
	if len(first.Participants) != 2 {
		t.Errorf("Expected 2 participants, got %d", len(first.Participants))
	}
}

func TestFindOrCreateConversationDistinctPairs(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	alice := createTestUser(t, "alice", "alice@example.com")
	bob := createTestUser(t, "bob", "bob@example.com")
	carol := createTestUser(t, "carol", "carol@example.com")

	ab := createTestConversation(t, alice.ID, bob.ID)
	ac := createTestConversation(t, alice.ID, carol.ID)

	if ab.ID == ac.ID {
		t.Error("Expected distinct conversations for distinct pairs")
	}
}

func TestUpdateConversationLastMessage(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	alice := createTestUser(t, "alice", "alice@example.com")
	bob := createTestUser(t, "bob", "bob@example.com")
	conv := createTestConversation(t, alice.ID, bob.ID)

	msg, err := testStore.CreateMessage(conv.ID, alice.ID, "hi", "text", nil)
	if err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}
	if err := testStore.UpdateConversationLastMessage(conv.ID, msg.ID); err != nil {
		t.Fatalf("UpdateConversationLastMessage failed: %v", err)
	}

	convs, err := testStore.GetUserConversations(alice.ID)
	if err != nil {
		t.Fatalf("GetUserConversations failed: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("Expected 1 conversation, got %d", len(convs))
	}
	if convs[0].LastMessage == nil || convs[0].LastMessage.ID != msg.ID {
		t.Error("Expected last message to be set")
	}
}

func TestUnreadCount(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	alice := createTestUser(t, "alice", "alice@example.com")
	bob := createTestUser(t, "bob", "bob@example.com")
	conv := createTestConversation(t, alice.ID, bob.ID)

	testStore.CreateMessage(conv.ID, alice.ID, "one", "text", nil)
	testStore.CreateMessage(conv.ID, alice.ID, "two", "text", nil)
	testStore.CreateMessage(conv.ID, bob.ID, "reply", "text", nil)

	// Bob has two unread from alice; his own message does not count.
	convs, err := testStore.GetUserConversations(bob.ID)
	if err != nil {
		t.Fatalf("GetUserConversations failed: %v", err)
	}
	if convs[0].UnreadCount != 2 {
		t.Errorf("Expected 2 unread, got %d", convs[0].UnreadCount)
	}
}
