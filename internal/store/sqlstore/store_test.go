package sqlstore

import (
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pliu/courier/internal/models"
)

var testStore *SQLStore

func SetupTestDB(t *testing.T) {
	var err error
	testStore, err = New(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
}

func TeardownTestDB() {
	testStore.db.Close()
}

func createTestUser(t *testing.T, name, email string) *models.User {
	t.Helper()
	user := &models.User{Name: name, Email: email, Password: "pass"}
	if err := testStore.CreateUser(user); err != nil {
		t.Fatalf("Failed to create user %s: %v", name, err)
	}
	return user
}

func createTestConversation(t *testing.T, userIDs ...int64) *models.Conversation {
	t.Helper()
	conv, err := testStore.FindOrCreateConversation(userIDs)
	if err != nil {
		t.Fatalf("Failed to create conversation: %v", err)
	}
	return conv
}
