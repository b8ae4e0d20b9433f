package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationIDIsOrderIndependent(t *testing.T) {
	assert.Equal(t, "alice_bob", ConversationID("bob", "alice"))
	assert.Equal(t, "alice_bob", ConversationID("alice", "bob"))
	assert.Equal(t, ConversationID("u1", "u2"), ConversationID("u2", "u1"))
}

func TestSortedParticipants(t *testing.T) {
	assert.Equal(t, []string{"alice", "bob"}, SortedParticipants("bob", "alice"))
	assert.Equal(t, []string{"alice", "bob"}, SortedParticipants("alice", "bob"))
}

func TestOtherParticipant(t *testing.T) {
	conv := &Conversation{ParticipantIDs: []string{"alice", "bob"}}

	other, ok := conv.OtherParticipant("alice")
	assert.True(t, ok)
	assert.Equal(t, "bob", other)

	other, ok = conv.OtherParticipant("bob")
	assert.True(t, ok)
	assert.Equal(t, "alice", other)

	_, ok = conv.OtherParticipant("mallory")
	assert.False(t, ok)
}

func TestOtherParticipantRejectsCorruptedPair(t *testing.T) {
	conv := &Conversation{ParticipantIDs: []string{"alice"}}
	_, ok := conv.OtherParticipant("alice")
	assert.False(t, ok)
}

func TestHasParticipant(t *testing.T) {
	conv := &Conversation{ParticipantIDs: []string{"alice", "bob"}}
	assert.True(t, conv.HasParticipant("alice"))
	assert.False(t, conv.HasParticipant("mallory"))
}

func TestMessageSummary(t *testing.T) {
	assert.Equal(t, "Hi", (&Message{Text: "Hi"}).Summary())
	assert.Equal(t, ImagePlaceholder, (&Message{ImageURL: "https://x/y.jpg"}).Summary())
	assert.Equal(t, "📷 look", (&Message{Text: "look", ImageURL: "https://x/y.jpg"}).Summary())
	assert.Equal(t, "", (&Message{}).Summary())
}
