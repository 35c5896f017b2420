package store

import (
	"fmt"
	"testing"

	"ragchat/pkg/domain"
)

func TestQueryMessagesAscendingOrder(t *testing.T) {
	s := NewMemoryStore()
	timestamps := []int64{300, 100, 500, 200, 400}
	for _, ts := range timestamps {
		err := s.PutMessage(domain.Message{
			ChatID:      "c1",
			MessageID:   fmt.Sprintf("msg_%d_user", ts),
			Author:      domain.AuthorUser,
			Content:     "hi",
			TimestampMs: ts,
		})
		if err != nil {
			t.Fatalf("put message: %v", err)
		}
	}
	msgs, err := s.QueryMessages("c1")
	if err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != len(timestamps) {
		t.Fatalf("expected %d messages, got %d", len(timestamps), len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].TimestampMs <= msgs[i-1].TimestampMs {
			t.Fatalf("messages not strictly ascending at %d: %d then %d", i, msgs[i-1].TimestampMs, msgs[i].TimestampMs)
		}
	}
}

func TestListChatsMostRecentFirst(t *testing.T) {
	s := NewMemoryStore()
	for i, last := range []int64{100, 300, 200} {
		chat := domain.Chat{
			OwnerID:       "u1",
			ChatID:        string(rune('a' + i)),
			Title:         "chat " + string(rune('a'+i)),
			LastMessageAt: last,
		}
		if err := s.PutChat(chat); err != nil {
			t.Fatalf("put chat: %v", err)
		}
	}
	chats, err := s.ListChats("u1")
	if err != nil {
		t.Fatalf("list chats: %v", err)
	}
	if len(chats) != 3 {
		t.Fatalf("expected 3 chats, got %d", len(chats))
	}
	if chats[0].LastMessageAt != 300 || chats[1].LastMessageAt != 200 || chats[2].LastMessageAt != 100 {
		t.Fatalf("chats not ordered by recent activity: %+v", chats)
	}
}

func TestConditionalUpdateChatIncrementsFromZero(t *testing.T) {
	s := NewMemoryStore()
	if err := s.PutChat(domain.Chat{OwnerID: "u1", ChatID: "c1", Title: "t"}); err != nil {
		t.Fatalf("put chat: %v", err)
	}
	if err := s.ConditionalUpdateChat("u1", "c1", 42); err != nil {
		t.Fatalf("conditional update: %v", err)
	}
	chat, ok, err := s.GetChat("u1", "c1")
	if err != nil || !ok {
		t.Fatalf("get chat: ok=%v err=%v", ok, err)
	}
	if chat.MessageCount != 1 {
		t.Fatalf("expected messageCount 1, got %d", chat.MessageCount)
	}
	if chat.LastMessageAt != 42 {
		t.Fatalf("expected lastMessageAt 42, got %d", chat.LastMessageAt)
	}
}

func TestConditionalUpdateChatMissingChat(t *testing.T) {
	s := NewMemoryStore()
	if err := s.ConditionalUpdateChat("u1", "nope", 1); err == nil {
		t.Fatalf("expected error updating missing chat")
	}
}
