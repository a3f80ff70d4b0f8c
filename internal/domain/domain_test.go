package domain

import (
	"testing"
	"time"
)

func TestTicketStatusValid(t *testing.T) {
	cases := map[TicketStatus]bool{
		TicketStatusOpen:       true,
		TicketStatusInProgress: true,
		TicketStatusResolved:   true,
		"Closed":               false,
		"open":                 false,
		"":                     false,
	}
	for status, want := range cases {
		if got := status.Valid(); got != want {
			t.Errorf("TicketStatus(%q).Valid() = %v, want %v", status, got, want)
		}
	}
}

func TestRoomNames(t *testing.T) {
	room := TicketRoom("abc")
	if room != "ticket-abc" {
		t.Fatalf("TicketRoom = %q", room)
	}
	id, ok := TicketIDFromRoom(room)
	if !ok || id != "abc" {
		t.Fatalf("TicketIDFromRoom(%q) = %q, %v", room, id, ok)
	}
	if _, ok := TicketIDFromRoom("ticket-"); ok {
		t.Fatal("empty ticket id accepted")
	}
	if _, ok := TicketIDFromRoom(RoomGeneral); ok {
		t.Fatal("general room parsed as ticket room")
	}
}

func TestRoomForMessage(t *testing.T) {
	ticketID := "t1"
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"general", Message{ChatType: ChatTypeGeneral}, RoomGeneral},
		{"ticket", Message{ChatType: ChatTypeTicket, TicketID: &ticketID}, "ticket-t1"},
		{"ticket without id", Message{ChatType: ChatTypeTicket}, RoomGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoomForMessage(&tt.msg); got != tt.want {
				t.Errorf("RoomForMessage = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddReceiptDeduplicatesPerUser(t *testing.T) {
	msg := &Message{}
	now := time.Now()
	if !msg.AddReceipt(Receipt{UserID: "u1", Kind: ReceiptRead, At: now}) {
		t.Fatal("first read receipt rejected")
	}
	if msg.AddReceipt(Receipt{UserID: "u1", Kind: ReceiptRead, At: now.Add(time.Second)}) {
		t.Fatal("duplicate read receipt accepted")
	}
	if !msg.AddReceipt(Receipt{UserID: "u1", Kind: ReceiptDelivered, At: now}) {
		t.Fatal("delivery receipt blocked by read receipt")
	}
	if len(msg.ReadBy) != 1 || len(msg.DeliveredTo) != 1 {
		t.Fatalf("receipts = %d read, %d delivered", len(msg.ReadBy), len(msg.DeliveredTo))
	}
	if !msg.ReadByUser("u1") || msg.ReadByUser("u2") {
		t.Fatal("ReadByUser mismatch")
	}
}

func TestAudienceForMessage(t *testing.T) {
	ticketID := "t1"
	cases := []struct {
		name string
		msg  Message
		want []string
	}{
		{"user general", Message{SenderID: "u1", Role: RoleUser, ChatType: ChatTypeGeneral}, []string{RoomAdmins, "user-u1"}},
		{"admin general", Message{SenderID: "a1", Role: RoleAdmin, ChatType: ChatTypeGeneral}, []string{RoomGeneral}},
		{"user ticket", Message{SenderID: "u1", Role: RoleUser, ChatType: ChatTypeTicket, TicketID: &ticketID}, []string{"ticket-t1"}},
	}
	for _, tc := range cases {
		got := AudienceForMessage(&tc.msg)
		if len(got) != len(tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
			}
		}
	}
}

func TestMessageReceiptAudience(t *testing.T) {
	ticketID := "t1"
	receipt := Receipt{MessageID: "m1", UserID: "admin", Kind: ReceiptRead}
	tests := []struct {
		name string
		msg  Message
		want []string
	}{
		{"user general", Message{SenderID: "alice", Role: RoleUser, ChatType: ChatTypeGeneral}, []string{RoomAdmins, "user-alice"}},
		{"admin general", Message{SenderID: "ada", Role: RoleAdmin, ChatType: ChatTypeGeneral}, []string{RoomGeneral}},
		{"ticket", Message{SenderID: "alice", Role: RoleUser, ChatType: ChatTypeTicket, TicketID: &ticketID}, []string{"ticket-t1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReceiptFor(receipt, &tt.msg).Audience()
			if len(got) != len(tt.want) {
				t.Fatalf("Audience = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Audience = %v, want %v", got, tt.want)
				}
			}
		})
	}
}
