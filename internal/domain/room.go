package domain

import "strings"

const (
	// RoomGeneral carries the shared user/admin channel.
	RoomGeneral = "general"
	// RoomAdmins receives ticket lifecycle notifications for every admin.
	RoomAdmins = "admins"

	ticketRoomPrefix = "ticket-"
	userRoomPrefix   = "user-"
)

// UserRoom names the private room every socket of a user joins on connect.
func UserRoom(userID string) string {
	return userRoomPrefix + userID
}

// TicketRoom names the room for a single ticket thread.
func TicketRoom(ticketID string) string {
	return ticketRoomPrefix + ticketID
}

// TicketIDFromRoom extracts the ticket id from a ticket room name.
func TicketIDFromRoom(room string) (string, bool) {
	if !strings.HasPrefix(room, ticketRoomPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(room, ticketRoomPrefix)
	return id, id != ""
}

// RoomForMessage picks the room a message is broadcast to.
func RoomForMessage(msg *Message) string {
	if msg.ChatType == ChatTypeTicket && msg.TicketID != nil {
		return TicketRoom(*msg.TicketID)
	}
	return RoomGeneral
}

// AudienceForMessage lists every room that may see msg. General messages
// written by users stay between the sender and the admins.
func AudienceForMessage(msg *Message) []string {
	room := RoomForMessage(msg)
	if room == RoomGeneral && msg.Role != RoleAdmin {
		return []string{RoomAdmins, UserRoom(msg.SenderID)}
	}
	return []string{room}
}
