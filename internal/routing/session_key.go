package routing

import (
	"strings"

	"github.com/soyeahso/attendant/internal/domain"
)

// SessionID is the gate and store key for a message's correspondent.
// Every message from the same address on the same channel shares one
// session, whatever chat it arrived in.
func SessionID(msg domain.InboundMessage) string {
	return msg.Correspondent().String()
}

// ParseSessionID splits a session id back into channel and address. The
// channel id never contains a colon; the address may.
func ParseSessionID(id string) (domain.CorrespondentKey, bool) {
	ch, addr, ok := strings.Cut(id, ":")
	if !ok || ch == "" || addr == "" {
		return domain.CorrespondentKey{}, false
	}
	return domain.CorrespondentKey{ChannelID: ch, Address: addr}, true
}

// replyTarget determines where to send a response.
func replyTarget(msg domain.InboundMessage) string {
	switch msg.ChatType {
	case domain.ChatTypeGroup:
		return msg.ChatID
	default:
		return msg.From
	}
}
