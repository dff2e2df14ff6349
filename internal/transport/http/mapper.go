package http

import (
	"github.com/vovakirdan/chatline-server/internal/core"
	"github.com/vovakirdan/chatline-server/internal/proto"
	"github.com/vovakirdan/chatline-server/internal/store"
)

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventOnlineUsers:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventOnlineUsers,
			Data:  event.Online,
		}
	case core.EventNewMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNewMessage,
			Data:  messageToProto(event.Message),
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func messageToProto(m *core.Message) proto.Message {
	return proto.Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.RecipientID,
		Text:       m.Text,
		Image:      m.Image,
		Seen:       m.Seen,
		CreatedAt:  m.CreatedAt,
	}
}

func messagesToProto(ms []*core.Message) []proto.Message {
	out := make([]proto.Message, 0, len(ms))
	for _, m := range ms {
		out = append(out, messageToProto(m))
	}
	return out
}

func userToProto(u *store.User) proto.User {
	return proto.User{
		ID:         u.ID,
		Email:      u.Email,
		FullName:   u.FullName,
		Bio:        u.Bio,
		ProfilePic: u.ProfilePic,
		CreatedAt:  u.CreatedAt,
	}
}
