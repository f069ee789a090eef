package grpcx

import (
	"fmt"

	"github.com/cwrk-planet/chat-relay/internal/domain"
	"github.com/cwrk-planet/chat-relay/pkg/errs"

	"github.com/samber/lo"
	"google.golang.org/protobuf/types/known/structpb"
)

func messageToStruct(m domain.Message) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"sender":     structpb.NewStringValue(m.Sender),
		"room":       structpb.NewStringValue(m.Room),
		"content":    structpb.NewStringValue(m.Content),
		"created_at": structpb.NewStringValue(m.CreatedAt),
	}}
}

// structToMessage reads the four message fields; absent fields are empty,
// non-string fields are rejected.
func structToMessage(s *structpb.Struct) (domain.Message, error) {
	var (
		m   domain.Message
		err error
	)
	field := func(key string) string {
		v, ok := s.GetFields()[key]
		if !ok || err != nil {
			return ""
		}
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			err = fmt.Errorf("%w: %s must be a string", errs.ErrInvalidInput, key)
			return ""
		}
		return sv.StringValue
	}

	m.Sender = field("sender")
	m.Room = field("room")
	m.Content = field("content")
	m.CreatedAt = field("created_at")
	return m, err
}

func historyToStruct(h domain.RoomMessages) *structpb.Struct {
	items := lo.Map(h.Messages, func(m domain.Message, _ int) *structpb.Value {
		return structpb.NewStructValue(messageToStruct(m))
	})
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"name":     structpb.NewStringValue(h.Name),
		"messages": structpb.NewListValue(&structpb.ListValue{Values: items}),
	}}
}

func structToHistory(s *structpb.Struct) (domain.RoomMessages, error) {
	h := domain.RoomMessages{
		Name:     s.GetFields()["name"].GetStringValue(),
		Messages: []domain.Message{},
	}
	for _, v := range s.GetFields()["messages"].GetListValue().GetValues() {
		m, err := structToMessage(v.GetStructValue())
		if err != nil {
			return domain.RoomMessages{}, err
		}
		h.Messages = append(h.Messages, m)
	}
	return h, nil
}
