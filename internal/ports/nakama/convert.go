package nakama

import (
	"encoding/json"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"doudizhu/internal/domain"
)

// Messages travel as binary google.protobuf.Struct in both directions, so
// clients decode them with the stock well-known type.

// encodePayload turns an event payload into a protobuf Struct.
func encodePayload(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("payload is not an object: %w", err)
	}
	return proto.Marshal(s)
}

// decodeRequest reads a client message. An empty body is an empty request.
func decodeRequest(data []byte) (*structpb.Struct, error) {
	s := &structpb.Struct{}
	if len(data) == 0 {
		return s, nil
	}
	if err := proto.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return s, nil
}

// cardsField parses the "cards" list, e.g. ["3S", "3H", "BJ"].
func cardsField(req *structpb.Struct) ([]domain.Card, error) {
	v, ok := req.GetFields()["cards"]
	if !ok {
		return nil, fmt.Errorf("missing cards")
	}
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("cards must be a list")
	}
	cards := make([]domain.Card, 0, len(list.GetValues()))
	for _, item := range list.GetValues() {
		c, err := domain.ParseCard(item.GetStringValue())
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// intField reads a whole-number field, returning def when it is absent.
func intField(req *structpb.Struct, name string, def int) (int, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return def, nil
	}
	if _, isNum := v.GetKind().(*structpb.Value_NumberValue); !isNum {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	f := v.GetNumberValue()
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%s must be a whole number, got %v", name, f)
	}
	return int(f), nil
}

// matchLabel builds the JSON label Nakama indexes for match listing.
func matchLabel(open int, phase domain.Phase, tier string) (string, error) {
	s, err := structpb.NewStruct(map[string]interface{}{
		"game":  GameLabel,
		"open":  open,
		"phase": string(phase),
		"tier":  tier,
	})
	if err != nil {
		return "", err
	}
	b, err := (&protojson.MarshalOptions{EmitUnpopulated: true}).Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
