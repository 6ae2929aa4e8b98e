package bus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Payload is what travels on a topic. It is either a bare Number or a
// Balance object; subscribers narrow it with a type switch.
type Payload interface {
	isPayload()
}

// Number is a bare point total.
type Number int

// Balance is a structured point total.
type Balance struct {
	TotalPoints int
}

func (Number) isPayload()  {}
func (Balance) isPayload() {}

func (n Number) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(n))
}

func (b Balance) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Points int `json:"points"`
	}{b.TotalPoints})
}

var ErrUnknownPayload = errors.New("payload is neither a number nor a points object")

// DecodePayload accepts a bare number, {"points": n} or {"totalPoints": n}.
func DecodePayload(data []byte) (Payload, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrUnknownPayload
	}

	if data[0] != '{' {
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownPayload, err)
		}
		return Number(n), nil
	}

	var obj struct {
		Points      *int `json:"points"`
		TotalPoints *int `json:"totalPoints"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownPayload, err)
	}
	switch {
	case obj.Points != nil:
		return Balance{TotalPoints: *obj.Points}, nil
	case obj.TotalPoints != nil:
		return Balance{TotalPoints: *obj.TotalPoints}, nil
	default:
		return nil, ErrUnknownPayload
	}
}
