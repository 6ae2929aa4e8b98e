package bus

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestPayloadJSON(t *testing.T) {
	tests := []struct {
		name string
		p    Payload
		want string
	}{
		{"number", Number(110), `110`},
		{"balance", Balance{TotalPoints: 110}, `{"points":110}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.p)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("marshal = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		in      string
		want    Payload
		wantErr bool
	}{
		{in: `110`, want: Number(110)},
		{in: ` 0 `, want: Number(0)},
		{in: `{"points": 7}`, want: Balance{TotalPoints: 7}},
		{in: `{"totalPoints": 9}`, want: Balance{TotalPoints: 9}},
		{in: `{"other": 1}`, wantErr: true},
		{in: `"110"`, wantErr: true},
		{in: `1.5`, wantErr: true},
		{in: ``, wantErr: true},
		{in: `{`, wantErr: true},
	}

	for _, tt := range tests {
		got, err := DecodePayload([]byte(tt.in))
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownPayload) {
				t.Errorf("DecodePayload(%q) err = %v, want ErrUnknownPayload", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("DecodePayload(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("DecodePayload(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}
