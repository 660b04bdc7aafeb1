package p2p

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestMessage_DecodeStatus(t *testing.T) {
	payload, err := json.Marshal(StatusResponse{Height: 10, TipHash: "abcd"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	msg := Message{Type: MsgStatus, Payload: payload}

	decoded, err := msg.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	status, ok := decoded.(StatusResponse)
	if !ok {
		t.Fatalf("Decode returned %T, want StatusResponse", decoded)
	}
	if status.Height != 10 || status.TipHash != "abcd" {
		t.Errorf("decoded status = %+v", status)
	}
}

func TestMessage_DecodeBlockRequest(t *testing.T) {
	payload, err := json.Marshal(BlockRequest{FromHeight: 5, ToHeight: 10})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	msg := Message{Type: MsgBlockRequest, Payload: payload}

	decoded, err := msg.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	req, ok := decoded.(BlockRequest)
	if !ok {
		t.Fatalf("Decode returned %T, want BlockRequest", decoded)
	}
	if req.FromHeight != 5 || req.ToHeight != 10 {
		t.Errorf("decoded request = %+v", req)
	}
}

func TestMessage_DecodeUnknownType(t *testing.T) {
	msg := Message{Type: MessageType(200)}
	_, err := msg.Decode()
	if !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("expected ErrUnknownMessage, got %v", err)
	}
}
