// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package remotebroker

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
)

type fakeTrust struct {
	trusted map[string]bool
}

func (f *fakeTrust) IsTrustedDevice(ctx context.Context, deviceID string) (bool, error) {
	return f.trusted[deviceID], nil
}

type recordingResponses struct {
	responses []CommandResponse
}

func (r *recordingResponses) PublishResponse(resp CommandResponse) error {
	r.responses = append(r.responses, resp)
	return nil
}

func TestBrokerRejectsWrongSchemaVersion(t *testing.T) {
	responses := &recordingResponses{}
	b := New("target-device", &fakeTrust{}, responses, nil)

	b.Handle(context.Background(), CommandEnvelope{SchemaVersion: 2, RequestID: "r1", TargetDeviceID: "target-device"})

	if len(responses.responses) != 1 {
		t.Fatalf("expected exactly one response, got %d", len(responses.responses))
	}
	if responses.responses[0].Status != StatusError || responses.responses[0].ErrorCode != codeInvalidSchema {
		t.Fatalf("unexpected response: %+v", responses.responses[0])
	}
}

func TestBrokerRejectsWrongTarget(t *testing.T) {
	responses := &recordingResponses{}
	b := New("target-device", &fakeTrust{}, responses, nil)

	b.Handle(context.Background(), CommandEnvelope{SchemaVersion: 1, RequestID: "r1", TargetDeviceID: "someone-else"})

	if responses.responses[0].ErrorCode != codeWrongTarget {
		t.Fatalf("expected wrong_target, got %+v", responses.responses[0])
	}
}

func TestBrokerRejectsUntrustedRequester(t *testing.T) {
	responses := &recordingResponses{}
	b := New("target-device", &fakeTrust{trusted: map[string]bool{}}, responses, nil)

	b.Handle(context.Background(), CommandEnvelope{
		SchemaVersion: 1, RequestID: "r1", TargetDeviceID: "target-device",
		RequesterDeviceID: "stranger",
	})

	if responses.responses[0].ErrorCode != codeUntrustedRequester {
		t.Fatalf("expected untrusted_requester, got %+v", responses.responses[0])
	}
}

func TestBrokerRejectsUnknownCommandType(t *testing.T) {
	responses := &recordingResponses{}
	b := New("target-device", &fakeTrust{trusted: map[string]bool{"peer": true}}, responses, nil)

	b.Handle(context.Background(), CommandEnvelope{
		SchemaVersion: 1, RequestID: "r1", TargetDeviceID: "target-device",
		RequesterDeviceID: "peer", Type: "no_such_command",
	})

	if responses.responses[0].ErrorCode != codeUnknownType {
		t.Fatalf("expected unknown_command_type, got %+v", responses.responses[0])
	}
}

func TestBrokerDispatchesToHandler(t *testing.T) {
	responses := &recordingResponses{}
	b := New("target-device", &fakeTrust{trusted: map[string]bool{"peer": true}}, responses, nil)
	b.Register("ping", func(ctx context.Context, env CommandEnvelope) (any, error) {
		return map[string]string{"pong": "ok"}, nil
	})

	b.Handle(context.Background(), CommandEnvelope{
		SchemaVersion: 1, RequestID: "r1", TargetDeviceID: "target-device",
		RequesterDeviceID: "peer", Type: "ping",
	})

	if responses.responses[0].Status != StatusOK {
		t.Fatalf("expected ok status, got %+v", responses.responses[0])
	}
}

func TestBrokerHandlerErrorPropagatesCode(t *testing.T) {
	responses := &recordingResponses{}
	b := New("target-device", &fakeTrust{trusted: map[string]bool{"peer": true}}, responses, nil)
	b.Register("boom", func(ctx context.Context, env CommandEnvelope) (any, error) {
		return nil, &HandlerError{Code: "custom_failure", Message: "nope"}
	})

	b.Handle(context.Background(), CommandEnvelope{
		SchemaVersion: 1, RequestID: "r1", TargetDeviceID: "target-device",
		RequesterDeviceID: "peer", Type: "boom",
	})

	if responses.responses[0].ErrorCode != "custom_failure" {
		t.Fatalf("expected custom_failure, got %+v", responses.responses[0])
	}
}

func TestHandleRawMalformedStillPublishesResponse(t *testing.T) {
	responses := &recordingResponses{}
	b := New("target-device", &fakeTrust{}, responses, nil)

	b.HandleRaw(context.Background(), []byte("not json"))

	if len(responses.responses) != 1 {
		t.Fatalf("expected exactly one response for a malformed envelope, got %d", len(responses.responses))
	}
	if responses.responses[0].ErrorCode != codeMalformedEnvelope {
		t.Fatalf("unexpected response: %+v", responses.responses[0])
	}
}

func TestEnvelopeJSONRoundTrip(t *testing.T) {
	env := CommandEnvelope{
		SchemaVersion: 1, Type: "ping", RequestID: "r1",
		RequesterDeviceID: "a", TargetDeviceID: "b", RequestedAtMs: 123,
		Params: json.RawMessage(`{"x":1}`),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got CommandEnvelope
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, env) {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", got, env)
	}
}
