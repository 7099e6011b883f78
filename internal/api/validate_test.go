package api_test

import (
	"errors"
	"strings"
	"testing"

	"chatbridge/internal/api"
)

func TestValidateInboundRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     api.InboundRequest
		wantErr []string
	}{
		{
			name: "valid",
			req:  api.InboundRequest{MessageID: "om_1", ChatID: "oc_1", Text: "hi"},
		},
		{
			name:    "missing ids",
			req:     api.InboundRequest{Text: "hi"},
			wantErr: []string{"message_id", "chat_id"},
		},
		{
			name: "bad attachment",
			req: api.InboundRequest{
				MessageID:   "om_1",
				ChatID:      "oc_1",
				Attachments: []api.Attachment{{Kind: "hologram", Key: "k"}},
			},
			wantErr: []string{"attachments[0].kind"},
		},
		{
			name: "attachment without key",
			req: api.InboundRequest{
				MessageID:   "om_1",
				ChatID:      "oc_1",
				Attachments: []api.Attachment{{Kind: "image"}},
			},
			wantErr: []string{"attachments[0].key"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := api.Validate(tt.req)
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *api.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			for _, field := range tt.wantErr {
				if _, ok := verr.Fields[field]; !ok {
					t.Fatalf("expected field %q in %v", field, verr.Fields)
				}
			}
		})
	}
}

func TestValidateOutboundQueueType(t *testing.T) {
	err := api.Validate(api.OutboundRequest{QueueType: "broadcast", ChatID: "oc_1"})
	var verr *api.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Error(), "queue_type") {
		t.Fatalf("error should name queue_type: %v", verr)
	}
	if err := api.Validate(api.OutboundRequest{QueueType: "mirror", ChatID: "oc_1"}); err != nil {
		t.Fatalf("mirror should be valid: %v", err)
	}
}

func TestParseIDs(t *testing.T) {
	ids, err := api.ParseIDs([]string{"3", " 7 "})
	if err != nil {
		t.Fatalf("ParseIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 7 {
		t.Fatalf("unexpected ids: %v", ids)
	}
	for _, bad := range []string{"x", "0", "-4"} {
		if _, err := api.ParseIDs([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
