package queue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AttachmentKind names the media type carried by an attachment.
type AttachmentKind string

const (
	AttachmentImage   AttachmentKind = "image"
	AttachmentFile    AttachmentKind = "file"
	AttachmentAudio   AttachmentKind = "audio"
	AttachmentVideo   AttachmentKind = "video"
	AttachmentSticker AttachmentKind = "sticker"
)

// Attachment references media sent alongside an inbound message. Path is set
// when the ingestion layer downloaded the file into the media directory.
type Attachment struct {
	Kind AttachmentKind `json:"kind"`
	Key  string         `json:"key"`
	Name string         `json:"name,omitempty"`
	Path string         `json:"path,omitempty"`
}

// EncodeAttachments serializes attachments for storage. An empty slice is
// stored as NULL.
func EncodeAttachments(attachments []Attachment) (string, error) {
	if len(attachments) == 0 {
		return "", nil
	}
	data, err := json.Marshal(attachments)
	if err != nil {
		return "", fmt.Errorf("encode attachments: %w", err)
	}
	return string(data), nil
}

// DecodeAttachments parses a stored attachments payload. An absent payload
// yields (nil, true, nil). A malformed payload yields (nil, false, err) so the
// caller can log it and carry on with no attachments.
func DecodeAttachments(raw string) ([]Attachment, bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return nil, true, nil
	}
	var attachments []Attachment
	if err := json.Unmarshal([]byte(trimmed), &attachments); err != nil {
		return nil, false, fmt.Errorf("decode attachments: %w", err)
	}
	return attachments, true, nil
}

// Attachments decodes the row's attachment payload.
func (m *InboundMessage) Attachments() ([]Attachment, bool, error) {
	if m == nil {
		return nil, true, nil
	}
	return DecodeAttachments(m.AttachmentsJSON)
}
