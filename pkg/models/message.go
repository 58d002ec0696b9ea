package models

import (
	"strings"
	"time"
)

// SegmentType is the type tag of one message segment.
type SegmentType string

const (
	SegmentText     SegmentType = "text"
	SegmentImage    SegmentType = "image"
	SegmentMusic    SegmentType = "music"
	SegmentVideo    SegmentType = "video"
	SegmentRecord   SegmentType = "record"
	SegmentFile     SegmentType = "file"
	SegmentReply    SegmentType = "reply"
	SegmentJSON     SegmentType = "json"
	SegmentFace     SegmentType = "face"
	SegmentMFace    SegmentType = "mface"
	SegmentMarkdown SegmentType = "markdown"
	SegmentNode     SegmentType = "node"
	SegmentForward  SegmentType = "forward"
	SegmentXML      SegmentType = "xml"
	SegmentPoke     SegmentType = "poke"
)

var knownSegments = map[SegmentType]struct{}{
	SegmentText: {}, SegmentImage: {}, SegmentMusic: {}, SegmentVideo: {}, SegmentRecord: {},
	SegmentFile: {}, SegmentReply: {}, SegmentJSON: {}, SegmentFace: {}, SegmentMFace: {},
	SegmentMarkdown: {}, SegmentNode: {}, SegmentForward: {}, SegmentXML: {}, SegmentPoke: {},
}

// ParseSegmentType returns the segment type for s and whether it is known.
func ParseSegmentType(s string) (SegmentType, bool) {
	_, ok := knownSegments[SegmentType(s)]

	return SegmentType(s), ok
}

// Segment is one piece of a chat message.
type Segment struct {
	Type SegmentType    `json:"type"`
	Data map[string]any `json:"data"`
}

func TextSegment(text string) Segment {
	return Segment{Type: SegmentText, Data: map[string]any{"text": text}}
}

// ImageSegment addresses an image by URL or file path.
func ImageSegment(file string) Segment {
	return Segment{Type: SegmentImage, Data: map[string]any{"file": file}}
}

// MessageType distinguishes group and private chats.
type MessageType string

const (
	MessageTypeGroup   MessageType = "group"
	MessageTypePrivate MessageType = "private"
)

type Sender struct {
	UserID   int64  `json:"userId"`
	Nickname string `json:"nickname"`
	Card     string `json:"card,omitempty"`
	Role     string `json:"role,omitempty"`
}

// ChatMessage is the protocol-neutral form of an inbound chat message.
type ChatMessage struct {
	MessageID    string      `json:"messageId"`
	MessageSeqID *int64      `json:"messageSeqId,omitempty"`
	MessageType  MessageType `json:"messageType"`
	SelfID       int64       `json:"selfId"`
	TargetID     *int64      `json:"targetId,omitempty"`
	GroupID      *int64      `json:"groupId,omitempty"`
	GroupName    string      `json:"groupName,omitempty"`
	UserID       *int64      `json:"userId,omitempty"`
	Sender       Sender      `json:"sender"`
	RawMessage   string      `json:"rawMessage"`
	Message      []Segment   `json:"message"`
	Time         time.Time   `json:"time"`
	IsMine       bool        `json:"isMine"`
}

// TextContent joins the text segments of the message.
func (m *ChatMessage) TextContent() string {
	return TextContent(m.Message)
}

func TextContent(segments []Segment) string {
	var b strings.Builder

	for _, s := range segments {
		if s.Type != SegmentText {
			continue
		}

		if text, ok := s.Data["text"].(string); ok {
			b.WriteString(text)
		}
	}

	return b.String()
}

// APIParams are the parameters of a message-sending API call.
type APIParams struct {
	Message []Segment `json:"message"`
	UserID  *int64    `json:"user_id,omitempty"`
	GroupID *int64    `json:"group_id,omitempty"`
}

// APIRequest is an outbound gateway API call.
type APIRequest struct {
	Action string    `json:"action" validate:"required"`
	Params APIParams `json:"params"`
	Echo   string    `json:"echo,omitempty"`
}

// APIResponse is the gateway's reply to an APIRequest.
type APIResponse struct {
	Data    any    `json:"data,omitempty"`
	Echo    string `json:"echo,omitempty"`
	Message string `json:"message,omitempty"`
	RetCode int    `json:"retcode"`
	Status  string `json:"status"`
	Wording string `json:"wording,omitempty"`
}

// OK reports a zero retcode.
func (r *APIResponse) OK() bool {
	return r != nil && r.RetCode == 0
}

// Int64 returns a pointer to v, for the optional id fields.
func Int64(v int64) *int64 {
	return &v
}
