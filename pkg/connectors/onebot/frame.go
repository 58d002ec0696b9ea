package onebot

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/dukex/renflow/pkg/models"
)

// flexInt accepts ids sent either as JSON numbers or numeric strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}

	*f = flexInt(n)

	return nil
}

func (f *flexInt) ptr() *int64 {
	if f == nil {
		return nil
	}

	v := int64(*f)

	return &v
}

// flexString accepts strings and bare numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*f = flexString(s)

		return nil
	}

	if string(data) == "null" {
		*f = ""
		return nil
	}

	*f = flexString(data)

	return nil
}

type wireSender struct {
	UserID   flexInt `json:"user_id"`
	Nickname string  `json:"nickname"`
	Card     string  `json:"card"`
	Role     string  `json:"role"`
}

// frame is every inbound payload. Echo marks an API response; otherwise
// post_type (and for notices sub_type or notice_type) selects the handler.
type frame struct {
	Echo       flexString `json:"echo"`
	PostType   string     `json:"post_type"`
	SubType    string     `json:"sub_type"`
	NoticeType string     `json:"notice_type"`

	MessageID   flexString      `json:"message_id"`
	RealSeq     *flexInt        `json:"real_seq"`
	MessageType string          `json:"message_type"`
	SelfID      flexInt         `json:"self_id"`
	TargetID    *flexInt        `json:"target_id"`
	GroupID     *flexInt        `json:"group_id"`
	GroupName   string          `json:"group_name"`
	UserID      *flexInt        `json:"user_id"`
	Sender      wireSender      `json:"sender"`
	RawMessage  string          `json:"raw_message"`
	Message     json.RawMessage `json:"message"`
	Time        int64           `json:"time"`
}

func (f *frame) eventType() string {
	if f.PostType != "notice" {
		return f.PostType
	}

	if f.SubType != "" {
		return f.SubType
	}

	return f.NoticeType
}

// chatMessage normalizes a message frame. A plain string message becomes a
// single text segment.
func (f *frame) chatMessage(isMine bool) (*models.ChatMessage, error) {
	segments := []models.Segment{}

	trimmed := bytes.TrimSpace(f.Message)

	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
	case trimmed[0] == '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, err
		}

		segments = append(segments, models.TextSegment(text))
	default:
		if err := json.Unmarshal(trimmed, &segments); err != nil {
			return nil, err
		}
	}

	messageType := models.MessageType(f.MessageType)
	if messageType == "" {
		messageType = models.MessageTypePrivate
	}

	return &models.ChatMessage{
		MessageID:    string(f.MessageID),
		MessageSeqID: f.RealSeq.ptr(),
		MessageType:  messageType,
		SelfID:       int64(f.SelfID),
		TargetID:     f.TargetID.ptr(),
		GroupID:      f.GroupID.ptr(),
		GroupName:    f.GroupName,
		UserID:       f.UserID.ptr(),
		Sender: models.Sender{
			UserID:   int64(f.Sender.UserID),
			Nickname: f.Sender.Nickname,
			Card:     f.Sender.Card,
			Role:     f.Sender.Role,
		},
		RawMessage: f.RawMessage,
		Message:    segments,
		Time:       time.Unix(f.Time, 0),
		IsMine:     isMine,
	}, nil
}
