package ledger

import (
	"encoding/json"
	"fmt"
)

// Details is the closed union of per-kind action detail shapes. Each shape
// carries everything a human needs to decide on the pending action without
// consulting logs.
type Details interface {
	DetailKind() Kind
}

type SendEmailDetails struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Count      int      `json:"count"`
}

func (SendEmailDetails) DetailKind() Kind { return KindSendEmail }

type ScheduleMeetingDetails struct {
	EventType  string   `json:"event_type"`
	Recipients []string `json:"recipients"`
	Count      int      `json:"count"`
}

func (ScheduleMeetingDetails) DetailKind() Kind { return KindScheduleMeeting }

type PostNotificationDetails struct {
	Message string `json:"message"`
	Channel string `json:"channel,omitempty"`
}

func (PostNotificationDetails) DetailKind() Kind { return KindPostNotification }

type FullOutreachDetails struct {
	Subject    string   `json:"subject"`
	EventType  string   `json:"event_type"`
	Recipients []string `json:"recipients"`
	Count      int      `json:"count"`
}

func (FullOutreachDetails) DetailKind() Kind { return KindFullOutreach }

type AddContactDetails struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	Context string `json:"context,omitempty"`
}

func (AddContactDetails) DetailKind() Kind { return KindAddContact }

type OtherDetails struct {
	Note string `json:"note"`
}

func (OtherDetails) DetailKind() Kind { return KindOther }

// DecodeDetails rebuilds the concrete detail shape for kind from its JSON
// form. Used by the sqlite store and by API clients round-tripping
// requests.
func DecodeDetails(kind Kind, raw []byte) (Details, error) {
	switch kind {
	case KindSendEmail:
		var d SendEmailDetails
		if err := unmarshalDetails(kind, raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case KindScheduleMeeting:
		var d ScheduleMeetingDetails
		if err := unmarshalDetails(kind, raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case KindPostNotification:
		var d PostNotificationDetails
		if err := unmarshalDetails(kind, raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case KindFullOutreach:
		var d FullOutreachDetails
		if err := unmarshalDetails(kind, raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case KindAddContact:
		var d AddContactDetails
		if err := unmarshalDetails(kind, raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case KindOther:
		var d OtherDetails
		if err := unmarshalDetails(kind, raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown action kind %q", kind)
	}
}

func unmarshalDetails(kind Kind, raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s details: %w", kind, err)
	}
	return nil
}
