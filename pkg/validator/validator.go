package validator

import (
	"strings"
	"unicode/utf8"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

// First returns one of the messages, for callers that report a single
// failure string back over the wire.
func (v ValidationErrors) First() string {
	for _, msg := range v {
		return msg
	}
	return ""
}

const (
	maxRoomNameLen  = 100
	maxChatTextLen  = 2000
	maxBoardBlobLen = 256 * 1024
)

func ValidateRoomName(name string) ValidationErrors {
	errs := make(ValidationErrors)

	name = strings.TrimSpace(name)
	if name == "" {
		errs.Add("name", "Room name is required")
	} else if utf8.RuneCountInString(name) < 2 {
		errs.Add("name", "Room name must be at least 2 characters")
	} else if utf8.RuneCountInString(name) > maxRoomNameLen {
		errs.Add("name", "Room name is too long")
	}

	return errs
}

func ValidateChatText(text string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(text) == "" {
		errs.Add("text", "Message text is required")
	} else if utf8.RuneCountInString(text) > maxChatTextLen {
		errs.Add("text", "Message text is too long")
	}

	return errs
}

// ValidateBoardState only bounds the blob: its contents are opaque to the
// engine and relayed verbatim.
func ValidateBoardState(state []byte) ValidationErrors {
	errs := make(ValidationErrors)

	if len(state) == 0 {
		errs.Add("state", "Board state is required")
	} else if len(state) > maxBoardBlobLen {
		errs.Add("state", "Board state is too large")
	}

	return errs
}
