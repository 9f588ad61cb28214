package events

import (
	"strconv"

	"github.com/quizapp/quiz-platform/pkg/sdk"
)

// Raw event type constants as reported by the platform accessibility API.
const (
	TypeWindowStateChanged   = 0x00000020
	TypeWindowContentChanged = 0x00000800
	TypeWindowsChanged       = 0x00400000
)

// RawEvent is a platform notification before normalization. Nil pointers
// mean the platform did not report the field.
type RawEvent struct {
	Type        int     `json:"eventType"`
	PackageName *string `json:"packageName"`
	ClassName   *string `json:"className"`
	EventTime   int64   `json:"eventTime"`
}

// KindOf maps a raw type constant to its EventKind. Unknown constants come
// back as their decimal string.
func KindOf(rawType int) sdk.EventKind {
	switch rawType {
	case TypeWindowStateChanged:
		return sdk.KindWindowStateChanged
	case TypeWindowsChanged:
		return sdk.KindWindowsChanged
	case TypeWindowContentChanged:
		return sdk.KindWindowContentChanged
	}
	return sdk.EventKind(strconv.Itoa(rawType))
}

// Normalize converts raw into a ForegroundChangeEvent. The second result is
// false when raw carries no package name and must be discarded.
func Normalize(raw RawEvent) (sdk.ForegroundChangeEvent, bool) {
	if raw.PackageName == nil || *raw.PackageName == "" {
		return sdk.ForegroundChangeEvent{}, false
	}
	ev := sdk.ForegroundChangeEvent{
		EventKind:   KindOf(raw.Type),
		PackageName: *raw.PackageName,
		Timestamp:   raw.EventTime,
	}
	if raw.ClassName != nil {
		ev.ClassName = *raw.ClassName
	}
	return ev, true
}
