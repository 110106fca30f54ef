package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransport     = errors.New("transport error")
	ErrQuota         = errors.New("quota exceeded")
	ErrFormat        = errors.New("format error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Kind classifies a failure for user-facing reporting.
type Kind string

const (
	KindTransport     Kind = "transport"
	KindQuota         Kind = "quota"
	KindFormat        Kind = "format"
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindTimeout       Kind = "timeout"
	KindCanceled      Kind = "canceled"
	KindUnknown       Kind = "unknown"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureKind maps an error to the kind reported back to the chat thread.
func FailureKind(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrQuota):
		return KindQuota
	case errors.Is(err, ErrFormat):
		return KindFormat
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTransport), errors.Is(err, ErrTransient):
		return KindTransport
	default:
		return KindUnknown
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// UserMessage renders err as a short Ukrainian explanation suitable for a chat
// reply. Unclassified errors fall back to their own text.
func UserMessage(err error) string {
	switch FailureKind(err) {
	case KindCanceled:
		return "обробку перервано, бо я перезапускаюся. Надішли файл ще раз трохи згодом"
	case KindTimeout:
		return "зовнішній сервіс не відповів вчасно"
	case KindQuota:
		return "вичерпано ліміт запитів до зовнішнього сервісу, спробуй пізніше"
	case KindFormat:
		return "не вдалося розібрати вміст файлу"
	case KindValidation:
		return "файл не пройшов перевірку: " + innermost(err)
	case KindConfiguration:
		return "мене неправильно налаштували, напиши адміністратору"
	case KindNotFound:
		return "не можу знайти файл"
	case KindTransport:
		return "не вдалося зв'язатися із зовнішнім сервісом"
	}
	if err == nil {
		return ""
	}
	return innermost(err)
}

// innermost returns the text of the deepest error in a single-wrap chain.
func innermost(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
