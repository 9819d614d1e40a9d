package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidInput, "bad policy: %s", "apx")
	if err.Code != ErrCodeInvalidInput {
		t.Errorf("Code = %s, want %s", err.Code, ErrCodeInvalidInput)
	}
	if err.Message != "bad policy: apx" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Error() != "INVALID_INPUT: bad policy: apx" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("permission denied")
	err := Wrap(ErrCodeSourceRead, cause, "read app/main.py")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should match its cause via errors.Is")
	}
	want := "SOURCE_READ: read app/main.py: permission denied"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{"matching code", New(ErrCodeParse, "syntax error"), ErrCodeParse, true},
		{"different code", New(ErrCodeParse, "syntax error"), ErrCodeSourceRead, false},
		{"wrapped match", fmt.Errorf("outer: %w", New(ErrCodeUnauthorized, "bad key")), ErrCodeUnauthorized, true},
		{"plain error", fmt.Errorf("plain"), ErrCodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeRootNotFound, "no such dir")); got != ErrCodeRootNotFound {
		t.Errorf("GetCode = %s", got)
	}
	if got := GetCode(fmt.Errorf("plain")); got != "" {
		t.Errorf("GetCode on plain error = %s, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	err := New(ErrCodeAppUnresolved, "module app.main not scanned")
	if got := UserMessage(err); got != "module app.main not scanned" {
		t.Errorf("UserMessage = %q", got)
	}
	if got := UserMessage(fmt.Errorf("raw")); got != "raw" {
		t.Errorf("UserMessage on plain error = %q", got)
	}
}

func TestDiagnosticString(t *testing.T) {
	d := Diag(ErrCodeParse, "app/broken.py", "unparsable at line %d", 3)
	want := "PARSE_ERROR app/broken.py: unparsable at line 3"
	if d.String() != want {
		t.Errorf("String() = %q, want %q", d.String(), want)
	}

	d2 := Diagnostic{Code: ErrCodeHandlerUnmatched, Subject: "GET /items", Message: "no symbol for handler"}
	if d2.String() != "HANDLER_UNMATCHED: no symbol for handler" {
		t.Errorf("String() = %q", d2.String())
	}
}
