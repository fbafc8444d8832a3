package cerr

import (
	"errors"
	"testing"
)

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(Validation, cause, "key1")

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if err.Code != Validation {
		t.Errorf("Code = %v, want Validation", err.Code)
	}
	if err.UserData != "key1" {
		t.Errorf("UserData = %v, want key1", err.UserData)
	}
}

func TestErrorCode_String(t *testing.T) {
	cases := map[ErrorCode]string{
		Validation:            "VALIDATION",
		EngineTransport:       "ENGINE_TRANSPORT",
		SessionLocked:         "SESSION_LOCKED",
		SessionNotOwned:       "SESSION_NOT_OWNED",
		SessionAcquireTimeout: "SESSION_ACQUIRE_TIMEOUT",
		SessionAlreadyHeld:    "SESSION_ALREADY_HELD",
		RestoreFrameError:     "RESTORE_FRAME_ERROR",
		RestoreKeyMismatch:    "RESTORE_KEY_MISMATCH",
		Unknown:               "CACHIFY_ERROR",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", code, got, want)
		}
	}
}

func TestError_MessageIncludesUserData(t *testing.T) {
	err := NewError(Validation, errors.New("bad key"), "scope=global")
	msg := err.Error()
	if msg == "" {
		t.Fatal("Error() returned empty string")
	}
	if !errors.Is(err, err.Err) {
		t.Error("errors.Is(err, err.Err) should hold")
	}
}
