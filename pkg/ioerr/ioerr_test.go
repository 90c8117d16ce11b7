package ioerr

import (
	"errors"
	"io"
	"testing"
)

func TestWrapNilReturnsNil(t *testing.T) {
	if err := Wrap(IO, "op", nil); err != nil {
		t.Fatalf("Wrap(nil) = %v, want nil", err)
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := Wrap(OutOfBounds, "RAB.pread", io.EOF)
	if !Is(err, OutOfBounds) {
		t.Errorf("Is(err, OutOfBounds) = false, want true")
	}
	if Is(err, ReadOnly) {
		t.Errorf("Is(err, ReadOnly) = true, want false")
	}
}

func TestUnwrapReachesCause(t *testing.T) {
	err := Wrap(IO, "FileStore.pwrite", io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("errors.Is(err, io.ErrUnexpectedEOF) = false, want true")
	}
}

func TestNewHasNoCause(t *testing.T) {
	err := New(AlreadyOpen, "Bucket.open_writer")
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("errors.As failed")
	}
	if e.Err != nil {
		t.Errorf("New() Err = %v, want nil", e.Err)
	}
	if e.Kind != AlreadyOpen {
		t.Errorf("Kind = %v, want AlreadyOpen", e.Kind)
	}
}

func TestKindStringIsStable(t *testing.T) {
	cases := map[Kind]string{
		AlreadyOpen:            "already-open",
		Disposed:               "disposed",
		OutOfBounds:            "out-of-bounds",
		InsufficientDiskSpace:  "insufficient-disk-space",
		StorageFormat:          "storage-format",
		Crypto:                 "crypto",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
