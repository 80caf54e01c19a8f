// Package assert contains the assertions used by tests of the module.
package assert

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func OK(t testing.TB, err error) {
	if err != nil {
		t.Helper()
		t.Fatal("error:", err)
	}
}

func Error(t testing.TB, got, want error) {
	if !errors.Is(got, want) {
		t.Helper()
		t.Fatalf("error mismatch\nwant = %s\ngot  = %s", want, got)
	}
}

// ErrorAs asserts that err wraps an error of type T and returns it.
func ErrorAs[T error](t testing.TB, err error) T {
	var target T
	if !errors.As(err, &target) {
		t.Helper()
		t.Fatalf("error type mismatch\nwant = %T\ngot  = %#v", target, err)
	}
	return target
}

// ErrorMessage asserts that err is not nil and that its message is want.
func ErrorMessage(t testing.TB, err error, want string) {
	if err == nil || err.Error() != want {
		t.Helper()
		t.Fatalf("error message mismatch\nwant = %q\ngot  = %v", want, err)
	}
}

func True(t testing.TB, value bool, msg string) {
	if !value {
		t.Helper()
		t.Fatal(msg)
	}
}

func Equal[T comparable](t testing.TB, got, want T) {
	if got != want {
		t.Helper()
		t.Fatalf("value mismatch\nwant = %#v\ngot  = %#v", want, got)
	}
}

func HasPrefix(t testing.TB, got, want string) {
	if !strings.HasPrefix(got, want) {
		t.Helper()
		t.Fatalf("prefix mismatch\nwant = %q\ngot  = %q", want, got)
	}
}

func Contains(t testing.TB, got, want string) {
	if !strings.Contains(got, want) {
		t.Helper()
		t.Fatalf("value does not contain %q\ngot  = %q", want, got)
	}
}

func EqualAll[T comparable](t testing.TB, got, want []T) {
	if len(got) != len(want) {
		t.Helper()
		t.Fatalf("number of values mismatch\nwant = %#v\ngot  = %#v", want, got)
	}

	for i, value := range want {
		if value != got[i] {
			t.Helper()
			t.Fatalf("value at index %d/%d mismatch\nwant = %#v\ngot  = %#v", i, len(want), value, got[i])
		}
	}
}

// DeepEqual compares values with go-cmp and reports the difference.
func DeepEqual(t testing.TB, got, want any, opts ...cmp.Option) {
	if diff := cmp.Diff(want, got, opts...); diff != "" {
		t.Helper()
		t.Fatalf("value mismatch (-want +got):\n%s", diff)
	}
}
