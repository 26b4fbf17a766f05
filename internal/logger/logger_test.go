package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewIsSingleton(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	first := New(Options{Level: "debug"})
	second := New(Options{Level: "error"})

	if first != second {
		t.Error("Expected the same logger on every call")
	}
	if first.GetLevel() != logrus.DebugLevel {
		t.Errorf("Expected level from the first call, got %s", first.GetLevel())
	}
	if Get() != first {
		t.Error("Expected Get to return the configured logger")
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.WithFields(Fields{"k": "v"}).Info("dropped")
	if l == Get() {
		t.Error("Expected Discard to return a separate logger")
	}
}
