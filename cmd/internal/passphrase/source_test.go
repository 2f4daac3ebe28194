package passphrase

import (
	"errors"
	"strings"
	"testing"
)

func newTestSource(env map[string]string, terminal bool, typed string) *Source {
	s := NewSource("TEST_PASS", "test keystore")
	s.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	s.isTerminal = func() bool { return terminal }
	s.prompt = func(string) (string, error) { return typed, nil }
	return s
}

func TestSourcePrefersEnvironment(t *testing.T) {
	s := newTestSource(map[string]string{"TEST_PASS": "from-env"}, true, "typed")
	got, err := s.Get()
	if err != nil || got != "from-env" {
		t.Fatalf("expected env passphrase, got %q %v", got, err)
	}
}

func TestSourceRejectsEmptyEnvironment(t *testing.T) {
	s := newTestSource(map[string]string{"TEST_PASS": "  "}, true, "typed")
	if _, err := s.Get(); err == nil || !strings.Contains(err.Error(), "TEST_PASS") {
		t.Fatalf("expected empty env error, got %v", err)
	}
}

func TestSourcePromptsOnTerminal(t *testing.T) {
	s := newTestSource(nil, true, "typed")
	got, err := s.Get()
	if err != nil || got != "typed" {
		t.Fatalf("expected prompted passphrase, got %q %v", got, err)
	}
	s.prompt = func(string) (string, error) { return "", errors.New("not called") }
	if again, _ := s.Get(); again != "typed" {
		t.Fatalf("expected cached passphrase")
	}
}

func TestSourceWithoutTerminal(t *testing.T) {
	s := newTestSource(nil, false, "")
	if _, err := s.Get(); err == nil || !strings.Contains(err.Error(), "test keystore") {
		t.Fatalf("expected no-terminal error, got %v", err)
	}
	blank := newTestSource(nil, true, "   ")
	if _, err := blank.Get(); err == nil {
		t.Fatalf("expected blank passphrase rejection")
	}
}
