package signature

import (
	"errors"
	"strings"
	"testing"
)

const (
	testSecret = "shared-secret"
	testTS     = "1714000000"
)

func TestVerify_ValidSignature(t *testing.T) {
	body := []byte(`{"channelId":"c1","data":{"x":1}}`)
	sig := Compute(testSecret, testTS, body)

	v := New(testSecret, true)
	if err := v.Verify(sig, testTS, body); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
}

func TestVerify_SingleByteMutationDenied(t *testing.T) {
	body := []byte(`{"channelId":"c1"}`)
	sig := Compute(testSecret, testTS, body)

	for i := 0; i < len(sig); i++ {
		mutated := []byte(sig)
		if mutated[i] == 'a' {
			mutated[i] = 'b'
		} else {
			mutated[i] = 'a'
		}
		err := New(testSecret, true).Verify(string(mutated), testTS, body)
		var deny *DenyError
		if !errors.As(err, &deny) || deny.Reason != ReasonInvalidSignature {
			t.Fatalf("mutation at %d not denied: %v", i, err)
		}
	}
}

func TestVerify_LengthMismatchDenied(t *testing.T) {
	body := []byte("{}")
	sig := Compute(testSecret, testTS, body)

	err := New(testSecret, true).Verify(sig+"00", testTS, body)
	var deny *DenyError
	if !errors.As(err, &deny) || deny.Reason != ReasonInvalidSignature {
		t.Fatalf("length mismatch not denied: %v", err)
	}
}

func TestVerify_MissingHeaders(t *testing.T) {
	v := New(testSecret, true)

	err := v.Verify("", testTS, []byte("{}"))
	var deny *DenyError
	if !errors.As(err, &deny) || deny.Reason != ReasonMissingSignature {
		t.Fatalf("missing signature: got %v", err)
	}
	if !strings.Contains(deny.Message, "X-Signature") {
		t.Errorf("message should name the missing header: %q", deny.Message)
	}

	err = v.Verify("deadbeef", "", []byte("{}"))
	if !errors.As(err, &deny) || deny.Reason != ReasonMissingTimestamp {
		t.Fatalf("missing timestamp: got %v", err)
	}
}

func TestVerify_EmptySecretPosture(t *testing.T) {
	// Non-production: bypass (allow anything).
	if err := New("", false).Verify("whatever", "", nil); err != nil {
		t.Fatalf("non-production empty secret must bypass: %v", err)
	}

	// Production: deny everything, even otherwise well-formed requests.
	err := New("", true).Verify("whatever", testTS, []byte("{}"))
	var deny *DenyError
	if !errors.As(err, &deny) || deny.Reason != ReasonSecretNotConfigured {
		t.Fatalf("production empty secret must deny: %v", err)
	}
}

func TestCompute_SeparatorMatters(t *testing.T) {
	// timestamp+"."+body must not collide with a shifted split.
	a := Compute(testSecret, "12", []byte("3body"))
	b := Compute(testSecret, "123", []byte("body"))
	if a == b {
		t.Fatalf("signatures for different timestamp/body splits must differ")
	}
}
