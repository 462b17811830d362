package checksum

import (
	"bytes"
	"strings"
	"testing"
)

func TestSum(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Sum([]byte("abc")); got != want {
		t.Errorf("Sum = %q, want %q", got, want)
	}
}

func TestCopyMatchesSum(t *testing.T) {
	var buf bytes.Buffer
	sum, n, err := Copy(&buf, strings.NewReader("voice memo"))
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if n != int64(len("voice memo")) {
		t.Errorf("n = %d", n)
	}
	if buf.String() != "voice memo" {
		t.Errorf("copied %q", buf.String())
	}
	if sum != Sum([]byte("voice memo")) {
		t.Errorf("Copy digest %q differs from Sum", sum)
	}
}
