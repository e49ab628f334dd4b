package stream

import "testing"

func TestFramerSplitsCompleteLines(t *testing.T) {
	f := &lineFramer{}
	f.Push("first\r\nsecond\nthird")

	if line, ok := f.Next(); !ok || line != "first" {
		t.Errorf("Next() = %q, %v", line, ok)
	}
	if line, ok := f.Next(); !ok || line != "second" {
		t.Errorf("Next() = %q, %v", line, ok)
	}
	if _, ok := f.Next(); ok {
		t.Error("incomplete trailing line was delivered")
	}

	f.Push(" part\n")
	if line, ok := f.Next(); !ok || line != "third part" {
		t.Errorf("Next() after completion = %q, %v", line, ok)
	}
}

func TestFramerPushBackWithholdsUntilMoreBytes(t *testing.T) {
	f := &lineFramer{}
	f.Push("data: {broken\n")

	line, ok := f.Next()
	if !ok {
		t.Fatal("expected a line")
	}
	f.PushBack(line)

	if _, ok := f.Next(); ok {
		t.Error("put-back line was re-delivered without new bytes")
	}

	// The put-back line comes out intact and does not merge into the
	// line that arrives behind it.
	f.Push("data: good\n")
	if line, ok := f.Next(); !ok || line != "data: {broken" {
		t.Errorf("re-delivered line = %q, %v", line, ok)
	}
	if line, ok := f.Next(); !ok || line != "data: good" {
		t.Errorf("following line = %q, %v", line, ok)
	}
}

func TestFramerEmpty(t *testing.T) {
	f := &lineFramer{}
	if _, ok := f.Next(); ok {
		t.Error("empty framer delivered a line")
	}
}
