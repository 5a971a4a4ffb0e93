package invalidation

import "testing"

func TestEncodeDecodeReset(t *testing.T) {
	msg := Decode(EncodeReset())
	if msg.Verb != VerbReset {
		t.Fatalf("Verb = %v, want VerbReset", msg.Verb)
	}
}

func TestEncodeDecodeDelete(t *testing.T) {
	msg := Decode(EncodeDelete("user:42"))
	if msg.Verb != VerbDelete {
		t.Fatalf("Verb = %v, want VerbDelete", msg.Verb)
	}
	if msg.Key != "user:42" {
		t.Fatalf("Key = %q, want user:42", msg.Key)
	}
}

func TestDecodeUnknown(t *testing.T) {
	for _, payload := range []string{"", "garbage", "resetx", "de:short"} {
		if msg := Decode([]byte(payload)); msg.Verb != VerbUnknown {
			t.Fatalf("Decode(%q).Verb = %v, want VerbUnknown", payload, msg.Verb)
		}
	}
}

func TestDeleteEmptyKey(t *testing.T) {
	msg := Decode(EncodeDelete(""))
	if msg.Verb != VerbDelete || msg.Key != "" {
		t.Fatalf("Decode(EncodeDelete(\"\")) = %+v", msg)
	}
}
