package topic

import (
	"strings"
	"testing"
)

func TestTicketRoundTrip(t *testing.T) {
	cases := []struct {
		opener, typ string
	}{
		{"123456789012345678", "general"},
		{"98765", "commission-vip"},
		{"555555555", "price_check"},
	}
	for _, c := range cases {
		enc := Append("", TicketTag(c.opener, c.typ))
		got, ok := DecodeTicket(enc)
		if !ok {
			t.Fatalf("decode failed for %q", enc)
		}
		if got.OpenerID != c.opener || got.Type != c.typ {
			t.Errorf("round trip: got %+v, want {%s %s}", got, c.opener, c.typ)
		}
	}
}

func TestOrderRoundTrip(t *testing.T) {
	enc := Append("", OrderTag("123456789012345678", "emote-pack", "paypal"))
	got, ok := DecodeOrder(enc)
	if !ok {
		t.Fatal("decode failed")
	}
	if got.OpenerID != "123456789012345678" || got.OrderType != "emote-pack" || got.PayType != "paypal" {
		t.Errorf("unexpected fields: %+v", got)
	}
}

func TestStaffRoleAndClaimedRoundTrip(t *testing.T) {
	topic := Append("", TicketTag("123456789012345678", "general"))
	topic = Append(topic, StaffRoleTag("111111111111111111"))
	topic = Append(topic, ClaimedTag("222222222222222222"))

	if role, ok := DecodeStaffRole(topic); !ok || role != "111111111111111111" {
		t.Errorf("staff role: got %q ok=%v", role, ok)
	}
	if claimer, ok := DecodeClaimed(topic); !ok || claimer != "222222222222222222" {
		t.Errorf("claimer: got %q ok=%v", claimer, ok)
	}
}

func TestDecodeMissingYieldsNotOK(t *testing.T) {
	for _, topic := range []string{"", "just a plain topic", "ns_ticket:abc:general", "ns_ticket:123:general"} {
		if _, ok := DecodeTicket(topic); ok {
			t.Errorf("expected no match for %q", topic)
		}
		if _, ok := DecodeClaimed(topic); ok {
			t.Errorf("expected no claimed match for %q", topic)
		}
	}
}

func TestDecodeFirstMatchWins(t *testing.T) {
	topic := Append("", ClaimedTag("111111111111111111"))
	topic = Append(topic, ClaimedTag("222222222222222222"))
	claimer, ok := DecodeClaimed(topic)
	if !ok || claimer != "111111111111111111" {
		t.Errorf("expected first claimer to win, got %q", claimer)
	}
}

func TestAppendDropsOversizeTagWhole(t *testing.T) {
	topic := Append("", TicketTag("123456789012345678", "general"))
	topic = Append(topic, StaffRoleTag("111111111111111111"))
	before := topic

	// Fill the topic to the cap, then try to append a claimed tag. A
	// tail-cut would leave a shortened claimer id that still decodes.
	pad := strings.Repeat("x", MaxLen-len(topic)-len(Separator)-len("ns_note:"))
	topic = Append(topic, "ns_note:"+pad)
	if len(topic) != MaxLen {
		t.Fatalf("padding math off: got %d", len(topic))
	}
	topic = Append(topic, ClaimedTag("222222222222222222"))

	if len(topic) > MaxLen {
		t.Fatalf("topic exceeds MaxLen: %d", len(topic))
	}
	if !strings.HasPrefix(topic, before) {
		t.Error("appending altered bytes of earlier tags")
	}
	if claimer, ok := DecodeClaimed(topic); ok {
		t.Errorf("dropped claimed tag still decodes as %q", claimer)
	}
	if _, ok := DecodeTicket(topic); !ok {
		t.Error("earlier ticket tag no longer decodes")
	}

	// An oversize tag on an empty topic yields an empty topic, not a stub.
	if got := Append("", strings.Repeat("y", MaxLen+1)); got != "" {
		t.Errorf("oversize tag on empty topic kept %d bytes", len(got))
	}
}

func TestAppendEmptyPrior(t *testing.T) {
	got := Append("", "ns_staffrole:12345")
	if got != "ns_staffrole:12345" {
		t.Errorf("unexpected leading separator: %q", got)
	}
}
