package model

import "testing"

func TestMessageStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to MessageStatus
		ok       bool
	}{
		{MessageStatusSending, MessageStatusSent, true},
		{MessageStatusSent, MessageStatusDelivered, true},
		{MessageStatusDelivered, MessageStatusRead, true},
		{MessageStatusSending, MessageStatusDelivered, false},
		{MessageStatusSent, MessageStatusRead, false},
		{MessageStatusRead, MessageStatusSending, false},
		{MessageStatusDelivered, MessageStatusSent, false},
		{MessageStatusRead, MessageStatusRead, false},
		{MessageStatus("failed"), MessageStatusSent, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanAdvanceTo(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestMessageStatusReadIsTerminal(t *testing.T) {
	if next, ok := MessageStatusRead.Next(); ok {
		t.Fatalf("read must be terminal, got next=%s", next)
	}
}

func TestMessageStatusBefore(t *testing.T) {
	if !MessageStatusSending.Before(MessageStatusRead) {
		t.Error("sending should be before read")
	}
	if MessageStatusRead.Before(MessageStatusDelivered) {
		t.Error("read should not be before delivered")
	}
	if MessageStatusSent.Before(MessageStatusSent) {
		t.Error("status should not be before itself")
	}
	if MessageStatus("bogus").Before(MessageStatusRead) {
		t.Error("unknown status should not compare")
	}
}

func TestMessageCloneCopiesAttachment(t *testing.T) {
	m := Message{ID: 1, Attachment: &Attachment{Name: "report.pdf"}}
	c := m.Clone()
	c.Attachment.Name = "changed.pdf"
	if m.Attachment.Name != "report.pdf" {
		t.Fatalf("clone shares attachment: %s", m.Attachment.Name)
	}
}
