package command

import "testing"

func TestKnown(t *testing.T) {
	cases := []struct {
		typ  Type
		want bool
	}{
		{TypePostCreate, true},
		{TypePostUpdate, true},
		{TypePostDelete, true},
		{Type("post.publish"), false},
		{Type(""), false},
	}
	for _, tc := range cases {
		if got := Known(tc.typ); got != tc.want {
			t.Fatalf("Known(%q) = %v, want %v", tc.typ, got, tc.want)
		}
	}
}

func TestDecisionAccepted(t *testing.T) {
	accepted := Accept(PendingEvent{Type: "post.created"})
	if !accepted.Accepted() {
		t.Fatalf("Accept decision should report accepted")
	}

	rejected := Reject("POST_NOT_CREATED", "post does not exist")
	if rejected.Accepted() {
		t.Fatalf("Reject decision should not report accepted")
	}
	if len(rejected.Rejections) != 1 {
		t.Fatalf("expected 1 rejection, got %d", len(rejected.Rejections))
	}
	if rejected.Rejections[0].Code != "POST_NOT_CREATED" {
		t.Fatalf("unexpected rejection code %q", rejected.Rejections[0].Code)
	}

	var empty Decision
	if empty.Accepted() {
		t.Fatalf("zero decision should not report accepted")
	}
}
