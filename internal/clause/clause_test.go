package clause

import "testing"

func TestSplitBlankLineBlocks(t *testing.T) {
	raw := "1. Term.\nThis agreement starts on the Effective Date.\n\n2. Liability.\nLiability is capped.\n\n\n3. Law."
	segments := Split(raw)
	if len(segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(segments))
	}
	for i, seg := range segments {
		if raw[seg.Start:seg.Start+len(seg.Text)] != seg.Text {
			t.Fatalf("segment %d offset %d does not point at its own text", i, seg.Start)
		}
	}
	if segments[1].Text != "2. Liability.\nLiability is capped." {
		t.Fatalf("segment 1 = %q", segments[1].Text)
	}
}

func TestSplitSentenceFallback(t *testing.T) {
	raw := "This is one block. It has sentences! And a question? Done"
	segments := Split(raw)
	if len(segments) != 4 {
		t.Fatalf("got %d segments, want 4: %+v", len(segments), segments)
	}
	if segments[0].Text != "This is one block." {
		t.Fatalf("segment 0 = %q", segments[0].Text)
	}
	if segments[3].Text != "Done" {
		t.Fatalf("segment 3 = %q", segments[3].Text)
	}
}

func TestSplitDegenerate(t *testing.T) {
	if got := Split(""); got != nil {
		t.Fatalf("empty text yields %+v", got)
	}
	if got := Split("  \n\t \n "); got != nil {
		t.Fatalf("whitespace text yields %+v", got)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{text: "Supplier shall indemnify and hold harmless the Client.", want: "indemnity"},
		{text: "Aggregate liability shall not exceed the fees paid.", want: "limitation_of_liability"},
		{text: "Either party may terminate for convenience.", want: "termination"},
		{text: "All Confidential Information remains secret.", want: "confidentiality"},
		{text: "This agreement is governed by the governing law of England.", want: "governing_law"},
		{text: "The parties will meet monthly.", want: "other"},
	}
	for _, tc := range cases {
		got, confidence := Classify(tc.text)
		if got != tc.want {
			t.Fatalf("Classify(%q) = %q, want %q", tc.text, got, tc.want)
		}
		if tc.want == "other" && confidence >= keywordConfidence {
			t.Fatalf("other confidence %v too high", confidence)
		}
	}
}
