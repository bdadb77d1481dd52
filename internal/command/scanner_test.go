package command

import "testing"

func TestScanNestedBraces(t *testing.T) {
	got := Scan(`⟐CMD {"a": {"b": 1}} tail`)
	if len(got) != 1 {
		t.Fatalf("expected 1 payload, got %d: %v", len(got), got)
	}
	if got[0] != `{"a": {"b": 1}}` {
		t.Errorf("payload truncated at inner brace: %q", got[0])
	}
}

func TestScanBracesInsideStrings(t *testing.T) {
	got := Scan(`⟐CMD {"text": "a } b { c", "n": 1}`)
	if len(got) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(got))
	}
	if got[0] != `{"text": "a } b { c", "n": 1}` {
		t.Errorf("quoted braces affected depth: %q", got[0])
	}
}

func TestScanEscapedQuoteInString(t *testing.T) {
	got := Scan(`⟐CMD {"text": "quote \" then }", "n": 2}`)
	if len(got) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(got))
	}
	if got[0] != `{"text": "quote \" then }", "n": 2}` {
		t.Errorf("escape handling broke extraction: %q", got[0])
	}
}

func TestScanMultipleDirectives(t *testing.T) {
	text := `before ⟐CMD {"action": "one"} middle ⟐CMD {"action": "two"} after`
	got := Scan(text)
	if len(got) != 2 {
		t.Fatalf("expected 2 payloads, got %d: %v", len(got), got)
	}
	if got[0] != `{"action": "one"}` || got[1] != `{"action": "two"}` {
		t.Errorf("left-to-right extraction wrong: %v", got)
	}
}

func TestScanUnterminatedObjectStopsScan(t *testing.T) {
	// The first directive is fine; the second never closes, so scanning
	// terminates without returning a partial payload.
	text := `⟐CMD {"action": "one"} then ⟐CMD {"action": "broken"`
	got := Scan(text)
	if len(got) != 1 || got[0] != `{"action": "one"}` {
		t.Errorf("unterminated directive should end the scan: %v", got)
	}
}

func TestScanSentinelWithoutBrace(t *testing.T) {
	got := Scan(`⟐CMD no object here`)
	if len(got) != 0 {
		t.Errorf("expected no payloads, got %v", got)
	}
}

func TestScanNoSentinel(t *testing.T) {
	got := Scan(`just ordinary text with {"json": true}`)
	if len(got) != 0 {
		t.Errorf("objects without the sentinel must be ignored: %v", got)
	}
}

func TestScanSkipsProseBetweenSentinelAndBrace(t *testing.T) {
	got := Scan(`⟐CMD please run {"action": "one"}`)
	if len(got) != 1 || got[0] != `{"action": "one"}` {
		t.Errorf("scanner should skip ahead to the first brace: %v", got)
	}
}
