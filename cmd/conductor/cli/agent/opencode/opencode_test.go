package opencode

import "testing"

func TestParseExportDocument(t *testing.T) {
	t.Parallel()

	p := &Parser{}
	doc := `{"info":{"id":"ses_123","cost":0.08,"tokens":{"input":50,"output":20,"cache":{"read":7,"write":3}}},` +
		`"parts":[{"type":"text","text":"first"},{"type":"tool","tool":"edit"},{"type":"text","text":"second"}]}`

	ev := p.ParseLine([]byte(doc))
	if ev == nil {
		t.Fatal("ParseLine() = nil, want event")
	}
	if !p.IsResultMessage(ev) {
		t.Fatal("IsResultMessage() = false, want true")
	}
	if ev.Text != "first\nsecond" {
		t.Errorf("Text = %q, want joined text parts", ev.Text)
	}
	if ev.ToolName != "edit" {
		t.Errorf("ToolName = %q, want edit", ev.ToolName)
	}
	if got := p.ExtractSessionID(ev); got != "ses_123" {
		t.Errorf("ExtractSessionID() = %q, want ses_123", got)
	}

	usage := p.ExtractUsage(ev)
	if usage == nil {
		t.Fatal("ExtractUsage() = nil, want stats")
	}
	if usage.InputTokens != 50 || usage.OutputTokens != 20 {
		t.Errorf("tokens = %d/%d, want 50/20", usage.InputTokens, usage.OutputTokens)
	}
	if usage.CacheReadTokens != 7 || usage.CacheCreationTokens != 3 {
		t.Errorf("cache = %d/%d, want 7/3", usage.CacheReadTokens, usage.CacheCreationTokens)
	}
	if usage.TotalCostUSD != 0.08 {
		t.Errorf("TotalCostUSD = %f, want 0.08", usage.TotalCostUSD)
	}
}

func TestParseLineRejectsNonExport(t *testing.T) {
	t.Parallel()

	p := &Parser{}
	if ev := p.ParseLine([]byte(`{"type":"assistant"}`)); ev != nil {
		t.Fatalf("ParseLine() = %+v, want nil for foreign shape", ev)
	}
	if ev := p.ParseLine([]byte("not json")); ev != nil {
		t.Fatalf("ParseLine() = %+v, want nil", ev)
	}
}

func TestDetectErrorFromDocument(t *testing.T) {
	t.Parallel()

	p := &Parser{}
	err := p.DetectErrorFromLine([]byte(`{"error":{"name":"ProviderError","message":"provider returned 500"}}`))
	if err == nil {
		t.Fatal("DetectErrorFromLine() = nil, want error")
	}
	if err.Message != "provider returned 500" {
		t.Errorf("Message = %q, want provider message", err.Message)
	}
}
