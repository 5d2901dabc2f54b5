package llm

import (
	"testing"
)

func testSelector(t *testing.T) *Selector {
	t.Helper()
	s, err := NewSelector(SelectorConfig{
		Routes: map[string]string{
			TaskCode:        "code",
			TaskCreative:    "creative",
			TaskAnalysis:    "analysis",
			TaskChat:        "chat",
			TaskSpecialized: "analysis",
		},
		LongCodeKey:         "code-large",
		CodeLengthThreshold: 4000,
		DefaultKey:          "chat",
	})
	if err != nil {
		t.Fatalf("Failed to build selector: %v", err)
	}
	return s
}

func TestSelector_Select(t *testing.T) {
	s := testSelector(t)

	tests := []struct {
		name      string
		taskType  string
		promptLen int
		expected  string
	}{
		{name: "short code prompt", taskType: "code", promptLen: 500, expected: "code"},
		{name: "long code prompt", taskType: "code", promptLen: 5000, expected: "code-large"},
		{name: "code at threshold", taskType: "code", promptLen: 4000, expected: "code"},
		{name: "creative", taskType: "creative", promptLen: 9000, expected: "creative"},
		{name: "analysis", taskType: "analysis", promptLen: 10, expected: "analysis"},
		{name: "chat", taskType: "chat", promptLen: 10, expected: "chat"},
		{name: "specialized", taskType: "specialized", promptLen: 10, expected: "analysis"},
		{name: "case and whitespace", taskType: "  CODE ", promptLen: 10, expected: "code"},
		{name: "unrecognized", taskType: "poetry-slam", promptLen: 10, expected: "chat"},
		{name: "empty", taskType: "", promptLen: 0, expected: "chat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Select(tt.taskType, tt.promptLen); got != tt.expected {
				t.Errorf("Select(%q, %d) = %q, expected %q", tt.taskType, tt.promptLen, got, tt.expected)
			}
		})
	}
}

func TestSelector_Deterministic(t *testing.T) {
	s := testSelector(t)
	first := s.Select("code", 5000)
	for i := 0; i < 100; i++ {
		if got := s.Select("code", 5000); got != first {
			t.Fatalf("Select is not deterministic: %q then %q", first, got)
		}
	}
	if s.Select("code", 5000) == s.Select("code", 500) {
		t.Error("Expected long code prompts to prefer the higher-capacity backend")
	}
}

func TestSelector_Validate(t *testing.T) {
	registry, err := NewRegistry(testDescriptors())
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}

	s, err := NewSelector(SelectorConfig{
		Routes:      map[string]string{TaskCode: "code"},
		LongCodeKey: "code-large",
		DefaultKey:  "chat",
	})
	if err != nil {
		t.Fatalf("Failed to build selector: %v", err)
	}
	if err := s.Validate(registry); err != nil {
		t.Errorf("Expected valid selector, got %v", err)
	}

	bad, _ := NewSelector(SelectorConfig{
		Routes:     map[string]string{TaskCreative: "creative"},
		DefaultKey: "chat",
	})
	if err := bad.Validate(registry); !IsConfigurationError(err) {
		t.Errorf("Expected configuration error for unregistered route, got %v", err)
	}
}

func TestNewSelector_RequiresDefault(t *testing.T) {
	if _, err := NewSelector(SelectorConfig{}); !IsConfigurationError(err) {
		t.Errorf("Expected configuration error, got %v", err)
	}
}
