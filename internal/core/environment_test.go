package core

import "testing"

func TestParseEnvironment(t *testing.T) {
	tests := []struct {
		in   string
		want Environment
	}{
		{"production", Production},
		{" PROD ", Production},
		{"staging", Staging},
		{"test", Testing},
		{"testing", Testing},
		{"", Development},
		{"qa", Development},
	}
	for _, tt := range tests {
		if got := ParseEnvironment(tt.in); got != tt.want {
			t.Errorf("ParseEnvironment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnvironmentDecode(t *testing.T) {
	var e Environment
	if err := e.Decode("Production"); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !e.IsProduction() {
		t.Fatalf("expected production, got %q", e)
	}
}
