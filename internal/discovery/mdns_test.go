// ABOUTME: Tests for agent discovery record handling
// ABOUTME: Covers URL assembly and TXT path extraction
package discovery

import "testing"

func TestAgentURL(t *testing.T) {
	tests := []struct {
		name  string
		agent AgentInfo
		want  string
	}{
		{
			name:  "default path",
			agent: AgentInfo{Host: "192.168.1.20", Port: 8000, Path: "/ws"},
			want:  "ws://192.168.1.20:8000/ws",
		},
		{
			name:  "custom path",
			agent: AgentInfo{Host: "10.0.0.5", Port: 9001, Path: "/agent/ws"},
			want:  "ws://10.0.0.5:9001/agent/ws",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.agent.URL(); got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPathFromTXT(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
		want   string
	}{
		{"no fields", nil, "/ws"},
		{"unrelated fields", []string{"version=2"}, "/ws"},
		{"path field", []string{"version=2", "path=/agent"}, "/agent"},
		{"path without slash", []string{"path=agent"}, "/agent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pathFromTXT(tt.fields); got != tt.want {
				t.Errorf("pathFromTXT(%v) = %q, want %q", tt.fields, got, tt.want)
			}
		})
	}
}
