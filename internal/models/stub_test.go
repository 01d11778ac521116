package models

import (
	"encoding/json"
	"testing"
)

func TestStubValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "minimal valid stub",
			input:   `{"responses": [{"status": 200}]}`,
			wantErr: false,
		},
		{
			name:    "empty responses rejected",
			input:   `{"responses": []}`,
			wantErr: true,
		},
		{
			name:    "status at lower bound",
			input:   `{"responses": [{"status": 100}]}`,
			wantErr: false,
		},
		{
			name:    "status at upper bound",
			input:   `{"responses": [{"status": 599}]}`,
			wantErr: false,
		},
		{
			name:    "status 600 rejected",
			input:   `{"responses": [{"status": 600}]}`,
			wantErr: true,
		},
		{
			name:    "status 99 rejected",
			input:   `{"responses": [{"status": 99}]}`,
			wantErr: true,
		},
		{
			name:    "delay at maximum",
			input:   `{"responses": [{"status": 200, "delay": 60000}]}`,
			wantErr: false,
		},
		{
			name:    "delay beyond maximum rejected",
			input:   `{"responses": [{"status": 200, "delay": 60001}]}`,
			wantErr: true,
		},
		{
			name:    "unknown responseMode rejected",
			input:   `{"responses": [{"status": 200}], "responseMode": "roundRobin"}`,
			wantErr: true,
		},
		{
			name:    "unknown predicate field rejected",
			input:   `{"predicates": [{"field": "cookie", "operator": "equals", "value": "x"}], "responses": [{"status": 200}]}`,
			wantErr: true,
		},
		{
			name:    "unknown operator rejected",
			input:   `{"predicates": [{"field": "path", "operator": "endsWith", "value": "x"}], "responses": [{"status": 200}]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stub Stub
			if err := json.Unmarshal([]byte(tt.input), &stub); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			err := stub.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPredicateCaseSensitiveDefaultsTrue(t *testing.T) {
	var pred Predicate
	if err := json.Unmarshal([]byte(`{"field":"path","operator":"equals","value":"/x"}`), &pred); err != nil {
		t.Fatal(err)
	}
	if !pred.IsCaseSensitive() {
		t.Error("unset caseSensitive must default to true")
	}

	if err := json.Unmarshal([]byte(`{"field":"path","operator":"equals","value":"/x","caseSensitive":false}`), &pred); err != nil {
		t.Fatal(err)
	}
	if pred.IsCaseSensitive() {
		t.Error("explicit false was ignored")
	}
}

func TestProxyConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProxyConfig
		wantErr bool
	}{
		{"http target", ProxyConfig{TargetURL: "http://up:8080", Mode: "passthrough"}, false},
		{"https target", ProxyConfig{TargetURL: "https://up", Mode: "record"}, false},
		{"missing scheme", ProxyConfig{TargetURL: "up:8080", Mode: "record"}, true},
		{"bad mode", ProxyConfig{TargetURL: "http://up", Mode: "mirror"}, true},
		{"timeout too small", ProxyConfig{TargetURL: "http://up", Mode: "record", TimeoutMs: 50}, true},
		{"timeout too large", ProxyConfig{TargetURL: "http://up", Mode: "record", TimeoutMs: 70000}, true},
		{"timeout in range", ProxyConfig{TargetURL: "http://up", Mode: "record", TimeoutMs: 5000}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProxyConfigDefaults(t *testing.T) {
	p := ProxyConfig{TargetURL: "http://up", Mode: "passthrough"}
	if p.Timeout().Milliseconds() != DefaultProxyTimeoutMs {
		t.Errorf("default timeout = %v", p.Timeout())
	}
	if !p.ShouldFollowRedirects() {
		t.Error("followRedirects must default to true")
	}
}

func TestNewImposterIDShape(t *testing.T) {
	id := NewImposterID()
	if len(id) != 8 {
		t.Errorf("id %q should be 8 hex chars", id)
	}
	if id == NewImposterID() {
		t.Error("ids should not repeat")
	}
}

func TestResponseStatusCodeDefault(t *testing.T) {
	r := ResponseConfig{}
	if r.StatusCode() != 200 {
		t.Errorf("default status = %d", r.StatusCode())
	}
	r.Status = 503
	if r.StatusCode() != 503 {
		t.Errorf("explicit status = %d", r.StatusCode())
	}
}
