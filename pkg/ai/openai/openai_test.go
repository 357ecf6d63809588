package openai

import "testing"

func TestNewGraphOpenAIClientRequiresCredentials(t *testing.T) {
	tests := []struct {
		name    string
		params  NewGraphOpenAIClientParams
		wantErr bool
	}{
		{
			name: "valid",
			params: NewGraphOpenAIClientParams{
				PrimaryModel: "gpt-4o-mini",
				ChatKey:      "sk-test",
			},
		},
		{
			name: "missing key",
			params: NewGraphOpenAIClientParams{
				PrimaryModel: "gpt-4o-mini",
			},
			wantErr: true,
		},
		{
			name: "missing primary model",
			params: NewGraphOpenAIClientParams{
				ChatKey: "sk-test",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewGraphOpenAIClient(tt.params)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewGraphOpenAIClient() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if client.ChatClient == nil {
				t.Error("ChatClient is nil for valid params")
			}
		})
	}
}

func TestNewGraphOpenAIClientDefaultsAdvancedModel(t *testing.T) {
	client, err := NewGraphOpenAIClient(NewGraphOpenAIClientParams{
		PrimaryModel: "gpt-4o-mini",
		ChatKey:      "sk-test",
	})
	if err != nil {
		t.Fatalf("NewGraphOpenAIClient() error = %v", err)
	}
	if client.advancedModel != client.primaryModel {
		t.Errorf("advancedModel = %q, want primary %q", client.advancedModel, client.primaryModel)
	}
}
