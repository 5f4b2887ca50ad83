package domain

import "testing"

func TestShardDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		desc    ShardDescriptor
		wantErr bool
	}{
		{"first shard", ShardDescriptor{Index: 1, Total: 3}, false},
		{"last shard", ShardDescriptor{Index: 3, Total: 3}, false},
		{"single shard", ShardDescriptor{Index: 1, Total: 1}, false},
		{"index zero", ShardDescriptor{Index: 0, Total: 3}, true},
		{"index above total", ShardDescriptor{Index: 4, Total: 3}, true},
		{"negative index", ShardDescriptor{Index: -1, Total: 3}, true},
		{"zero total", ShardDescriptor{Index: 1, Total: 0}, true},
		{"negative total", ShardDescriptor{Index: 1, Total: -2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestShardStatusCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from ShardStatus
		to   ShardStatus
		want bool
	}{
		{"pending to running", StatusPending, StatusRunning, true},
		{"pending to completed", StatusPending, StatusCompleted, false},
		{"running to completed", StatusRunning, StatusCompleted, true},
		{"running to failed", StatusRunning, StatusFailed, true},
		{"running to running", StatusRunning, StatusRunning, false},
		{"failed to running", StatusFailed, StatusRunning, true},
		{"failed to completed", StatusFailed, StatusCompleted, false},
		{"completed is terminal", StatusCompleted, StatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestShardStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() || StatusRunning.Terminal() {
		t.Error("pending and running must not be terminal")
	}
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Error("completed and failed must be terminal")
	}
}
