package coordination

import (
	"strings"
	"testing"
	"time"
)

func TestRunMeta(t *testing.T) {
	dir := t.TempDir()
	c, err := NewAt(dir, 4, 5*time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("missing meta passes", func(t *testing.T) {
		if err := c.CheckRunMeta("smart"); err != nil {
			t.Errorf("CheckRunMeta() = %v, want nil for fresh dir", err)
		}
	})

	if err := c.WriteRunMeta("smart"); err != nil {
		t.Fatalf("WriteRunMeta() error = %v", err)
	}

	t.Run("matching parameters pass", func(t *testing.T) {
		if err := c.CheckRunMeta("smart"); err != nil {
			t.Errorf("CheckRunMeta() = %v, want nil", err)
		}
	})

	t.Run("different total is rejected", func(t *testing.T) {
		other, err := NewAt(dir, 2, 5*time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		err = other.CheckRunMeta("smart")
		if err == nil || !strings.Contains(err.Error(), "4 shards") {
			t.Errorf("CheckRunMeta() = %v, want total mismatch", err)
		}
	})

	t.Run("different strategy is rejected", func(t *testing.T) {
		if err := c.CheckRunMeta("hash"); err == nil {
			t.Error("expected strategy mismatch error")
		}
	})

	t.Run("unspecified strategy is not compared", func(t *testing.T) {
		if err := c.CheckRunMeta(""); err != nil {
			t.Errorf("CheckRunMeta(\"\") = %v, want nil", err)
		}
	})
}

func TestClaimMergeLock(t *testing.T) {
	dir := t.TempDir()
	first, err := NewAt(dir, 2, 5*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewAt(dir, 2, 5*time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	if !first.ClaimMergeLock() {
		t.Fatal("first claim should win the merge lock")
	}
	if second.ClaimMergeLock() {
		t.Error("second claim should lose the merge lock")
	}
}
