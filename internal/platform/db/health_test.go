package db

import (
	"encoding/json"
	"testing"
)

func TestPoolStats_JSONShape(t *testing.T) {
	stats := &PoolStats{
		TotalConns:    10,
		IdleConns:     5,
		AcquiredConns: 5,
		MaxConns:      20,
		AcquireCount:  100,
		Healthy:       true,
	}

	data, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, key := range []string{"total_conns", "idle_conns", "acquired_conns", "max_conns", "acquire_count", "healthy"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("expected key %q in health payload", key)
		}
	}
	if decoded["total_conns"].(float64) != 10 {
		t.Errorf("expected total_conns 10, got %v", decoded["total_conns"])
	}
	if decoded["healthy"] != true {
		t.Error("expected healthy true")
	}
}

func TestPoolStats_UnhealthyWhenNoConns(t *testing.T) {
	stats := &PoolStats{MaxConns: 20}
	if stats.Healthy {
		t.Error("expected Healthy to be false when TotalConns is 0")
	}
}
