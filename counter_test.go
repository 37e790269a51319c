package securearc

import (
	"bytes"
	"testing"
)

func headerWithSlots(t *testing.T, maxAttempts uint8) (*securityHeader, []*keySlot) {
	t.Helper()
	h := testHeader(t)
	h.MaxAttempts = maxAttempts
	h.CurrentAttempts = 0
	if err := h.sign(); err != nil {
		t.Fatalf("sign: %v", err)
	}

	masterKey, _ := randomBytes(MasterKeySize)
	kek, _ := randomBytes(MasterKeySize)
	engine, err := newAEADEngine(h.AEAD, kek)
	if err != nil {
		t.Fatalf("newAEADEngine: %v", err)
	}
	slot, err := sealSlot(engine, 0, true, masterKey)
	if err != nil {
		t.Fatalf("sealSlot: %v", err)
	}
	return h, []*keySlot{slot}
}

func TestRecordFailureIncrementsCounter(t *testing.T) {
	h, slots := headerWithSlots(t, 5)
	destroyed, err := recordFailure(h, slots)
	if err != nil {
		t.Fatalf("recordFailure: %v", err)
	}
	if destroyed {
		t.Fatal("should not be destroyed after one failure out of 5")
	}
	if h.CurrentAttempts != 1 {
		t.Errorf("CurrentAttempts = %d, want 1", h.CurrentAttempts)
	}
	if err := h.verify(); err != nil {
		t.Errorf("header must re-sign cleanly after a failure: %v", err)
	}
}

func TestRecordFailureDestroysAtMax(t *testing.T) {
	h, slots := headerWithSlots(t, 3)
	origCiphertexts := make([][]byte, len(slots))
	for i, s := range slots {
		origCiphertexts[i] = append([]byte(nil), s.Ciphertext...)
	}

	for i := 0; i < 2; i++ {
		destroyed, err := recordFailure(h, slots)
		if err != nil {
			t.Fatalf("recordFailure: %v", err)
		}
		if destroyed {
			t.Fatalf("destroyed too early at attempt %d", i+1)
		}
	}

	destroyed, err := recordFailure(h, slots)
	if err != nil {
		t.Fatalf("recordFailure: %v", err)
	}
	if !destroyed {
		t.Fatal("expected destruction on the max-th failure")
	}
	if !h.Destroyed {
		t.Error("header.Destroyed must be true")
	}
	if h.CurrentAttempts != h.MaxAttempts {
		t.Errorf("CurrentAttempts = %d, want %d", h.CurrentAttempts, h.MaxAttempts)
	}
	for i, s := range slots {
		if bytes.Equal(s.Ciphertext, origCiphertexts[i]) {
			t.Errorf("slot %d ciphertext unchanged after destruction", i)
		}
		if s.Active {
			t.Errorf("slot %d still marked active after destruction", i)
		}
	}
	if err := h.verify(); err != nil {
		t.Errorf("destroyed header must still verify: %v", err)
	}
}

func TestRecordFailureOnAlreadyDestroyedIsNoop(t *testing.T) {
	h, slots := headerWithSlots(t, 3)
	h.Destroyed = true
	if err := h.sign(); err != nil {
		t.Fatalf("sign: %v", err)
	}

	destroyed, err := recordFailure(h, slots)
	if err != nil {
		t.Fatalf("recordFailure: %v", err)
	}
	if !destroyed {
		t.Error("recordFailure on an already-destroyed header must report destroyed")
	}
}

func TestRecordSuccessResetsCounter(t *testing.T) {
	h, _ := headerWithSlots(t, 5)
	h.CurrentAttempts = 3
	if err := recordSuccess(h); err != nil {
		t.Fatalf("recordSuccess: %v", err)
	}
	if h.CurrentAttempts != 0 {
		t.Errorf("CurrentAttempts = %d, want 0", h.CurrentAttempts)
	}
	if err := h.verify(); err != nil {
		t.Errorf("header must re-sign cleanly after success: %v", err)
	}
}

func TestRemainingAttempts(t *testing.T) {
	tests := []struct {
		name    string
		current uint8
		max     uint8
		destroy bool
		want    uint8
	}{
		{"fresh archive", 0, 5, false, 5},
		{"two failures", 2, 5, false, 3},
		{"at max", 5, 5, false, 0},
		{"destroyed", 3, 5, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &securityHeader{CurrentAttempts: tt.current, MaxAttempts: tt.max, Destroyed: tt.destroy}
			if got := remainingAttempts(h); got != tt.want {
				t.Errorf("remainingAttempts() = %d, want %d", got, tt.want)
			}
		})
	}
}
