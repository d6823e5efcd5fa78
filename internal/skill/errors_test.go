package skill

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("dial tcp: refused")

	tests := []struct {
		name     string
		err      error
		wantKind Kind
		wantCode string
	}{
		{name: "validation", err: ValidationErr("NO_INVOICES", "no invoices"), wantKind: KindValidation, wantCode: "NO_INVOICES"},
		{name: "configuration wrapped", err: fmt.Errorf("step: %w", ConfigurationErr("CONFIG_MISMATCH", cause, "drift")), wantKind: KindConfiguration, wantCode: "CONFIG_MISMATCH"},
		{name: "infrastructure", err: InfrastructureErr("STORE_UNAVAILABLE", cause, "load"), wantKind: KindInfrastructure, wantCode: "STORE_UNAVAILABLE"},
		{name: "cancellation", err: CancellationErr("stopped"), wantKind: KindCancellation, wantCode: "CANCELLED"},
		{name: "untyped", err: cause, wantKind: KindInfrastructure, wantCode: "FALLBACK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantKind, KindOf(tt.err))
			assert.Equal(t, tt.wantCode, CodeOf(tt.err, "FALLBACK"))
		})
	}

	assert.False(t, IsValidation(nil))
	assert.False(t, IsInfrastructure(nil))
	assert.True(t, IsInfrastructure(cause))
	assert.ErrorIs(t, InfrastructureErr("X", cause, "load"), cause)
	assert.Equal(t, "load: dial tcp: refused", InfrastructureErr("X", cause, "load").Error())
}
