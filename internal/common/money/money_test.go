package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in       string
		currency Currency
		want     int64
		wantErr  bool
	}{
		{"123.45", EUR, 12345, false},
		{"10", EUR, 1000, false},
		{"0.5", GBP, 50, false},
		{"500", JPY, 500, false},
		{"1.234", EUR, 0, true},
		{"abc", EUR, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := Parse(tt.in, tt.currency)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.AmountMinor)
		})
	}
}

func TestJSONAmountObject(t *testing.T) {
	b, err := json.Marshal(New(12345, EUR))
	require.NoError(t, err)
	assert.JSONEq(t, `{"currency":"EUR","amount":"123.45"}`, string(b))

	var m Money
	require.NoError(t, json.Unmarshal([]byte(`{"currency":"JPY","amount":"700"}`), &m))
	assert.Equal(t, New(700, JPY), m)
	assert.Equal(t, "700 JPY", m.String())
}
