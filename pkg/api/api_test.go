package api

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActive(t *testing.T) {
	tests := []struct {
		raw     string
		want    bool
		wantErr bool
	}{
		{`true`, true, false},
		{`false`, false, false},
		{`{"active":true}`, true, false},
		{`{"active":false}`, false, false},
		{`{}`, false, true},
		{`{"foo":1}`, false, true},
		{`{"active":null}`, false, true},
		{`null`, false, true},
		{`"yes"`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseActive(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidActive)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResponse_OmitsUnusedFields(t *testing.T) {
	data, err := json.Marshal(Response{Success: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(data))

	data, err = json.Marshal(Failure(errors.New("store closed")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"store closed"}`, string(data))
}
