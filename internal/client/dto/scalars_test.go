package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullString_Unmarshal(t *testing.T) {
	tests := []struct {
		input string
		want  NullString
	}{
		{input: `"abc"`, want: String("abc")},
		{input: `""`, want: String("")},
		{input: `1179`, want: String("1179")},
		{input: `1179.50`, want: String("1179.50")},
		{input: `true`, want: String("true")},
		{input: `null`, want: NullString{}},
		{input: `{"a":1}`, want: NullString{}},
		{input: `[1]`, want: NullString{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var got NullString
			require.NoError(t, json.Unmarshal([]byte(tt.input), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNullInt_Unmarshal(t *testing.T) {
	tests := []struct {
		input string
		want  NullInt
	}{
		{input: `42`, want: Int(42)},
		{input: `"42"`, want: Int(42)},
		{input: `42.0`, want: Int(42)},
		{input: `" 7 "`, want: Int(7)},
		{input: `"forty"`, want: NullInt{}},
		{input: `null`, want: NullInt{}},
		{input: `true`, want: NullInt{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var got NullInt
			require.NoError(t, json.Unmarshal([]byte(tt.input), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNullFloat_Unmarshal(t *testing.T) {
	tests := []struct {
		input string
		want  NullFloat
	}{
		{input: `0.92`, want: Float(0.92)},
		{input: `"0.92"`, want: Float(0.92)},
		{input: `1`, want: Float(1)},
		{input: `"NaN"`, want: NullFloat{}},
		{input: `"high"`, want: NullFloat{}},
		{input: `null`, want: NullFloat{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var got NullFloat
			require.NoError(t, json.Unmarshal([]byte(tt.input), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNullBool_Unmarshal(t *testing.T) {
	tests := []struct {
		input string
		want  NullBool
	}{
		{input: `true`, want: Bool(true)},
		{input: `false`, want: Bool(false)},
		{input: `"true"`, want: Bool(true)},
		{input: `1`, want: Bool(true)},
		{input: `0`, want: Bool(false)},
		{input: `2`, want: NullBool{}},
		{input: `"yes please"`, want: NullBool{}},
		{input: `null`, want: NullBool{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var got NullBool
			require.NoError(t, json.Unmarshal([]byte(tt.input), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLooseCollections(t *testing.T) {
	var payload struct {
		Scores   FloatMap   `json:"scores"`
		Info     StringMap  `json:"info"`
		Services BoolMap    `json:"services"`
		Issues   StringList `json:"issues"`
		Missing  FloatMap   `json:"missing"`
		Nulled   FloatMap   `json:"nulled"`
	}

	err := json.Unmarshal([]byte(`{
		"scores": {"ifsc_code": 0.92, "amount": "0.8", "bank_name": "n/a"},
		"info": {"amount": 1179, "bank": "HDFC", "meta": {"x": 1}, "gone": null},
		"services": {"db": true, "ocr": "false", "queue": "maybe"},
		"issues": ["blurred", null, 3],
		"nulled": null
	}`), &payload)
	require.NoError(t, err)

	assert.Equal(t, FloatMap{"ifsc_code": 0.92, "amount": 0.8}, payload.Scores)
	assert.Equal(t, StringMap{"amount": "1179", "bank": "HDFC"}, payload.Info)
	assert.Equal(t, BoolMap{"db": true, "ocr": false}, payload.Services)
	assert.Equal(t, StringList{"blurred", "3"}, payload.Issues)
	assert.Nil(t, payload.Missing)
	assert.Nil(t, payload.Nulled)
}

func TestOmitZero(t *testing.T) {
	data, err := json.Marshal(ExtractedData{Amount: String("1200")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"1200"}`, string(data))

	data, err = json.Marshal(ChequeData{ConfidenceScores: FloatMap{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"confidence_scores":{}}`, string(data))
}
