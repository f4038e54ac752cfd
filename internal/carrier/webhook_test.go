package carrier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhook(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Update
	}{
		{
			name: "top level",
			body: `{"tracking_code":"ES123","status":"Livré"}`,
			want: Update{TrackingCode: "ES123", Status: "Livré"},
		},
		{
			name: "nested data array",
			body: `{"event":"update","data":[{"tracking":"ES124","status":"Retour Client"},{"tracking":"other","status":"x"}]}`,
			want: Update{TrackingCode: "ES124", Status: "Retour Client"},
		},
		{
			name: "nested data object",
			body: `{"data":{"tracking_code":"ES125","status":"En transit"}}`,
			want: Update{TrackingCode: "ES125", Status: "En transit"},
		},
		{
			name: "alternate names",
			body: `{"code":"ES126","statut":"Ramassé"}`,
			want: Update{TrackingCode: "ES126", Status: "Ramassé"},
		},
		{
			name: "numeric tracking",
			body: `{"tracking":98765,"status":" delivered "}`,
			want: Update{TrackingCode: "98765", Status: "delivered"},
		},
		{
			name: "top level wins over data",
			body: `{"tracking_code":"ES127","status":"Livré","data":[{"status":"En transit"}]}`,
			want: Update{TrackingCode: "ES127", Status: "Livré"},
		},
		{
			name: "envelope status skipped",
			body: `{"status":"success","data":[{"tracking":"ES128","status":"Retour Client"}]}`,
			want: Update{TrackingCode: "ES128", Status: "Retour Client"},
		},
		{
			name: "numeric envelope status skipped",
			body: `{"status":200,"data":{"tracking_code":"ES129","statut":"Livré"}}`,
			want: Update{TrackingCode: "ES129", Status: "Livré"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWebhook([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseWebhook_Malformed(t *testing.T) {
	for _, body := range []string{
		``,
		`[]`,
		`{"status":"Livré"}`,
		`{"tracking_code":"ES1"}`,
		`{"tracking_code":"ES1","status":""}`,
		`{"tracking_code":"ES1","status":"ok"}`,
		`{"tracking_code":"ES1","status":`,
		`not json`,
	} {
		_, err := ParseWebhook([]byte(body))
		assert.ErrorIs(t, err, ErrMalformedWebhook, body)
	}
}

func TestVerifyToken(t *testing.T) {
	assert.True(t, VerifyToken("", "anything"))
	assert.True(t, VerifyToken("s3cret", "s3cret"))
	assert.False(t, VerifyToken("s3cret", "wrong"))
	assert.False(t, VerifyToken("s3cret", ""))
}
