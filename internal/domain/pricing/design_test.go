package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViewHasContent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{name: "empty", raw: "", want: false},
		{name: "null", raw: "null", want: false},
		{name: "no objects key", raw: `{"background":"#fff"}`, want: false},
		{name: "empty objects", raw: `{"version":"5.3.0","objects":[]}`, want: false},
		{name: "placed object", raw: `{"version":"5.3.0","objects":[{"type":"textbox","text":"hi"}]}`, want: true},
		{name: "string encoded", raw: `"{\"objects\":[{\"type\":\"image\"}]}"`, want: true},
		{name: "string encoded empty", raw: `"{\"objects\":[]}"`, want: false},
		{name: "objects not array", raw: `{"objects":{"a":1}}`, want: false},
		{name: "malformed", raw: `{"objects":[{"type":`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ViewHasContent([]byte(tt.raw)))
		})
	}
}
