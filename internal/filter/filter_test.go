package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chatwire/wabridge/internal/model"
)

func TestValidSessionCode(t *testing.T) {
	cases := []struct {
		name string
		code string
		want bool
	}{
		{"complete code", "2@AAAA,BBBB,CCCC,DDDD,EEEE", true},
		{"undefined field", "2@AAAA,undefined,CCCC", false},
		{"wrong prefix", "1@AAAA,BBBB,CCCC,DDDD,EEEE", false},
		{"too few fields", "2@AAAA,BBBB,CCCC,DDDD", false},
		{"too many fields", "2@AAAA,BBBB,CCCC,DDDD,EEEE,FFFF", false},
		{"empty", "", false},
		{"no prefix at all", "AAAA,BBBB,CCCC,DDDD,EEEE", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidSessionCode(tc.code))
		})
	}
}

func TestIsBroadcast(t *testing.T) {
	assert.True(t, IsBroadcast(&model.Message{To: BroadcastJID}))
	assert.True(t, IsBroadcast(&model.Message{From: BroadcastJID}))
	assert.False(t, IsBroadcast(&model.Message{From: "a@c.us", To: "b@c.us"}))
	assert.False(t, IsBroadcast(nil))
}
