package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSender_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Sender
	}{
		{
			name: "object",
			in:   `{"address":"a@b.c","name":"Alice"}`,
			want: Sender{Address: "a@b.c", Name: "Alice"},
		},
		{
			name: "object without name",
			in:   `{"address":"bob@b.c","name":""}`,
			want: Sender{Address: "bob@b.c", Name: "bob"},
		},
		{
			name: "display string",
			in:   `"Shop Deals <deals@shop.com>"`,
			want: Sender{Address: "deals@shop.com", Name: "Shop Deals"},
		},
		{
			name: "bare address string",
			in:   `"noreply@service.com"`,
			want: Sender{Address: "noreply@service.com", Name: "noreply"},
		},
		{
			name: "unparseable string kept verbatim",
			in:   `"MAILER-DAEMON"`,
			want: Sender{Address: "MAILER-DAEMON", Name: "MAILER-DAEMON"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Sender
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSender_String(t *testing.T) {
	assert.Equal(t, "Alice <a@b.c>", Sender{Address: "a@b.c", Name: "Alice"}.String())
	assert.Equal(t, "a@b.c", Sender{Address: "a@b.c"}.String())
}

func TestEmailDetail_Body(t *testing.T) {
	assert.Equal(t, "<p>x</p>", (&EmailDetail{Text: "x", HTML: []string{"<p>x</p>"}}).Body())
	assert.Equal(t, "x", (&EmailDetail{Text: "x"}).Body())
}

func TestCredential_Usable(t *testing.T) {
	var none *Credential
	assert.False(t, none.Usable(AuthBearerToken))
	assert.False(t, (&Credential{SessionID: "s"}).Usable(AuthBearerToken))
	assert.True(t, (&Credential{Token: "t"}).Usable(AuthBearerToken))
	assert.True(t, (&Credential{SessionID: "s"}).Usable(AuthSessionToken))
}

func TestMailbox_Parts(t *testing.T) {
	mb := Mailbox{Address: "alice@karenkey.com"}
	assert.Equal(t, "alice", mb.LocalPart())
	assert.Equal(t, "karenkey.com", mb.Domain())
}
