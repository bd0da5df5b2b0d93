package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/transport"
)

// sessionServer mimics the action endpoint of a session provider.
type sessionServer struct {
	mu      sync.Mutex
	deleted []string
	// assign overrides the local part granted by set_email_user.
	assign string
}

func (s *sessionServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sid := q.Get("sid_token")
	if q.Get("f") != actionGetAddress && sid != "sid-1" {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	switch q.Get("f") {
	case actionGetAddress:
		_, _ = w.Write([]byte(`{"email_addr":"random1@sharklasers.com","email_timestamp":1767225600,"alias":"x1","sid_token":"sid-1"}`))
	case actionSetUser:
		user := q.Get("email_user")
		if s.assign != "" {
			user = s.assign
		}
		_, _ = w.Write([]byte(`{"email_addr":"` + user + `@guerrillamailblock.com","alias":"x1","sid_token":"sid-1"}`))
	case actionList:
		_, _ = w.Write([]byte(`{"list":[
			{"mail_id":"101","mail_from":"Shop Deals <deals@shop.com>","mail_subject":"50% OFF this weekend","mail_excerpt":"Fish &amp; Chips","mail_timestamp":"1767225600","mail_read":0},
			{"mail_id":1,"mail_from":"no-reply@guerrillamail.com","mail_subject":"Welcome","mail_excerpt":"hi","mail_timestamp":1767225000,"mail_read":"1"}
		],"count":"2","sid_token":"sid-1"}`))
	case actionFetch:
		if q.Get("email_id") != "101" {
			_, _ = w.Write([]byte(`false`))
			return
		}
		_, _ = w.Write([]byte(`{"mail_id":"101","mail_from":"deals@shop.com","mail_subject":"50% OFF","mail_body":"<img src=\"res.php?q=https%3A%2F%2Fcdn.example%2Fa.png\">","mail_timestamp":"1767225600","content_type":"text/html","att_info":[{"f":"a.pdf","t":"application/pdf","p":"2"}]}`))
	case actionDelete:
		s.mu.Lock()
		s.deleted = append(s.deleted, q["email_ids[]"]...)
		s.mu.Unlock()
		_, _ = w.Write([]byte(`{"deleted_ids":["101"]}`))
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newTestSession(t *testing.T) (*Session, *sessionServer) {
	t.Helper()
	ss := &sessionServer{}
	srv := httptest.NewServer(ss)
	t.Cleanup(srv.Close)

	desc := model.DefaultProviders()[1]
	desc.BaseURL = srv.URL
	return NewSession(desc, transport.New(nil)), ss
}

func TestSession_Domains(t *testing.T) {
	s, _ := newTestSession(t)
	domains, err := s.Domains(context.Background())
	require.NoError(t, err)
	assert.Equal(t, s.desc.FallbackDomains, domains)
}

func TestSession_CreateAndAuthenticate(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := context.Background()

	acct, err := s.CreateAccount(ctx, "alice", "sharklasers.com", "")
	require.NoError(t, err)
	assert.Equal(t, "alice@sharklasers.com", acct.Address)
	assert.Equal(t, "sid-1", acct.SessionID)

	cred, err := s.Authenticate(ctx, *acct, "")
	require.NoError(t, err)
	assert.Equal(t, "sid-1", cred.SessionID)
	assert.True(t, cred.Usable(model.AuthSessionToken))
}

func TestSession_CreateNameTaken(t *testing.T) {
	s, ss := newTestSession(t)
	ss.assign = "someoneelse"

	_, err := s.CreateAccount(context.Background(), "alice", "sharklasers.com", "")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestSession_ListMessages(t *testing.T) {
	s, _ := newTestSession(t)
	mb := model.Mailbox{Credential: &model.Credential{SessionID: "sid-1"}}

	list, err := s.ListMessages(context.Background(), mb)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "101", list[0].ID)
	assert.Equal(t, "Shop Deals", list[0].From.Name)
	assert.Equal(t, "deals@shop.com", list[0].From.Address)
	assert.Equal(t, "Fish & Chips", list[0].Intro)
	assert.Equal(t, model.CategoryNewsletter, list[0].Category)
	assert.Equal(t, int64(1767225600), list[0].CreatedAt.Unix())
	assert.False(t, list[0].Seen)

	assert.Equal(t, "1", list[1].ID)
	assert.True(t, list[1].Seen)
}

func TestSession_GetMessage(t *testing.T) {
	s, _ := newTestSession(t)
	mb := model.Mailbox{Credential: &model.Credential{SessionID: "sid-1"}}

	d, err := s.GetMessage(context.Background(), mb, "101")
	require.NoError(t, err)
	require.Len(t, d.HTML, 1)
	assert.Contains(t, d.HTML[0], "res.php")
	assert.True(t, d.HasAttachments)
	assert.Equal(t, "a.pdf", d.Attachments[0].Filename)

	_, err = s.GetMessage(context.Background(), mb, "999")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestSession_StaleSession(t *testing.T) {
	s, _ := newTestSession(t)
	mb := model.Mailbox{Credential: &model.Credential{SessionID: "old"}}

	_, err := s.ListMessages(context.Background(), mb)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestSession_DeleteMessage(t *testing.T) {
	s, ss := newTestSession(t)
	mb := model.Mailbox{Credential: &model.Credential{SessionID: "sid-1"}}

	require.NoError(t, s.DeleteMessage(context.Background(), mb, "101"))
	assert.Equal(t, []string{"101"}, ss.deleted)
}
