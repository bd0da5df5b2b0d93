package provider

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/tempmail/internal/model"
)

// collection decodes both the hydra envelope ({"hydra:member": [...]})
// and a bare JSON array, which bearer providers return depending on the
// Accept header.
type collection[T any] struct {
	Members []T
}

func (c *collection[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &c.Members)
	}
	var env struct {
		Hydra   []T `json:"hydra:member"`
		Members []T `json:"member"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return err
	}
	c.Members = env.Hydra
	if c.Members == nil {
		c.Members = env.Members
	}
	return nil
}

// bearerDomain is one entry of GET /domains.
type bearerDomain struct {
	ID       string `json:"id"`
	Domain   string `json:"domain"`
	IsActive *bool  `json:"isActive"`
}

// bearerAccountRequest is the body of POST /accounts and POST /token.
type bearerAccountRequest struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

// bearerAccount is the response from POST /accounts.
type bearerAccount struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// bearerToken is the response from POST /token.
type bearerToken struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// bearerMessage is a list entry or detail from /messages.
type bearerMessage struct {
	ID             string             `json:"id"`
	From           model.Sender       `json:"from"`
	Subject        string             `json:"subject"`
	Intro          string             `json:"intro"`
	Seen           bool               `json:"seen"`
	CreatedAt      time.Time          `json:"createdAt"`
	HasAttachments bool               `json:"hasAttachments"`
	Text           string             `json:"text"`
	HTML           htmlParts          `json:"html"`
	Attachments    []bearerAttachment `json:"attachments"`
}

// bearerAttachment is an attachment entry of a bearer message.
type bearerAttachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"downloadUrl"`
}

// htmlParts accepts the html field as a string or an array of strings.
type htmlParts []string

func (h *htmlParts) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one != "" {
			*h = htmlParts{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*h = many
	return nil
}

// sessionAddress is the response from get_email_address / set_email_user.
type sessionAddress struct {
	EmailAddr      string `json:"email_addr"`
	EmailTimestamp int64  `json:"email_timestamp"`
	Alias          string `json:"alias"`
	SIDToken       string `json:"sid_token"`
}

// sessionList is the response from get_email_list.
type sessionList struct {
	List     []sessionMessage `json:"list"`
	Count    flexString       `json:"count"`
	SIDToken string           `json:"sid_token"`
}

// sessionMessage is one message from get_email_list or fetch_email.
type sessionMessage struct {
	MailID        flexString `json:"mail_id"`
	MailFrom      string     `json:"mail_from"`
	MailSubject   string     `json:"mail_subject"`
	MailExcerpt   string     `json:"mail_excerpt"`
	MailBody      string     `json:"mail_body"`
	MailTimestamp flexString `json:"mail_timestamp"`
	MailRead      flexString `json:"mail_read"`
	ContentType   string     `json:"content_type"`
	Attachments   []struct {
		FileName    string     `json:"f"`
		ContentType string     `json:"t"`
		PartID      flexString `json:"p"`
	} `json:"att_info"`
}

// sessionDelete is the response from del_email.
type sessionDelete struct {
	DeletedIDs []flexString `json:"deleted_ids"`
}

// flexString decodes JSON strings and numbers alike; session providers
// are inconsistent about quoting ids and timestamps.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// Unix parses the value as seconds since the epoch.
func (f flexString) Unix() time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(string(f)), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}

// Bool interprets "1"/"true" as true.
func (f flexString) Bool() bool {
	v := strings.TrimSpace(string(f))
	return v == "1" || strings.EqualFold(v, "true")
}
