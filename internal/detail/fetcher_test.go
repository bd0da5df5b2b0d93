package detail

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tempmail/internal/model"
)

type fakeSource struct {
	detail *model.EmailDetail
	err    error
	desc   model.ProviderDescriptor
}

func (f *fakeSource) GetMessage(context.Context, model.Mailbox, string) (*model.EmailDetail, error) {
	return f.detail, f.err
}

func (f *fakeSource) Descriptor(string) (model.ProviderDescriptor, error) {
	return f.desc, nil
}

func TestFetch_Repairs(t *testing.T) {
	src := &fakeSource{
		desc: model.ProviderDescriptor{ID: "guerrilla", ImageProxyPath: "res.php", ImageProxyParam: "q"},
		detail: &model.EmailDetail{
			EmailSummary: model.EmailSummary{ID: "7", Subject: "Tom &amp; Jerry", Intro: "it&#39;s here"},
			HTML: []string{
				`<img src="res.php?r=1&amp;q=https%3A%2F%2Fcdn.example%2Fa.png"><img src="http://cdn.example/b.png">`,
			},
			Attachments: []model.AttachmentRef{{ID: "1", DownloadURL: "http://files.example/1"}},
		},
	}

	d, ok := NewFetcher(src, nil).Fetch(context.Background(), model.Mailbox{ProviderID: "guerrilla"}, "7")
	require.True(t, ok)
	assert.Equal(t, "Tom & Jerry", d.Subject)
	assert.Equal(t, "it's here", d.Intro)
	require.Len(t, d.HTML, 1)
	assert.Contains(t, d.HTML[0], `src="https://cdn.example/a.png"`)
	assert.Contains(t, d.HTML[0], `src="https://cdn.example/b.png"`)
	assert.Equal(t, "https://files.example/1", d.Attachments[0].DownloadURL)

	// source value is not mutated
	assert.Equal(t, "http://files.example/1", src.detail.Attachments[0].DownloadURL)
}

func TestFetch_Unavailable(t *testing.T) {
	tests := []struct {
		name string
		src  *fakeSource
	}{
		{name: "error", src: &fakeSource{err: errors.New("malformed response")}},
		{name: "nil detail", src: &fakeSource{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := NewFetcher(tt.src, nil).Fetch(context.Background(), model.Mailbox{}, "1")
			assert.False(t, ok)
			assert.Nil(t, d)
		})
	}
}

func TestBlockImages(t *testing.T) {
	assert.NotContains(t, BlockImages(`<img src="https://x.example/a.png">`), "<img")
	assert.Equal(t, "plain text", BlockImages("plain text"))
}
