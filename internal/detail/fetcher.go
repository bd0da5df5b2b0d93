// Package detail fetches single messages and repairs their content for
// display outside the provider's web client.
package detail

import (
	"context"

	"go.uber.org/zap"

	"github.com/nhle/tempmail/internal/htmlfix"
	"github.com/nhle/tempmail/internal/logging"
	"github.com/nhle/tempmail/internal/model"
)

// Source fetches a message and describes the provider that owns it.
// *provider.Registry satisfies it.
type Source interface {
	GetMessage(ctx context.Context, mb model.Mailbox, id string) (*model.EmailDetail, error)
	Descriptor(providerID string) (model.ProviderDescriptor, error)
}

// Fetcher returns repaired message details.
type Fetcher struct {
	source Source
	logger *zap.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(source Source, logger *zap.Logger) *Fetcher {
	return &Fetcher{source: source, logger: logging.OrNop(logger)}
}

// Fetch returns the message, or false when it no longer exists, the
// credential was rejected, or the provider could not be reached. A false
// result is final for this call, not a loading state.
func (f *Fetcher) Fetch(ctx context.Context, mb model.Mailbox, id string) (*model.EmailDetail, bool) {
	d, err := f.source.GetMessage(ctx, mb, id)
	if err != nil || d == nil {
		f.logger.Debug("message unavailable",
			zap.String("address", mb.Address),
			zap.String("id", id),
			zap.Error(err),
		)
		return nil, false
	}

	desc, err := f.source.Descriptor(mb.ProviderID)
	if err != nil {
		f.logger.Debug("no descriptor for provider", zap.String("provider", mb.ProviderID), zap.Error(err))
	}
	return f.repair(d, desc), true
}

// repair decodes preview text, unwraps provider image redirects and
// upgrades insecure resource URLs. A part that fails to parse is kept.
func (f *Fetcher) repair(d *model.EmailDetail, desc model.ProviderDescriptor) *model.EmailDetail {
	out := *d
	out.Subject = htmlfix.DecodeEntities(d.Subject)
	out.Intro = htmlfix.DecodeEntities(d.Intro)

	opts := htmlfix.Options{
		ImageProxyPath:  desc.ImageProxyPath,
		ImageProxyParam: desc.ImageProxyParam,
	}
	out.HTML = make([]string, 0, len(d.HTML))
	for _, part := range d.HTML {
		fixed, err := htmlfix.Repair(part, opts)
		if err != nil {
			f.logger.Debug("html repair failed", zap.String("id", d.ID), zap.Error(err))
			fixed = part
		}
		out.HTML = append(out.HTML, fixed)
	}

	out.Attachments = make([]model.AttachmentRef, len(d.Attachments))
	for i, a := range d.Attachments {
		a.DownloadURL = htmlfix.UpgradeURL(a.DownloadURL)
		out.Attachments[i] = a
	}
	return &out
}

// BlockImages replaces remote images in body with placeholders, returning
// body unchanged if it cannot be parsed.
func BlockImages(body string) string {
	blocked, err := htmlfix.BlockImages(body)
	if err != nil {
		return body
	}
	return blocked
}
