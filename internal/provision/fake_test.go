package provision

import (
	"context"
	"fmt"
	"sync"

	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/provider"
)

// fakeBackend is a scripted provider.Backend.
type fakeBackend struct {
	desc model.ProviderDescriptor

	domains    []string
	domainsErr error
	createErrs []error // consumed one per CreateAccount call
	authErr    error
	cred       *model.Credential

	mu          sync.Mutex
	createCalls []string
	authCalls   int
}

func newFakeBackend(id string, scheme model.AuthScheme) *fakeBackend {
	return &fakeBackend{
		desc: model.ProviderDescriptor{
			ID:              id,
			Name:            id,
			AuthScheme:      scheme,
			FallbackDomains: []string{id + "-fallback.example"},
		},
		domains: []string{id + ".example"},
		cred:    &model.Credential{Token: "tok-" + id, SessionID: "sid-" + id},
	}
}

func (f *fakeBackend) Descriptor() model.ProviderDescriptor { return f.desc }

func (f *fakeBackend) Domains(context.Context) ([]string, error) {
	return f.domains, f.domainsErr
}

func (f *fakeBackend) CreateAccount(_ context.Context, localPart, domain, _ string) (*provider.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, localPart+"@"+domain)
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &provider.Account{
		ID:      fmt.Sprintf("%s-acct-%d", f.desc.ID, len(f.createCalls)),
		Address: localPart + "@" + domain,
	}, nil
}

func (f *fakeBackend) Authenticate(context.Context, provider.Account, string) (*model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls++
	if f.authErr != nil {
		return nil, f.authErr
	}
	return f.cred, nil
}

func (f *fakeBackend) ListMessages(context.Context, model.Mailbox) ([]model.EmailSummary, error) {
	return nil, nil
}

func (f *fakeBackend) GetMessage(context.Context, model.Mailbox, string) (*model.EmailDetail, error) {
	return nil, nil
}

func (f *fakeBackend) DeleteMessage(context.Context, model.Mailbox, string) error {
	return nil
}

// seqGenerator returns predictable names.
type seqGenerator struct {
	n int
}

func (g *seqGenerator) LocalPart() (string, error) {
	g.n++
	return fmt.Sprintf("user%d", g.n), nil
}

func (g *seqGenerator) Password() (string, error) {
	return "secretpassword00", nil
}
