package clients

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bengobox/oauth-provider/internal/audit"
	"github.com/bengobox/oauth-provider/internal/clock"
	"github.com/bengobox/oauth-provider/internal/metrics"
	"github.com/bengobox/oauth-provider/internal/oauth"
)

var redirectURIPattern = regexp.MustCompile(`^(https|http)://.+$`)

const (
	msgBlank   = "can't be blank"
	msgTaken   = "has already been taken"
	msgInvalid = "is invalid"
)

// Service is the client registry.
type Service struct {
	store   oauth.Store
	clock   clock.Clock
	auditor *audit.Logger
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// Dependencies aggregates constructor inputs.
type Dependencies struct {
	Store   oauth.Store
	Clock   clock.Clock
	Auditor *audit.Logger
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// New initialises the client registry.
func New(deps Dependencies) *Service {
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Service{
		store:   deps.Store,
		clock:   deps.Clock,
		auditor: deps.Auditor,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
}

// Input carries the editable client attributes.
type Input struct {
	Name        string `json:"name"`
	RedirectURI string `json:"redirect_uri"`
}

// Create validates in and registers a client with fresh credentials.
func (s *Service) Create(ctx context.Context, in Input) (*oauth.Client, error) {
	if err := s.validate(ctx, in, ""); err != nil {
		return nil, err
	}
	clientID, err := oauth.GenerateSecret()
	if err != nil {
		return nil, err
	}
	clientSecret, err := oauth.GenerateSecret()
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	c := &oauth.Client{
		ID:           uuid.NewString(),
		Name:         in.Name,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  in.RedirectURI,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Clients().Create(ctx, c); err != nil {
		if errors.Is(err, oauth.ErrConflict) {
			return nil, nameTaken()
		}
		return nil, fmt.Errorf("create client: %w", err)
	}

	s.auditor.Record(ctx, audit.Entry{
		Action:     "oauth.client.created",
		Resource:   "oauth_client",
		ResourceID: c.ID,
		Context:    map[string]any{"name": c.Name, "redirect_uri": c.RedirectURI},
	})
	s.metrics.ClientChanged("create")
	return c, nil
}

// Update changes name and redirect URI. Credentials never change.
func (s *Service) Update(ctx context.Context, id string, in Input) (*oauth.Client, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, in, id); err != nil {
		return nil, err
	}
	c.Name = in.Name
	c.RedirectURI = in.RedirectURI
	c.UpdatedAt = s.clock.Now()
	if err := s.store.Clients().Update(ctx, c); err != nil {
		if errors.Is(err, oauth.ErrConflict) {
			return nil, nameTaken()
		}
		return nil, fmt.Errorf("update client: %w", err)
	}

	s.auditor.Record(ctx, audit.Entry{
		Action:     "oauth.client.updated",
		Resource:   "oauth_client",
		ResourceID: c.ID,
		Context:    map[string]any{"name": c.Name, "redirect_uri": c.RedirectURI},
	})
	s.metrics.ClientChanged("update")
	return c, nil
}

// Destroy removes the client together with its tokens and authorizations
// in one transaction. Unknown ids are ignored.
func (s *Service) Destroy(ctx context.Context, id string) error {
	var tokens, authorizations int
	err := s.store.InTx(ctx, func(ctx context.Context, tx oauth.Store) error {
		if _, err := tx.Clients().FindByID(ctx, id); err != nil {
			return err
		}
		var err error
		if tokens, err = tx.Tokens().DeleteByClient(ctx, id); err != nil {
			return err
		}
		if authorizations, err = tx.Authorizations().DeleteByClient(ctx, id); err != nil {
			return err
		}
		return tx.Clients().Delete(ctx, id)
	})
	if errors.Is(err, oauth.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("destroy client: %w", err)
	}

	s.auditor.Record(ctx, audit.Entry{
		Action:     "oauth.client.destroyed",
		Resource:   "oauth_client",
		ResourceID: id,
		Context: map[string]any{
			"tokens_destroyed":         tokens,
			"authorizations_destroyed": authorizations,
		},
	})
	s.metrics.ClientChanged("destroy")
	return nil
}

// Get returns the client with record id.
func (s *Service) Get(ctx context.Context, id string) (*oauth.Client, error) {
	return s.store.Clients().FindByID(ctx, id)
}

// GetByClientID returns the client holding the public client_id.
func (s *Service) GetByClientID(ctx context.Context, clientID string) (*oauth.Client, error) {
	return s.store.Clients().FindByClientID(ctx, clientID)
}

// GetByName returns the client registered under name (case-sensitive).
func (s *Service) GetByName(ctx context.Context, name string) (*oauth.Client, error) {
	return s.store.Clients().FindByName(ctx, name)
}

// GetByRedirectURI returns the first client registered with redirectURI.
func (s *Service) GetByRedirectURI(ctx context.Context, redirectURI string) (*oauth.Client, error) {
	return s.store.Clients().FindByRedirectURI(ctx, redirectURI)
}

// List returns every registered client in creation order.
func (s *Service) List(ctx context.Context) ([]*oauth.Client, error) {
	return s.store.Clients().List(ctx)
}

func (s *Service) validate(ctx context.Context, in Input, excludeID string) error {
	verr := &oauth.ValidationError{}

	if isBlank(in.Name) {
		verr.Add("name", msgBlank)
	} else {
		existing, err := s.store.Clients().FindByName(ctx, in.Name)
		switch {
		case err == nil && existing.ID != excludeID:
			verr.Add("name", msgTaken)
		case err != nil && !errors.Is(err, oauth.ErrNotFound):
			return fmt.Errorf("check client name: %w", err)
		}
	}

	if isBlank(in.RedirectURI) {
		verr.Add("redirect_uri", msgBlank)
	} else if !redirectURIPattern.MatchString(in.RedirectURI) {
		verr.Add("redirect_uri", msgInvalid)
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

func nameTaken() error {
	verr := &oauth.ValidationError{}
	verr.Add("name", msgTaken)
	return verr
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
