// Package memory implements oauth.Store in process memory. It backs the test
// suites and single-node development runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bengobox/oauth-provider/internal/audit"
	"github.com/bengobox/oauth-provider/internal/oauth"
)

type clientRow struct {
	seq int64
	rec oauth.Client
}

type authorizationRow struct {
	seq int64
	rec oauth.Authorization
}

type tokenRow struct {
	seq int64
	rec oauth.Token
}

type dataset struct {
	clients        map[string]clientRow
	authorizations map[string]authorizationRow
	tokens         map[string]tokenRow
	audit          []audit.Entry
}

// undoLog records the inverse of each write made inside a transaction.
// Rolling back replays it newest first, so writes made outside the
// transaction while it ran are left alone.
type undoLog struct {
	ops []func(d *dataset)
}

func (l *undoLog) add(op func(d *dataset)) {
	if l != nil {
		l.ops = append(l.ops, op)
	}
}

func (l *undoLog) rollback(d *dataset) {
	for i := len(l.ops) - 1; i >= 0; i-- {
		l.ops[i](d)
	}
}

type state struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	seq  int64
	data *dataset
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

// Store is an in-memory oauth.Store.
type Store struct {
	st  *state
	tx  bool
	log *undoLog
}

var (
	_ oauth.Store = (*Store)(nil)
	_ audit.Sink  = (*Store)(nil)
)

// New returns an empty Store.
func New() *Store {
	return &Store{st: &state{data: &dataset{
		clients:        map[string]clientRow{},
		authorizations: map[string]authorizationRow{},
		tokens:         map[string]tokenRow{},
	}}}
}

func (s *Store) Clients() oauth.ClientRepository               { return clientRepo{s.st, s.log} }
func (s *Store) Authorizations() oauth.AuthorizationRepository { return authorizationRepo{s.st, s.log} }
func (s *Store) Tokens() oauth.TokenRepository                 { return tokenRepo{s.st, s.log} }

// InTx serialises transactions and undoes the transaction's own writes
// when fn fails. Nested calls join the running transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx oauth.Store) error) error {
	if s.tx {
		return fn(ctx, s)
	}
	s.st.txMu.Lock()
	defer s.st.txMu.Unlock()

	log := &undoLog{}
	if err := fn(ctx, &Store{st: s.st, tx: true, log: log}); err != nil {
		s.st.mu.Lock()
		log.rollback(s.st.data)
		s.st.mu.Unlock()
		return err
	}
	return nil
}

// AppendAudit implements audit.Sink.
func (s *Store) AppendAudit(_ context.Context, entry audit.Entry) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	s.st.data.audit = append(s.st.data.audit, entry)
	return nil
}

// ListAudit returns the newest entries first.
func (s *Store) ListAudit(_ context.Context, limit int) ([]audit.Entry, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	entries := s.st.data.audit
	out := make([]audit.Entry, 0, limit)
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

type clientRepo struct {
	st  *state
	log *undoLog
}

// put and remove expect st.mu to be held.
func (r clientRepo) put(id string, row clientRow) {
	prev, had := r.st.data.clients[id]
	r.log.add(func(d *dataset) {
		if had {
			d.clients[id] = prev
		} else {
			delete(d.clients, id)
		}
	})
	r.st.data.clients[id] = row
}

func (r clientRepo) remove(id string) {
	prev, had := r.st.data.clients[id]
	if !had {
		return
	}
	delete(r.st.data.clients, id)
	r.log.add(func(d *dataset) { d.clients[id] = prev })
}

func (r clientRepo) Create(_ context.Context, c *oauth.Client) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, row := range r.st.data.clients {
		if row.rec.Name == c.Name || row.rec.ClientID == c.ClientID {
			return oauth.ErrConflict
		}
	}
	r.put(c.ID, clientRow{seq: r.st.next(), rec: *c})
	return nil
}

func (r clientRepo) Update(_ context.Context, c *oauth.Client) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	row, ok := r.st.data.clients[c.ID]
	if !ok {
		return oauth.ErrNotFound
	}
	for id, other := range r.st.data.clients {
		if id != c.ID && other.rec.Name == c.Name {
			return oauth.ErrConflict
		}
	}
	row.rec.Name = c.Name
	row.rec.RedirectURI = c.RedirectURI
	row.rec.UpdatedAt = c.UpdatedAt
	r.put(c.ID, row)
	return nil
}

func (r clientRepo) FindByID(_ context.Context, id string) (*oauth.Client, error) {
	return r.findFirst(func(c *oauth.Client) bool { return c.ID == id })
}

func (r clientRepo) FindByClientID(_ context.Context, clientID string) (*oauth.Client, error) {
	return r.findFirst(func(c *oauth.Client) bool { return c.ClientID == clientID })
}

func (r clientRepo) FindByName(_ context.Context, name string) (*oauth.Client, error) {
	return r.findFirst(func(c *oauth.Client) bool { return c.Name == name })
}

func (r clientRepo) FindByRedirectURI(_ context.Context, redirectURI string) (*oauth.Client, error) {
	return r.findFirst(func(c *oauth.Client) bool { return c.RedirectURI == redirectURI })
}

func (r clientRepo) List(_ context.Context) ([]*oauth.Client, error) {
	return r.filter(func(*oauth.Client) bool { return true }), nil
}

func (r clientRepo) Delete(_ context.Context, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.remove(id)
	return nil
}

func (r clientRepo) findFirst(match func(*oauth.Client) bool) (*oauth.Client, error) {
	found := r.filter(match)
	if len(found) == 0 {
		return nil, oauth.ErrNotFound
	}
	return found[0], nil
}

func (r clientRepo) filter(match func(*oauth.Client) bool) []*oauth.Client {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	rows := make([]clientRow, 0)
	for _, row := range r.st.data.clients {
		if match(&row.rec) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]*oauth.Client, len(rows))
	for i := range rows {
		rec := rows[i].rec
		out[i] = &rec
	}
	return out
}

type authorizationRepo struct {
	st  *state
	log *undoLog
}

func (r authorizationRepo) put(id string, row authorizationRow) {
	prev, had := r.st.data.authorizations[id]
	r.log.add(func(d *dataset) {
		if had {
			d.authorizations[id] = prev
		} else {
			delete(d.authorizations, id)
		}
	})
	r.st.data.authorizations[id] = row
}

func (r authorizationRepo) remove(id string) {
	prev, had := r.st.data.authorizations[id]
	if !had {
		return
	}
	delete(r.st.data.authorizations, id)
	r.log.add(func(d *dataset) { d.authorizations[id] = prev })
}

func (r authorizationRepo) Create(_ context.Context, a *oauth.Authorization) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, row := range r.st.data.authorizations {
		if row.rec.Code == a.Code {
			return oauth.ErrConflict
		}
	}
	r.put(a.ID, authorizationRow{seq: r.st.next(), rec: *a})
	return nil
}

func (r authorizationRepo) FindByCode(_ context.Context, code string) (*oauth.Authorization, error) {
	found := r.filter(func(a *oauth.Authorization) bool { return a.Code == code })
	if len(found) == 0 {
		return nil, oauth.ErrNotFound
	}
	return found[0], nil
}

func (r authorizationRepo) ListByClient(_ context.Context, oauthClientID string) ([]*oauth.Authorization, error) {
	return r.filter(func(a *oauth.Authorization) bool { return a.OAuthClientID == oauthClientID }), nil
}

func (r authorizationRepo) Delete(_ context.Context, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.remove(id)
	return nil
}

func (r authorizationRepo) DeleteByClient(_ context.Context, oauthClientID string) (int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	n := 0
	for id, row := range r.st.data.authorizations {
		if row.rec.OAuthClientID == oauthClientID {
			r.remove(id)
			n++
		}
	}
	return n, nil
}

func (r authorizationRepo) TakeByCode(_ context.Context, code string) (*oauth.Authorization, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for id, row := range r.st.data.authorizations {
		if row.rec.Code == code {
			r.remove(id)
			rec := row.rec
			return &rec, nil
		}
	}
	return nil, oauth.ErrNotFound
}

func (r authorizationRepo) filter(match func(*oauth.Authorization) bool) []*oauth.Authorization {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	rows := make([]authorizationRow, 0)
	for _, row := range r.st.data.authorizations {
		if match(&row.rec) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]*oauth.Authorization, len(rows))
	for i := range rows {
		rec := rows[i].rec
		out[i] = &rec
	}
	return out
}

type tokenRepo struct {
	st  *state
	log *undoLog
}

func (r tokenRepo) put(id string, row tokenRow) {
	prev, had := r.st.data.tokens[id]
	r.log.add(func(d *dataset) {
		if had {
			d.tokens[id] = prev
		} else {
			delete(d.tokens, id)
		}
	})
	r.st.data.tokens[id] = row
}

func (r tokenRepo) remove(id string) {
	prev, had := r.st.data.tokens[id]
	if !had {
		return
	}
	delete(r.st.data.tokens, id)
	r.log.add(func(d *dataset) { d.tokens[id] = prev })
}

func (r tokenRepo) Create(_ context.Context, t *oauth.Token) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, row := range r.st.data.tokens {
		if row.rec.AccessToken == t.AccessToken || row.rec.RefreshToken == t.RefreshToken {
			return oauth.ErrConflict
		}
	}
	r.put(t.ID, tokenRow{seq: r.st.next(), rec: *t})
	return nil
}

func (r tokenRepo) FindByID(_ context.Context, id string) (*oauth.Token, error) {
	return r.findFirst(func(t *oauth.Token) bool { return t.ID == id })
}

func (r tokenRepo) FindByAccessToken(_ context.Context, accessToken string) (*oauth.Token, error) {
	return r.findFirst(func(t *oauth.Token) bool { return t.AccessToken == accessToken })
}

func (r tokenRepo) ListByUser(_ context.Context, userID string) ([]*oauth.Token, error) {
	return r.filter(func(t *oauth.Token) bool { return t.UserID == userID }), nil
}

func (r tokenRepo) ListByClient(_ context.Context, oauthClientID string) ([]*oauth.Token, error) {
	return r.filter(func(t *oauth.Token) bool { return t.OAuthClientID == oauthClientID }), nil
}

func (r tokenRepo) Delete(_ context.Context, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.remove(id)
	return nil
}

func (r tokenRepo) DeleteByUser(_ context.Context, userID string) (int, error) {
	return r.deleteWhere(func(t *oauth.Token) bool { return t.UserID == userID }), nil
}

func (r tokenRepo) DeleteByUserAndClient(_ context.Context, userID, oauthClientID string) (int, error) {
	return r.deleteWhere(func(t *oauth.Token) bool {
		return t.UserID == userID && t.OAuthClientID == oauthClientID
	}), nil
}

func (r tokenRepo) DeleteByClient(_ context.Context, oauthClientID string) (int, error) {
	return r.deleteWhere(func(t *oauth.Token) bool { return t.OAuthClientID == oauthClientID }), nil
}

func (r tokenRepo) TakeByRefreshToken(_ context.Context, refreshToken string) (*oauth.Token, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for id, row := range r.st.data.tokens {
		if row.rec.RefreshToken == refreshToken {
			r.remove(id)
			rec := row.rec
			return &rec, nil
		}
	}
	return nil, oauth.ErrNotFound
}

func (r tokenRepo) deleteWhere(match func(*oauth.Token) bool) int {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	n := 0
	for id, row := range r.st.data.tokens {
		if match(&row.rec) {
			r.remove(id)
			n++
		}
	}
	return n
}

func (r tokenRepo) findFirst(match func(*oauth.Token) bool) (*oauth.Token, error) {
	found := r.filter(match)
	if len(found) == 0 {
		return nil, oauth.ErrNotFound
	}
	return found[0], nil
}

func (r tokenRepo) filter(match func(*oauth.Token) bool) []*oauth.Token {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	rows := make([]tokenRow, 0)
	for _, row := range r.st.data.tokens {
		if match(&row.rec) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]*oauth.Token, len(rows))
	for i := range rows {
		rec := rows[i].rec
		out[i] = &rec
	}
	return out
}
