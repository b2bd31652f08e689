// Package session tracks connected backup clients: their assigned
// client ID, claimed username, and (once exchanged) RSA public key and
// AES session key. It keeps two coordinated lookup maps behind a single
// mutex, with no I/O performed while the lock is held.
package session

import (
	"crypto/rsa"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/filevault/backupd/internal/protocol"
)

// ClientSession is the server's view of one registered client across
// its lifetime, including reconnects.
type ClientSession struct {
	ClientID  [protocol.ClientIDSize]byte
	Username  string
	PublicKey *rsa.PublicKey // nil until SendPublicKey
	AESKey    []byte         // nil until SendPublicKey; 32 bytes once set
}

// Registry is the server-wide table of registered clients, keyed by
// both username and client ID so lookups from either direction are O(1).
type Registry struct {
	mu          sync.Mutex
	byUsername  map[string][protocol.ClientIDSize]byte
	byClientID  map[[protocol.ClientIDSize]byte]*ClientSession
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUsername: make(map[string][protocol.ClientIDSize]byte),
		byClientID: make(map[[protocol.ClientIDSize]byte]*ClientSession),
	}
}

// ErrUsernameTaken is returned by Register when the username already
// has a live session.
var ErrUsernameTaken = fmt.Errorf("session: username already registered")

// Register claims username for a newly generated client ID. Usernames
// are first-to-claim: once registered, the same username cannot be
// registered a second time without going through Reconnect.
func (r *Registry) Register(username string) (*ClientSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[username]; exists {
		return nil, ErrUsernameTaken
	}

	id, err := newClientID()
	if err != nil {
		return nil, err
	}

	sess := &ClientSession{ClientID: id, Username: username}
	r.byUsername[username] = id
	r.byClientID[id] = sess
	return sess, nil
}

// ErrUnknownUsername is returned when a username has no registered
// session at all.
var ErrUnknownUsername = fmt.Errorf("session: unknown username")

// ErrUnknownClientID is returned when a client ID has no session.
var ErrUnknownClientID = fmt.Errorf("session: unknown client id")

// AttachPublicKey stores the RSA public key and unwrapped AES session
// key for an already-registered client, identified by client ID (the
// client presents its ID on every request after Register).
func (r *Registry) AttachPublicKey(clientID [protocol.ClientIDSize]byte, pub *rsa.PublicKey, aesKey []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byClientID[clientID]
	if !ok {
		return ErrUnknownClientID
	}
	sess.PublicKey = pub
	sess.AESKey = aesKey
	return nil
}

// Reconnect looks up an existing session by username, for a client that
// already registered in a previous connection and wants to resume
// without re-registering. It returns a copy of the session taken while
// the registry lock is held, so the caller's view of PublicKey/AESKey
// can't tear against a concurrent AttachPublicKey or Rekey on another
// connection for the same client; callers decide whether to issue a
// fresh AES key exchange.
func (r *Registry) Reconnect(username string) (ClientSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byUsername[username]
	if !ok {
		return ClientSession{}, ErrUnknownUsername
	}
	return *r.byClientID[id], nil
}

// Rekey replaces a reconnecting client's AES session key after a fresh
// RSA-OAEP key exchange. It also stores pub as the session's public key,
// exactly as AttachPublicKey does; username and client ID are untouched.
func (r *Registry) Rekey(clientID [protocol.ClientIDSize]byte, pub *rsa.PublicKey, aesKey []byte) error {
	return r.AttachPublicKey(clientID, pub, aesKey)
}

// Lookup fetches a session by client ID; the dispatcher uses it to
// resolve the AES key for SendFile. It returns a
// copy taken while the registry lock is held, for the same reason as
// Reconnect: PublicKey/AESKey must not be read outside the lock that
// guards their writes.
func (r *Registry) Lookup(clientID [protocol.ClientIDSize]byte) (ClientSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byClientID[clientID]
	if !ok {
		return ClientSession{}, false
	}
	return *sess, true
}

// Snapshot returns a point-in-time copy of every session, for the
// admin /debug/sessions endpoint and the sessions CLI command. Each
// ClientSession is copied out while the registry lock is held, so
// readers never observe a PublicKey/AESKey pair mid-update.
func (r *Registry) Snapshot() []ClientSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ClientSession, 0, len(r.byClientID))
	for _, sess := range r.byClientID {
		out = append(out, *sess)
	}
	return out
}

// Count returns the number of currently registered sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byClientID)
}

func newClientID() ([protocol.ClientIDSize]byte, error) {
	var id [protocol.ClientIDSize]byte
	u, err := uuid.NewRandom()
	if err != nil {
		return id, fmt.Errorf("session: generate client id: %w", err)
	}
	copy(id[:], u[:])
	return id, nil
}
