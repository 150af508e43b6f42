package library

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/crypto/pbkdf2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultAdminPassword seeds the first-run admin account when no
// override is configured. It is publicly known and insecure by design;
// deployments are expected to change it immediately.
const DefaultAdminPassword = "admin123"

const defaultAdminUser = "admin"

// Deterministic PBKDF2 parameters. The salt is fixed at the
// application level so equal passwords always produce equal digests,
// which is the equality contract login relies on.
const hashIterations = 4096

var hashSalt = []byte("library-tracker/credentials/v1")

// CredentialStore holds every login in memory, backed by a JSON file
// that is read whole at startup and rewritten whole on any mutation.
type CredentialStore struct {
	path  string
	users map[string]*Credential
}

// OpenCredentialStore loads the credential file at path, creating it
// with a seeded admin account when it does not exist. adminPassword
// may be empty, in which case the default is used.
func OpenCredentialStore(path, adminPassword string) (*CredentialStore, error) {
	cs := &CredentialStore{path: path, users: make(map[string]*Credential)}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &cs.users); err != nil {
			return nil, fmt.Errorf("parse credentials: %w: %v", ErrStorage, err)
		}
		return cs, nil
	case os.IsNotExist(err):
		if adminPassword == "" {
			adminPassword = DefaultAdminPassword
		}
		cs.users[defaultAdminUser] = &Credential{
			PasswordHash: HashPassword(adminPassword),
			Role:         "admin",
			Name:         "System Administrator",
			CreatedAt:    time.Now().UTC(),
		}
		if err := cs.save(); err != nil {
			return nil, err
		}
		return cs, nil
	default:
		return nil, fmt.Errorf("read credentials: %w: %v", ErrStorage, err)
	}
}

// HashPassword derives the stored digest for a password. PBKDF2 with
// fixed parameters keeps the derivation one-way and deterministic.
func HashPassword(password string) string {
	key := pbkdf2.Key([]byte(password), hashSalt, hashIterations, sha256.Size, sha256.New)
	return hex.EncodeToString(key)
}

// Authenticate checks username/password and returns the session
// Identity on match. A miss of either kind reports ErrAuth without
// saying which part was wrong.
func (cs *CredentialStore) Authenticate(username, password string) (*Identity, error) {
	cred, ok := cs.users[username]
	if !ok || cred.PasswordHash != HashPassword(password) {
		return nil, fmt.Errorf("%w: invalid username or password", ErrAuth)
	}
	return &Identity{Username: username, Role: cred.Role, Name: cred.Name}, nil
}

// Register inserts a new credential and persists the full set. It
// returns false without error when the username is already taken.
func (cs *CredentialStore) Register(username, password, displayName, role string) (bool, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return false, fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	if role == "" {
		role = "user"
	}
	if _, exists := cs.users[username]; exists {
		return false, nil
	}
	cs.users[username] = &Credential{
		PasswordHash: HashPassword(password),
		Role:         role,
		Name:         displayName,
		CreatedAt:    time.Now().UTC(),
	}
	if err := cs.save(); err != nil {
		delete(cs.users, username)
		return false, err
	}
	return true, nil
}

// Usernames lists registered logins in sorted order.
func (cs *CredentialStore) Usernames() []string {
	names := make([]string, 0, len(cs.users))
	for name := range cs.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// save rewrites the whole credential file. A temp-file rename keeps a
// crash mid-write from truncating the existing set.
func (cs *CredentialStore) save() error {
	if dir := filepath.Dir(cs.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create credentials dir: %w: %v", ErrStorage, err)
		}
	}
	raw, err := json.MarshalIndent(cs.users, "", "    ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w: %v", ErrStorage, err)
	}
	tmp := cs.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w: %v", ErrStorage, err)
	}
	if err := os.Rename(tmp, cs.path); err != nil {
		return fmt.Errorf("replace credentials: %w: %v", ErrStorage, err)
	}
	return nil
}
