package venuebot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// dataNamespace is the top-level key all bot data lives under, in both the
// local data file and the remote database.
const dataNamespace = "venuebot"

const (
	remoteTreeChild  = "data"
	remotePingCheck  = 5 * time.Second
	storageTempPerms = 0o600

	storageBackendFirebase = "firebase"
	storageBackendFile     = "file"
)

// StoredRecord is the per-user record kept by the key-value store. It is
// owned exclusively by Storage - callers receive copies and never retain
// one beyond a single call.
type StoredRecord struct {
	ZoomName   string `json:"zoomName"`
	Base64     string `json:"base64"`
	LastUsed   int64  `json:"lastUsed"`
	TelegramID string `json:"telegramId"`
}

// ControlMessageRef tracks the most recently posted host control message,
// so it can be located and deleted before reposting. A stale or missing
// reference is normal, not an error.
type ControlMessageRef struct {
	ID string `json:"id"`
}

// StoredBotConfig is the Discord credential fallback persisted under the
// `config` sub-key, used when the environment doesn't provide them.
type StoredBotConfig struct {
	Token        string `json:"token"`
	ChannelID    string `json:"channel_id"`
	LogChannelID string `json:"log_channel_id"`
}

// DataTree is the whole persisted document. On the wire it's a JSON object
// with a single `venuebot` namespace key, under which the fixed sub-keys
// (`config`, `host_message`, `room_number`) live alongside per-user
// records keyed by numeric Discord user ID.
type DataTree struct {
	Config      *StoredBotConfig
	HostMessage *ControlMessageRef
	RoomNumber  string
	Users       map[string]*StoredRecord
}

const (
	subKeyConfig      = "config"
	subKeyHostMessage = "host_message"
	subKeyRoomNumber  = "room_number"
)

// User returns the stored record for the given user ID, or nil.
func (d *DataTree) User(userID string) *StoredRecord {
	if d.Users == nil {
		return nil
	}
	return d.Users[userID]
}

// SetUser stores a record for the given user ID.
func (d *DataTree) SetUser(userID string, record *StoredRecord) {
	if d.Users == nil {
		d.Users = map[string]*StoredRecord{}
	}
	d.Users[userID] = record
}

// MarshalJSON implements json.Marshaler.
func (d DataTree) MarshalJSON() ([]byte, error) {
	ns := map[string]any{}
	if d.Config != nil {
		ns[subKeyConfig] = d.Config
	}
	if d.HostMessage != nil {
		ns[subKeyHostMessage] = d.HostMessage
	}
	if d.RoomNumber != "" {
		ns[subKeyRoomNumber] = d.RoomNumber
	}
	for userID, record := range d.Users {
		ns[userID] = record
	}
	return json.Marshal(map[string]any{dataNamespace: ns})
}

// UnmarshalJSON implements json.Unmarshaler. Unknown sub-keys that don't
// decode as user records are skipped rather than failing the whole
// document.
func (d *DataTree) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*d = DataTree{}
	nsRaw, ok := doc[dataNamespace]
	if !ok {
		return nil
	}
	var ns map[string]json.RawMessage
	if err := json.Unmarshal(nsRaw, &ns); err != nil {
		return err
	}
	for key, raw := range ns {
		switch key {
		case subKeyConfig:
			cfg := &StoredBotConfig{}
			if err := json.Unmarshal(raw, cfg); err == nil {
				d.Config = cfg
			}
		case subKeyHostMessage:
			ref := &ControlMessageRef{}
			if err := json.Unmarshal(raw, ref); err == nil {
				d.HostMessage = ref
			}
		case subKeyRoomNumber:
			var room string
			if err := json.Unmarshal(raw, &room); err == nil {
				d.RoomNumber = room
			}
		default:
			record := &StoredRecord{}
			if err := json.Unmarshal(raw, record); err == nil {
				d.SetUser(key, record)
			}
		}
	}
	return nil
}

// Storage is the durable key-value store, backed by either the Firebase
// Realtime Database (REST) or a local JSON file. The backend is resolved
// once, on first use: if the remote database isn't configured or can't be
// reached, the local file is used for the remainder of the process.
//
// Even with a remote backend, individual remote read/write failures fall
// through to the local file for that one operation, so a failed remote
// write never loses data.
//
// Local writes replace the whole document (write-to-temp-then-rename), so
// every mutation goes through Update, which serializes the full
// load-modify-save sequence under a single mutex.
type Storage struct {
	config     *StorageConfig
	logger     *slog.Logger
	httpClient *http.Client

	// mu serializes whole-document read-modify-write cycles
	mu sync.Mutex

	remote     *firebaseClient
	remoteOnce sync.Once
}

func NewStorage(
	config *StorageConfig,
	httpClient *http.Client,
	logger *slog.Logger,
) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Storage{
		config:     config,
		httpClient: httpClient,
		logger:     logger.With(loggerNameKey, "storage"),
	}
}

// backend resolves the remote database client. The result - including a
// nil result for "unavailable" - is cached for the process lifetime.
func (s *Storage) backend(ctx context.Context) *firebaseClient {
	s.remoteOnce.Do(
		func() {
			if s.config.FirebaseDatabaseURL == "" {
				s.logger.Info("remote database not configured, using local file")
				return
			}
			client := &firebaseClient{
				baseURL:    strings.TrimSuffix(s.config.FirebaseDatabaseURL, "/"),
				collection: s.config.FirebaseCollection,
				secret:     s.config.FirebaseAuthSecret,
				httpClient: s.httpClient,
				logger:     s.logger.With(loggerNameKey, "firebase"),
			}
			pingCtx, cancel := context.WithTimeout(ctx, remotePingCheck)
			defer cancel()
			if err := client.ping(pingCtx); err != nil {
				s.logger.Error(
					"remote database unreachable, falling back to local file",
					tint.Err(err),
				)
				return
			}
			s.logger.Info(
				"using remote database",
				"collection", s.config.FirebaseCollection,
			)
			s.remote = client
		},
	)
	return s.remote
}

// BackendName reports which backend the store resolved to.
func (s *Storage) BackendName(ctx context.Context) string {
	if s.backend(ctx) != nil {
		return storageBackendFirebase
	}
	return storageBackendFile
}

// Load returns the stored document. It never fails: a missing local file
// or a remote read error yields an empty tree, and a malformed local file
// yields an empty tree after logging the problem.
func (s *Storage) Load(ctx context.Context) *DataTree {
	if remote := s.backend(ctx); remote != nil {
		tree := &DataTree{}
		found, err := remote.get(ctx, remoteTreeChild, tree)
		if err == nil {
			if !found {
				return &DataTree{}
			}
			return tree
		}
		s.logger.ErrorContext(ctx, "remote read failed", tint.Err(err))
	}
	return s.loadFile(ctx)
}

// Save persists the whole document. When the remote backend accepts the
// write the local file is left untouched; when it rejects the write, the
// document still lands in the local file.
func (s *Storage) Save(ctx context.Context, tree *DataTree) error {
	if remote := s.backend(ctx); remote != nil {
		if err := remote.put(ctx, remoteTreeChild, tree); err == nil {
			return nil
		} else {
			s.logger.ErrorContext(ctx, "remote write failed", tint.Err(err))
		}
	}
	return s.saveFile(ctx, tree)
}

// Update runs fn against the current document and persists the result,
// holding the store lock for the whole load-modify-save sequence.
func (s *Storage) Update(ctx context.Context, fn func(*DataTree)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tree := s.Load(ctx)
	fn(tree)
	return s.Save(ctx, tree)
}

func (s *Storage) loadFile(ctx context.Context) *DataTree {
	data, err := os.ReadFile(s.config.DataFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.ErrorContext(ctx, "error reading data file", tint.Err(err))
		}
		return &DataTree{}
	}
	tree := &DataTree{}
	if err := json.Unmarshal(data, tree); err != nil {
		s.logger.ErrorContext(
			ctx,
			"invalid data file",
			"path", s.config.DataFile,
			tint.Err(err),
		)
		return &DataTree{}
	}
	return tree
}

// saveFile overwrites the data file atomically (write-to-temp-then-rename)
// so a crash mid-write can't leave a torn document behind.
func (s *Storage) saveFile(ctx context.Context, tree *DataTree) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("error marshaling data file: %w", err)
	}
	dir := filepath.Dir(s.config.DataFile)
	tmp, err := os.CreateTemp(dir, ".venuebot-*.json")
	if err != nil {
		return fmt.Errorf("error creating temp data file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("error writing temp data file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("error closing temp data file: %w", err)
	}
	if err = os.Chmod(tmpName, storageTempPerms); err != nil {
		s.logger.WarnContext(ctx, "error setting data file mode", tint.Err(err))
	}
	if err = os.Rename(tmpName, s.config.DataFile); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("error replacing data file: %w", err)
	}
	return nil
}

// SaveZoomName stores the Zoom display name for a user and returns the
// encoded token form. With a remote backend, user records are kept as
// individual documents keyed by user ID; otherwise they live in the
// document tree.
func (s *Storage) SaveZoomName(
	ctx context.Context,
	userID string,
	zoomName string,
) (string, error) {
	record := &StoredRecord{
		ZoomName: zoomName,
		Base64:   EncodeName(zoomName),
		LastUsed: time.Now().Unix(),
	}
	if remote := s.backend(ctx); remote != nil {
		if err := remote.put(ctx, userID, record); err == nil {
			return record.Base64, nil
		} else {
			s.logger.ErrorContext(ctx, "remote write failed", tint.Err(err))
		}
	}
	if err := s.Update(
		ctx, func(tree *DataTree) {
			tree.SetUser(userID, record)
		},
	); err != nil {
		return "", err
	}
	return record.Base64, nil
}

// ZoomName returns the stored encoded Zoom name for a user, refreshing the
// record's last-used timestamp. The bool reports whether a record exists.
func (s *Storage) ZoomName(ctx context.Context, userID string) (string, bool) {
	if remote := s.backend(ctx); remote != nil {
		record := &StoredRecord{}
		found, err := remote.get(ctx, userID, record)
		switch {
		case err != nil:
			s.logger.ErrorContext(ctx, "remote read failed", tint.Err(err))
		case !found:
			return "", false
		default:
			if patchErr := remote.patch(
				ctx, userID, map[string]any{"lastUsed": time.Now().Unix()},
			); patchErr != nil {
				s.logger.ErrorContext(
					ctx,
					"error refreshing last-used timestamp",
					tint.Err(patchErr),
				)
			}
			return record.Base64, true
		}
	}

	var encoded string
	var found bool
	if err := s.Update(
		ctx, func(tree *DataTree) {
			record := tree.User(userID)
			if record == nil {
				return
			}
			record.LastUsed = time.Now().Unix()
			encoded = record.Base64
			found = true
		},
	); err != nil {
		s.logger.ErrorContext(ctx, "error refreshing user record", tint.Err(err))
	}
	return encoded, found
}

// SaveControlMessageID persists the ID of the current host control message.
func (s *Storage) SaveControlMessageID(ctx context.Context, messageID string) error {
	return s.Update(
		ctx, func(tree *DataTree) {
			tree.HostMessage = &ControlMessageRef{ID: messageID}
		},
	)
}

// ControlMessageID returns the stored control message ID, or "" when none
// has been saved - absence is a normal return, not an error.
func (s *Storage) ControlMessageID(ctx context.Context) string {
	tree := s.Load(ctx)
	if tree.HostMessage == nil {
		return ""
	}
	return tree.HostMessage.ID
}

// SaveRoomNumber persists the current room number. Validation happens at
// the SessionState boundary, not here.
func (s *Storage) SaveRoomNumber(ctx context.Context, number string) error {
	return s.Update(
		ctx, func(tree *DataTree) {
			tree.RoomNumber = number
		},
	)
}

// RoomNumber returns the stored room number, possibly "".
func (s *Storage) RoomNumber(ctx context.Context) string {
	return s.Load(ctx).RoomNumber
}

// SaveBotConfig persists Discord credentials under the `config` sub-key.
func (s *Storage) SaveBotConfig(ctx context.Context, cfg StoredBotConfig) error {
	return s.Update(
		ctx, func(tree *DataTree) {
			tree.Config = &cfg
		},
	)
}

// BotConfig returns the persisted Discord credential fallback, or nil.
func (s *Storage) BotConfig(ctx context.Context) *StoredBotConfig {
	return s.Load(ctx).Config
}

// firebaseClient talks to the Firebase Realtime Database REST API. Each
// child path maps to `{baseURL}/{collection}/{child}.json`.
type firebaseClient struct {
	baseURL    string
	collection string
	secret     string
	httpClient *http.Client
	logger     *slog.Logger
}

func (f *firebaseClient) childURL(child string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	if f.secret != "" {
		query.Set("auth", f.secret)
	}
	u := fmt.Sprintf("%s/%s/%s.json", f.baseURL, f.collection, child)
	if encoded := query.Encode(); encoded != "" {
		u = fmt.Sprintf("%s?%s", u, encoded)
	}
	return u
}

// ping verifies the database is reachable with a shallow read of the
// collection root.
func (f *firebaseClient) ping(ctx context.Context) error {
	query := url.Values{}
	query.Set("shallow", "true")
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		f.childURL("", query),
		nil,
	)
	if err != nil {
		return err
	}
	rv, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = rv.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, rv.Body)
	if rv.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", rv.StatusCode)
	}
	return nil
}

// get reads a child document into v. The returned bool is false when the
// document doesn't exist (the database returns a JSON null).
func (f *firebaseClient) get(ctx context.Context, child string, v any) (bool, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		f.childURL(child, nil),
		nil,
	)
	if err != nil {
		return false, err
	}
	rv, err := f.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = rv.Body.Close()
	}()
	body, err := io.ReadAll(rv.Body)
	if err != nil {
		return false, err
	}
	if rv.StatusCode != http.StatusOK {
		return false, fmt.Errorf(
			"unexpected status %d: %s", rv.StatusCode, string(body),
		)
	}
	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return false, nil
	}
	if err = json.Unmarshal(body, v); err != nil {
		return false, err
	}
	return true, nil
}

func (f *firebaseClient) put(ctx context.Context, child string, v any) error {
	return f.write(ctx, http.MethodPut, child, v)
}

func (f *firebaseClient) patch(ctx context.Context, child string, v any) error {
	return f.write(ctx, http.MethodPatch, child, v)
}

func (f *firebaseClient) write(
	ctx context.Context,
	method string,
	child string,
	v any,
) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(
		ctx,
		method,
		f.childURL(child, nil),
		bytes.NewReader(body),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	rv, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = rv.Body.Close()
	}()
	responseBody, _ := io.ReadAll(rv.Body)
	if rv.StatusCode != http.StatusOK {
		return fmt.Errorf(
			"unexpected status %d: %s", rv.StatusCode, string(responseBody),
		)
	}
	return nil
}
