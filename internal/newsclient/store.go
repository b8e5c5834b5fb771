package newsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/hitoshi/newshub/internal/model"
)

// PreferencesKey はFileStoreのJSONで設定を格納するキー。
const PreferencesKey = "newsPreferences"

// PreferenceStore はクライアント側の設定保存先。
type PreferenceStore interface {
	// Load は保存済みの設定を返す。未保存の場合はnilを返す。
	Load(ctx context.Context) (*model.UserPreference, error)
	Save(ctx context.Context, pref model.UserPreference) error
}

// FileStore はJSONファイルに設定を保存するPreferenceStore。
// ファイルはキーと値のオブジェクトで、設定はPreferencesKeyの下に置かれる。
// 他のキーは保存時にそのまま残す。
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore はpathを保存先とするFileStoreを生成する。
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load はファイルから設定を読む。ファイルやキーが無い場合はnilを返す。
func (s *FileStore) Load(_ context.Context) (*model.UserPreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readEntries()
	if err != nil {
		return nil, err
	}
	raw, ok := entries[PreferencesKey]
	if !ok {
		return nil, nil
	}

	var pref model.UserPreference
	if err := json.Unmarshal(raw, &pref); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", PreferencesKey, err)
	}
	if pref.PreferredSources == nil {
		pref.PreferredSources = []model.ProviderID{}
	}
	return &pref, nil
}

// Save は設定をファイルに書き込む。書き込みは一時ファイルとrenameで置き換える。
func (s *FileStore) Save(_ context.Context, pref model.UserPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readEntries()
	if err != nil {
		return err
	}
	if entries == nil {
		entries = map[string]json.RawMessage{}
	}

	if pref.PreferredSources == nil {
		pref.PreferredSources = []model.ProviderID{}
	}
	raw, err := json.Marshal(pref)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	entries[PreferencesKey] = raw

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

func (s *FileStore) readEntries() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read preference store: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode preference store %s: %w", s.path, err)
	}
	return entries, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".newshub-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace preference store: %w", err)
	}
	return nil
}

// RemoteStore はプリファレンスAPIに設定を保存するPreferenceStore。
// クライアントIDが未発行の場合、最初のSaveでPOSTして発行を受ける。
type RemoteStore struct {
	client *Client

	mu       sync.Mutex
	clientID string
}

// NewRemoteStore はRemoteStoreを生成する。clientIDは空でもよい。
func NewRemoteStore(client *Client, clientID string) *RemoteStore {
	return &RemoteStore{client: client, clientID: clientID}
}

// ClientID は現在のクライアントIDを返す。
func (s *RemoteStore) ClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientID
}

// Load はサーバーから設定を取得する。クライアントIDが無い場合はnilを返す。
func (s *RemoteStore) Load(ctx context.Context) (*model.UserPreference, error) {
	clientID := s.ClientID()
	if clientID == "" {
		return nil, nil
	}
	return s.client.GetPreference(ctx, clientID)
}

// Save はサーバーに設定を保存する。
func (s *RemoteStore) Save(ctx context.Context, pref model.UserPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clientID == "" {
		id, _, err := s.client.CreatePreference(ctx, pref)
		if err != nil {
			return err
		}
		s.clientID = id
		return nil
	}
	_, err := s.client.PutPreference(ctx, s.clientID, pref)
	return err
}
