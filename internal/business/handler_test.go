package business

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	configs map[string]*Config
	getErr  error
}

func newMockStore() *mockStore {
	return &mockStore{configs: make(map[string]*Config)}
}

func (m *mockStore) Get(ctx context.Context, businessID string) (*Config, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if cfg, ok := m.configs[businessID]; ok {
		return cfg, nil
	}
	return DefaultConfig(businessID), nil
}

func (m *mockStore) Set(ctx context.Context, cfg *Config) error {
	m.configs[cfg.BusinessID] = cfg
	return nil
}

func TestHandler_GetConfig(t *testing.T) {
	h := NewHandler(newMockStore(), nil)
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/acme/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var cfg Config
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cfg))
	assert.Equal(t, "acme", cfg.BusinessID)
}

func TestHandler_UpdateConfigPartial(t *testing.T) {
	store := newMockStore()
	h := NewHandler(store, nil)

	body := `{"name":"Acme Web","notifications":{"sms_enabled":true,"sms_recipients":["+15550002222"]}}`
	req := httptest.NewRequest(http.MethodPut, "/acme/config", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	saved := store.configs["acme"]
	require.NotNil(t, saved)
	assert.Equal(t, "Acme Web", saved.Name)
	assert.True(t, saved.Notifications.SMSEnabled)
	assert.Len(t, saved.PriceTiers, 3, "untouched fields keep defaults")
}

func TestHandler_UpdateConfigInvalidJSON(t *testing.T) {
	h := NewHandler(newMockStore(), nil)
	req := httptest.NewRequest(http.MethodPut, "/acme/config", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_GetConfigStoreError(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("redis down")
	h := NewHandler(store, nil)
	req := httptest.NewRequest(http.MethodGet, "/acme/config", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
