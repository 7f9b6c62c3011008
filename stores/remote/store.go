package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/godwinm8/Stateless-2D-Editor/core"

	"github.com/sirupsen/logrus"
)

// Store talks to the scene document service over HTTP.
type Store struct {
	baseURL string
	token   string
	client  *http.Client
}

type Option func(*Store)

// WithToken sends a share token as a Bearer credential on every request.
func WithToken(token string) Option {
	return func(s *Store) { s.token = token }
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.client = c }
}

func NewStore(baseURL string, opts ...Option) *Store {
	s := &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) sceneURL(id string) (string, error) {
	if err := core.ValidateID(id); err != nil {
		return "", err
	}
	return s.baseURL + "/api/" + core.SceneCollection + "/" + url.PathEscape(id), nil
}

func (s *Store) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	return req, nil
}

func (s *Store) Get(ctx context.Context, id string) (*core.SceneDocument, error) {
	target, err := s.sceneURL(id)
	if err != nil {
		return nil, err
	}
	req, err := s.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch scene %s: %w", id, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("scene with id %s: %w", id, core.ErrSceneNotFound)
	default:
		return nil, statusError(resp)
	}

	var doc core.SceneDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode scene %s: %w", id, err)
	}
	doc.ID = id

	logrus.WithField("scene_id", id).Debug("Scene fetched from document service")
	return &doc, nil
}

func (s *Store) Put(ctx context.Context, doc *core.SceneDocument) error {
	target, err := s.sceneURL(doc.ID)
	if err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal scene: %w", err)
	}
	req, err := s.newRequest(ctx, http.MethodPut, target, bytes.NewReader(body))
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to save scene %s: %w", doc.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return statusError(resp)
	}

	logrus.WithFields(logrus.Fields{
		"scene_id":    doc.ID,
		"data_length": len(doc.Data),
	}).Debug("Scene pushed to document service")
	return nil
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("document service returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
}
