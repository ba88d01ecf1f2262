package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

const (
	apiHostFlag   = "api-host"
	apiPortFlag   = "api-port"
	apiSecureFlag = "api-secure"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   apiHostFlag,
			Usage:  "backend api host",
			EnvVar: "CINEVAULT_API_HOST",
			Value:  "localhost",
		},
		cli.IntFlag{
			Name:   apiPortFlag,
			Usage:  "backend api port",
			EnvVar: "CINEVAULT_API_PORT",
			Value:  8000,
		},
		cli.BoolFlag{
			Name:   apiSecureFlag,
			Usage:  "backend api secure (https)",
			EnvVar: "CINEVAULT_API_SECURE",
		},
	)
}

// Client talks to the backend that persists per-user movie state.
// Every user-scoped call carries the caller's bearer token.
type Client struct {
	cl  *http.Client
	url string
}

func New(c *cli.Context, cl *http.Client) *Client {
	host := c.String(apiHostFlag)
	port := c.Int(apiPortFlag)
	protocol := "http"
	if c.Bool(apiSecureFlag) {
		protocol = "https"
	}
	u := fmt.Sprintf("%v://%v:%v", protocol, host, port)
	log.Infof("backend api endpoint %v", u)
	return &Client{
		cl:  cl,
		url: u,
	}
}

// Login exchanges credentials for a token pair.
func (s *Client) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	body, err := s.post(ctx, "/api/token/", "", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to login")
	}
	var tp TokenPair
	if err := json.Unmarshal(body, &tp); err != nil {
		return nil, errors.Wrap(err, "failed to parse token response")
	}
	return &tp, nil
}

// Register creates an account. The backend logs the new user in
// separately, so no token is returned here.
func (s *Client) Register(ctx context.Context, username, password string) error {
	_, err := s.post(ctx, "/api/register/", "", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return errors.Wrap(err, "failed to register")
	}
	return nil
}

// MyMovies lists every saved row of the token's user.
func (s *Client) MyMovies(ctx context.Context, token string) ([]SavedMovie, error) {
	body, err := s.get(ctx, "/api/my-movies/", token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get my movies")
	}
	var movies []SavedMovie
	if err := json.Unmarshal(body, &movies); err != nil {
		return nil, errors.Wrap(err, "failed to parse my movies response")
	}
	return movies, nil
}

// SaveMovie upserts one row by title for the token's user.
func (s *Client) SaveMovie(ctx context.Context, token string, m SavedMovie) error {
	_, err := s.post(ctx, "/api/save-movie/", token, m)
	if err != nil {
		return errors.Wrap(err, "failed to save movie")
	}
	return nil
}

// Recommendations fetches the favorite genre and recommended catalog
// ids the backend derived from the user's watch history.
func (s *Client) Recommendations(ctx context.Context, token string) (*Recommendations, error) {
	body, err := s.get(ctx, "/api/recommendations/", token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get recommendations")
	}
	var rec Recommendations
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, errors.Wrap(err, "failed to parse recommendations response")
	}
	return &rec, nil
}

func (s *Client) get(ctx context.Context, path, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.url+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	return s.doRequest(req, token)
}

func (s *Client) post(ctx context.Context, path, token string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}
	req, err := http.NewRequestWithContext(ctx, "POST", s.url+path, bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	return s.doRequest(req, token)
}

func (s *Client) doRequest(req *http.Request, token string) ([]byte, error) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.cl.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiError struct {
			Detail string `json:"detail"`
		}
		if err := json.Unmarshal(body, &apiError); err == nil && apiError.Detail != "" {
			return nil, errors.Errorf("api error (code %d): %s", resp.StatusCode, apiError.Detail)
		}
		return nil, errors.Errorf("http error: %d %s", resp.StatusCode, resp.Status)
	}
	return body, nil
}
