package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	driveapi "google.golang.org/api/drive/v3"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/logger"
)

// ServiceAccountEnv names the environment variable holding service
// account credentials JSON for headless deployments.
const ServiceAccountEnv = "GOOGLE_SERVICE_ACCOUNT_JSON"

// tokenSource resolves credentials in order: service account JSON from
// the environment, a cached OAuth token file, then an interactive
// browser flow as the last resort.
func tokenSource(ctx context.Context, credentialsPath, tokenPath string) (oauth2.TokenSource, error) {
	if sa := os.Getenv(ServiceAccountEnv); sa != "" {
		cfg, err := google.JWTConfigFromJSON([]byte(sa), driveapi.DriveReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("%w: parse service account JSON: %v", domain.ErrInvalidConfig, err)
		}
		logger.Debug("drive: using service account credentials")
		return cfg.TokenSource(ctx), nil
	}

	if credentialsPath == "" {
		return nil, fmt.Errorf("%w: drive: no service account and no credentials file configured", domain.ErrInvalidConfig)
	}
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read credentials file: %v", domain.ErrInvalidConfig, err)
	}
	cfg, err := google.ConfigFromJSON(data, driveapi.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("%w: parse credentials file: %v", domain.ErrInvalidConfig, err)
	}

	tok, err := tokenFromFile(tokenPath)
	if err != nil {
		tok, err = tokenFromWeb(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokenPath, tok); err != nil {
			logger.Warn("drive: cache token: %v", err)
		}
	}

	// Persist refreshed tokens so restarts stay silent.
	return &savingTokenSource{
		src:  cfg.TokenSource(ctx, tok),
		path: tokenPath,
		last: tok.AccessToken,
	}, nil
}

// savingTokenSource writes the token file whenever the underlying source
// hands out a refreshed access token.
type savingTokenSource struct {
	src  oauth2.TokenSource
	path string
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := saveToken(s.path, tok); err != nil {
			logger.Warn("drive: cache refreshed token: %v", err)
		}
	}
	return tok, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}

// tokenFromWeb runs the interactive authorization flow: it starts a
// local callback server, prints the consent URL and waits for the
// redirect carrying the authorization code.
func tokenFromWeb(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("start callback listener: %w", err)
	}
	defer listener.Close()

	port := listener.Addr().(*net.TCPAddr).Port
	cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d/callback", port)

	state := uuid.New().String()
	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("state"); got != state {
			errChan <- fmt.Errorf("state mismatch")
			http.Error(w, "invalid state", http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			errChan <- fmt.Errorf("no authorization code received")
			http.Error(w, "no code", http.StatusBadRequest)
			return
		}
		codeChan <- code
		_, _ = fmt.Fprintln(w, "Authorization successful. You can close this window.")
	})

	srv := &http.Server{Handler: mux, ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(listener) }()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	url := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	logger.Info("drive: open this URL in your browser to authorize access:\n%s", url)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errChan:
		return nil, fmt.Errorf("%w: authorization: %v", domain.ErrSourceAccess, err)
	case code := <-codeChan:
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("%w: exchange authorization code: %v", domain.ErrSourceAccess, err)
		}
		return tok, nil
	}
}
