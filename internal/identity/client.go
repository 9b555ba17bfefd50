// Package identity предоставляет клиент к REST API провайдера учётных записей
// (Identity Toolkit): регистрация, вход по паролю и проверка токена.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// DefaultBaseURL задаёт адрес публичного REST API провайдера.
const DefaultBaseURL = "https://identitytoolkit.googleapis.com/v1"

var (
	// ErrNotConfigured возвращается, если не задан веб-ключ API.
	ErrNotConfigured = errors.New("identity web api key not configured")
	// ErrUnavailable возвращается при сетевой ошибке или сбое на стороне провайдера.
	ErrUnavailable = errors.New("identity service unavailable")
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrUserDisabled возвращается для отключённой учётной записи.
	ErrUserDisabled = errors.New("user disabled")
	// ErrEmailExists возвращается при регистрации занятого email.
	ErrEmailExists = errors.New("email already exists")
	// ErrInvalidToken возвращается для недействительного или просроченного токена.
	ErrInvalidToken = errors.New("invalid id token")
	// ErrRejected обозначает прочие отказы провайдера.
	ErrRejected = errors.New("identity request rejected")
	// ErrIncompleteResponse возвращается, если в ответе нет токена или идентификатора.
	ErrIncompleteResponse = errors.New("incomplete identity response")
)

// Error описывает отказ провайдера с исходным кодом причины.
type Error struct {
	Reason string
	Kind   error
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Reason
}

func (e *Error) Unwrap() error { return e.Kind }

// Account содержит учётную запись, возвращённую провайдером.
type Account struct {
	UserID      string
	Email       string
	DisplayName string
	IDToken     string
	Disabled    bool
}

// Client инкапсулирует HTTP-взаимодействие с провайдером учётных записей.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient создаёт клиент. Пустой baseURL означает DefaultBaseURL.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = 10 * time.Second

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// Configured сообщает, задан ли веб-ключ API.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	DisplayName       string `json:"displayName,omitempty"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type tokenResponse struct {
	IDToken     string `json:"idToken"`
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// SignUp регистрирует учётную запись и сразу возвращает токен для неё.
func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (*Account, error) {
	var resp tokenResponse
	err := c.call(ctx, "signUp", passwordRequest{
		Email:             email,
		Password:          password,
		DisplayName:       displayName,
		ReturnSecureToken: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.account()
}

// SignIn проверяет email и пароль и возвращает токен.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Account, error) {
	var resp tokenResponse
	err := c.call(ctx, "signInWithPassword", passwordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.account()
}

func (r tokenResponse) account() (*Account, error) {
	if r.IDToken == "" || r.LocalID == "" {
		return nil, ErrIncompleteResponse
	}
	return &Account{
		UserID:      r.LocalID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		IDToken:     r.IDToken,
	}, nil
}

type lookupResponse struct {
	Users []struct {
		LocalID     string `json:"localId"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
		Disabled    bool   `json:"disabled"`
	} `json:"users"`
}

// Verify проверяет токен и возвращает владельца.
func (c *Client) Verify(ctx context.Context, idToken string) (*Account, error) {
	var resp lookupResponse
	if err := c.call(ctx, "lookup", map[string]string{"idToken": idToken}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 || resp.Users[0].LocalID == "" {
		return nil, &Error{Reason: "USER_NOT_FOUND", Kind: ErrInvalidToken}
	}

	u := resp.Users[0]
	if u.Disabled {
		return nil, &Error{Reason: "USER_DISABLED", Kind: ErrUserDisabled}
	}
	return &Account{
		UserID:      u.LocalID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		IDToken:     idToken,
	}, nil
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, body, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/accounts:%s?key=%s", c.baseURL, method, url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s: status %d", ErrUnavailable, method, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		var er errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
			return &Error{Kind: ErrRejected}
		}
		return classify(er.Error.Message)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// classify отображает код причины провайдера ("REASON : подробности") на ошибку пакета.
func classify(message string) error {
	reason, _, _ := strings.Cut(message, " : ")
	reason = strings.TrimSpace(reason)

	switch reason {
	case "INVALID_LOGIN_CREDENTIALS", "INVALID_PASSWORD", "EMAIL_NOT_FOUND":
		return &Error{Reason: reason, Kind: ErrInvalidCredentials}
	case "USER_DISABLED":
		return &Error{Reason: reason, Kind: ErrUserDisabled}
	case "EMAIL_EXISTS":
		return &Error{Reason: reason, Kind: ErrEmailExists}
	case "INVALID_ID_TOKEN", "TOKEN_EXPIRED", "USER_NOT_FOUND":
		return &Error{Reason: reason, Kind: ErrInvalidToken}
	default:
		return &Error{Reason: reason, Kind: ErrRejected}
	}
}
