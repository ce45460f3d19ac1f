// Package storage appends meeting records to a Google Sheets spreadsheet
// using a service account.
package storage

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"timelogger/pkg/clients"
	"timelogger/pkg/logging"
	"timelogger/pkg/models"
)

const (
	defaultSheetsAPIURL = "https://sheets.googleapis.com"
	defaultTokenURI     = "https://oauth2.googleapis.com/token"
	sheetsScope         = "https://www.googleapis.com/auth/spreadsheets"

	// Tokens are refreshed this long before their reported expiry.
	tokenExpiryMargin = 2 * time.Minute
)

// serviceAccount is the subset of a Google service-account key file we need.
type serviceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// Config configures the Sheets client.
type Config struct {
	CredentialsFile string
	SpreadsheetID   string
	SheetName       string

	// APIURL overrides the Sheets API base URL, for tests.
	APIURL string
	// TokenURL overrides the service account token URI, for tests.
	TokenURL string
}

// SheetsClient appends meeting rows to a spreadsheet. Access tokens are
// minted from the service-account key and cached until shortly before expiry.
type SheetsClient struct {
	cfg        Config
	account    serviceAccount
	privateKey *rsa.PrivateKey
	client     *http.Client
	logger     logging.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewSheetsClient loads the service-account key file and validates the
// configuration. The spreadsheet itself is not touched until the first append.
func NewSheetsClient(cfg Config, logger logging.Logger) (*SheetsClient, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("storage: spreadsheet ID is required")
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "MeetingRecords"
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultSheetsAPIURL
	}

	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("storage: read credentials file: %w", err)
	}
	var account serviceAccount
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("storage: parse credentials file: %w", err)
	}
	if account.ClientEmail == "" || account.PrivateKey == "" {
		return nil, fmt.Errorf("storage: credentials file missing client_email or private_key")
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = account.TokenURI
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURI
	}

	key, err := parsePrivateKey(account.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("storage: parse private key: %w", err)
	}

	return &SheetsClient{
		cfg:        cfg,
		account:    account,
		privateKey: key,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

func parsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key is not RSA")
		}
		return rsaKey, nil
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

// StoreMeeting appends one row to the configured sheet. The row layout is
// [timestamp, customer, date, start, end, hours, notes].
func (c *SheetsClient) StoreMeeting(ctx context.Context, record models.MeetingRecord) error {
	token, err := c.accessTokenFor(ctx)
	if err != nil {
		return fmt.Errorf("storage: obtain access token: %w", err)
	}

	row := []interface{}{
		record.Timestamp,
		record.CustomerName,
		record.MeetingDate,
		record.StartTime,
		record.EndTime,
		strconv.FormatFloat(record.TotalHours, 'f', -1, 64),
		record.Notes,
	}
	body, err := json.Marshal(map[string]interface{}{"values": [][]interface{}{row}})
	if err != nil {
		return fmt.Errorf("storage: encode append body: %w", err)
	}

	appendURL := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:append?valueInputOption=USER_ENTERED",
		c.cfg.APIURL, url.PathEscape(c.cfg.SpreadsheetID), url.PathEscape(c.cfg.SheetName))

	resp, err := clients.DoWithRetry(ctx, c.client, clients.DefaultRetryConfig(), func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, appendURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("storage: append request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("storage: append returned status %d: %s", resp.StatusCode, string(respBody))
	}

	c.logger.WithFields(logging.Fields{
		"spreadsheet_id": c.cfg.SpreadsheetID,
		"sheet":          c.cfg.SheetName,
		"customer":       record.CustomerName,
	}).Info("Meeting record stored")

	return nil
}

func (c *SheetsClient) accessTokenFor(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenExpiryMargin)) {
		return c.accessToken, nil
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   c.account.ClientEmail,
		"scope": sheetsScope,
		"aud":   c.cfg.TokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}

	resp, err := clients.DoWithRetry(ctx, c.client, clients.DefaultRetryConfig(), func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, bytes.NewBufferString(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access token")
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return c.accessToken, nil
}
