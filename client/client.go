// Package client is a Go client for the prescription fulfillment API. It
// carries the patient-side workflow: resolve a location, search pharmacies
// for a prescription, and submit the prescription as an order after an
// explicit confirmation step.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TokenStore holds the bearer token between calls. Implementations must be
// safe for concurrent use.
type TokenStore interface {
	Token() string
	Set(token string)
	Clear()
}

// MemoryTokenStore is the default in-process TokenStore.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

func (s *MemoryTokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *MemoryTokenStore) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *MemoryTokenStore) Clear() {
	s.Set("")
}

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int
	Code    string
	Details string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Details)
	}
	return fmt.Sprintf("api error %d %s", e.Status, e.Code)
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenStore replaces the default in-memory token store.
func WithTokenStore(ts TokenStore) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithUnauthorizedHook registers a callback fired when the service rejects
// the token. The hook fires at most once per authenticated session even
// when several in-flight calls fail together.
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

type Client struct {
	baseURL        string
	http           *http.Client
	tokens         TokenStore
	onUnauthorized func()

	mu      sync.Mutex
	evicted bool // true once a 401 has been handled for the current token
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		tokens:  &MemoryTokenStore{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Wire types, matching the service's JSON.

type Pharmacy struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Distance  float64   `json:"distance"`
}

type OrderItem struct {
	MedicineID uuid.UUID `json:"medicine_id"`
	Quantity   int       `json:"quantity"`
}

type Order struct {
	ID             uuid.UUID  `json:"id"`
	PrescriptionID uuid.UUID  `json:"prescription_id"`
	PharmacyID     uuid.UUID  `json:"pharmacy_id"`
	Status         string     `json:"status"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	PharmacyName   string     `json:"pharmacy_name,omitempty"`
	ItemCount      int        `json:"item_count,omitempty"`
}

type PrescriptionMedicine struct {
	MedicineID    uuid.UUID `json:"medicine_id"`
	BrandName     string    `json:"brand_name,omitempty"`
	TotalQuantity string    `json:"total_quantity"`
	Quantity      *int      `json:"quantity,omitempty"`
	Dispensed     bool      `json:"dispensed"`
}

type Prescription struct {
	ID        uuid.UUID              `json:"id"`
	Status    string                 `json:"status"`
	Medicines []PrescriptionMedicine `json:"medicines,omitempty"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// Login authenticates and stores the returned token, rearming the
// unauthorized hook for the new session.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &resp); err != nil {
		return err
	}

	c.tokens.Set(resp.Token)
	c.mu.Lock()
	c.evicted = false
	c.mu.Unlock()

	return nil
}

// GetPrescription fetches one prescription with its line items.
func (c *Client) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	var p Prescription
	if err := c.do(ctx, http.MethodGet, "/prescriptions/"+id.String(), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPharmacies asks which pharmacies near the point can fill the
// prescription.
func (c *Client) FindPharmacies(ctx context.Context, prescriptionID uuid.UUID, at Coordinates, radiusKm float64) ([]Pharmacy, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(at.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(at.Longitude, 'f', -1, 64))
	if radiusKm > 0 {
		q.Set("radius", strconv.FormatFloat(radiusKm, 'f', -1, 64))
	}

	path := "/prescriptions/" + prescriptionID.String() + "/find-pharmacies?" + q.Encode()

	var pharmacies []Pharmacy
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &pharmacies); err != nil {
		return nil, err
	}
	return pharmacies, nil
}

// PlaceOrderRequest sends a prescription to a pharmacy. Items may be empty,
// in which case the service derives them from the prescription.
type PlaceOrderRequest struct {
	PrescriptionID uuid.UUID   `json:"prescription_id"`
	PharmacyID     uuid.UUID   `json:"pharmacy_id"`
	OrderItems     []OrderItem `json:"order_items,omitempty"`
}

func (c *Client) PlaceOrder(ctx context.Context, req PlaceOrderRequest, idempotencyKey string) (*Order, error) {
	headers := http.Header{}
	if idempotencyKey != "" {
		headers.Set("Idempotency-Key", idempotencyKey)
	}

	var o Order
	if err := c.do(ctx, http.MethodPost, "/orders", headers, req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) ConfirmOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	if err := c.do(ctx, http.MethodPost, "/orders/"+id.String()+"/confirm", nil, nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) CancelOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	if err := c.do(ctx, http.MethodPost, "/orders/"+id.String()+"/cancel", nil, nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+id.String(), nil, nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	var orders []Order
	if err := c.do(ctx, http.MethodGet, "/orders", nil, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) do(ctx context.Context, method, path string, headers http.Header, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.handleUnauthorized()
	}

	if resp.StatusCode >= 400 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		return &APIError{Status: resp.StatusCode, Code: eb.Error, Details: eb.Details}
	}

	if out == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Data != nil {
		return json.Unmarshal(env.Data, out)
	}
	return json.Unmarshal(raw, out)
}

// handleUnauthorized clears the stored token and fires the hook exactly
// once, however many concurrent calls observed the 401.
func (c *Client) handleUnauthorized() {
	c.mu.Lock()
	already := c.evicted
	c.evicted = true
	c.mu.Unlock()

	if already {
		return
	}

	c.tokens.Clear()
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}
