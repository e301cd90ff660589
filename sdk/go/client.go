package elishasdk

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
)

// Client is a minimal Elisha HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// ServiceOrder represents the API service order model (partial).
type ServiceOrder struct {
	ID          string `json:"id"`
	Titulo      string `json:"titulo"`
	TipoServico string `json:"tipo_servico"`
	Status      string `json:"status"`
	Prioridade  string `json:"prioridade"`
	ConcludedAt string `json:"concluded_at,omitempty"`
}

// Template represents a checklist template (partial).
type Template struct {
	ID          string `json:"id"`
	Nome        string `json:"nome"`
	TipoServico string `json:"tipo_servico"`
	Versao      int    `json:"versao"`
	Ativo       bool   `json:"ativo"`
}

// Checklist represents a snapshot bound to a service order.
type Checklist struct {
	ID          string  `json:"id"`
	OSID        string  `json:"os_id"`
	StartedAt   string  `json:"started_at"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// Resposta represents one checklist answer.
type Resposta struct {
	ID            string   `json:"id"`
	OSID          string   `json:"os_id"`
	ItemOrdem     int      `json:"item_ordem"`
	Descricao     string   `json:"descricao"`
	StatusItem    string   `json:"status_item"`
	FotosURLs     []string `json:"fotos_urls"`
	AssinaturaURL *string  `json:"assinatura_url,omitempty"`
}

// Score is the weighted compliance score for a checklist.
type Score struct {
	Score             int `json:"score"`
	CriticosPendentes int `json:"criticos_pendentes"`
	Pendencias        int `json:"pendencias"`
	Total             int `json:"total"`
	PesoTotal         int `json:"peso_total"`
	PesoConforme      int `json:"peso_conforme"`
}

// Validation is the completion gate for a checklist.
type Validation struct {
	PodeConcluir    bool     `json:"pode_concluir"`
	MotivosBloqueio []string `json:"motivos_bloqueio"`
	Avisos          []string `json:"avisos"`
}

// ChecklistView bundles the checklist with its answers and derived state.
type ChecklistView struct {
	Checklist  Checklist  `json:"checklist"`
	Respostas  []Resposta `json:"respostas"`
	Score      Score      `json:"score"`
	Validation Validation `json:"validation"`
}

// Event represents an audit log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// RespostaUpdate carries a partial response update. Nil fields are left
// untouched by the server.
type RespostaUpdate struct {
	StatusItem    *string   `json:"status_item,omitempty"`
	ValorBoolean  *bool     `json:"valor_boolean,omitempty"`
	ValorText     *string   `json:"valor_text,omitempty"`
	ValorNumber   *float64  `json:"valor_number,omitempty"`
	Observacoes   *string   `json:"observacoes,omitempty"`
	FotosURLs     *[]string `json:"fotos_urls,omitempty"`
	AssinaturaURL *string   `json:"assinatura_url,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateOrder creates a service order.
func (c *Client) CreateOrder(ctx context.Context, titulo, tipoServico string) (ServiceOrder, error) {
	body := map[string]any{"titulo": titulo}
	if tipoServico != "" {
		body["tipo_servico"] = tipoServico
	}
	var resp ServiceOrder
	err := c.do(ctx, http.MethodPost, "v0/orders", body, &resp)
	return resp, err
}

// GetOrder fetches a service order by id.
func (c *Client) GetOrder(ctx context.Context, id string) (ServiceOrder, error) {
	var resp ServiceOrder
	err := c.do(ctx, http.MethodGet, "v0/orders/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListOrders lists service orders, optionally filtered by status.
func (c *Client) ListOrders(ctx context.Context, status string) ([]ServiceOrder, error) {
	endpoint := "v0/orders"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []ServiceOrder
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// SetOrderStatus transitions a service order to a new status.
func (c *Client) SetOrderStatus(ctx context.Context, id, status string) (ServiceOrder, error) {
	var resp ServiceOrder
	endpoint := fmt.Sprintf("v0/orders/%s/status", url.PathEscape(id))
	err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// ConcludeOrder concludes a service order. The server rejects the call with
// 422 while the checklist still has blocking items.
func (c *Client) ConcludeOrder(ctx context.Context, id string) (ServiceOrder, error) {
	var resp ServiceOrder
	endpoint := fmt.Sprintf("v0/orders/%s/conclude", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// StartChecklist starts (or fetches) the checklist for a service order.
// templateID and responsavelID may be empty.
func (c *Client) StartChecklist(ctx context.Context, osID, templateID, responsavelID string) (Checklist, error) {
	body := map[string]any{}
	if templateID != "" {
		body["checklist_id"] = templateID
	}
	if responsavelID != "" {
		body["responsavel_id"] = responsavelID
	}
	var resp Checklist
	endpoint := fmt.Sprintf("v0/orders/%s/start-checklist", url.PathEscape(osID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// GetChecklist returns the checklist with responses, score, and the
// completion gate.
func (c *Client) GetChecklist(ctx context.Context, osID string) (ChecklistView, error) {
	var resp ChecklistView
	endpoint := fmt.Sprintf("v0/orders/%s/checklist", url.PathEscape(osID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// UpdateResposta applies a partial update to one checklist response.
func (c *Client) UpdateResposta(ctx context.Context, respostaID string, update RespostaUpdate) (Resposta, error) {
	var resp Resposta
	endpoint := "v0/respostas/" + url.PathEscape(respostaID)
	err := c.do(ctx, http.MethodPatch, endpoint, update, &resp)
	return resp, err
}

// ListTemplates lists checklist templates. Pass ativo=true to only see
// active ones.
func (c *Client) ListTemplates(ctx context.Context, ativo bool) ([]Template, error) {
	endpoint := "v0/templates"
	if ativo {
		endpoint += "?ativo=true"
	}
	var resp []Template
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent audit events, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
