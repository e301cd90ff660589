package server

import (
	"encoding/json"

	"github.com/elishasistemas/elisha-sub002/internal/domain"
	"github.com/elishasistemas/elisha-sub002/internal/engine"
)

// Request payloads

type CreateTemplateRequest struct {
	ID          *string               `json:"id,omitempty"`
	Nome        string                `json:"nome"`
	TipoServico string                `json:"tipo_servico" enum:"preventiva,corretiva,emergencial,chamado,todos"`
	Itens       []domain.TemplateItem `json:"itens"`
	Origem      *string               `json:"origem,omitempty"`
}

type UpdateTemplateRequest struct {
	Nome  *string                `json:"nome,omitempty"`
	Itens *[]domain.TemplateItem `json:"itens,omitempty"`
	Ativo *bool                  `json:"ativo,omitempty"`
}

type CreateOrderRequest struct {
	ID            *string `json:"id,omitempty"`
	Titulo        string  `json:"titulo"`
	Descricao     *string `json:"descricao,omitempty"`
	TipoServico   *string `json:"tipo_servico,omitempty" enum:"preventiva,corretiva,emergencial,chamado"`
	Prioridade    *string `json:"prioridade,omitempty" enum:"alta,media,baixa"`
	EquipamentoID *string `json:"equipamento_id,omitempty"`
}

type SetOrderStatusRequest struct {
	Status string `json:"status" enum:"novo,em_andamento,aguardando_assinatura,parado,cancelado"`
}

type StartChecklistRequest struct {
	ChecklistID   *string `json:"checklist_id,omitempty"`
	ResponsavelID *string `json:"responsavel_id,omitempty"`
}

type UpdateRespostaRequest struct {
	StatusItem    *string   `json:"status_item,omitempty" enum:"pendente,conforme,nao_conforme,na"`
	ValorBoolean  *bool     `json:"valor_boolean,omitempty"`
	ValorText     *string   `json:"valor_text,omitempty"`
	ValorNumber   *float64  `json:"valor_number,omitempty"`
	Observacoes   *string   `json:"observacoes,omitempty"`
	FotosURLs     *[]string `json:"fotos_urls,omitempty"`
	AssinaturaURL *string   `json:"assinatura_url,omitempty"`
}

// Response payloads

type ChecklistResponse struct {
	Checklist  domain.OSChecklist         `json:"checklist"`
	Respostas  []domain.Resposta          `json:"respostas"`
	Score      domain.ComplianceScore     `json:"score"`
	Validation domain.ChecklistValidation `json:"validation"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EmpresaID  string         `json:"empresa_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

func checklistResponse(view engine.ChecklistView) ChecklistResponse {
	respostas := view.Respostas
	if respostas == nil {
		respostas = []domain.Resposta{}
	}
	return ChecklistResponse{
		Checklist:  view.Checklist,
		Respostas:  respostas,
		Score:      view.Score,
		Validation: view.Validation,
	}
}

func eventResponse(ev domain.Event) EventResponse {
	var payload map[string]any
	if ev.Payload != "" {
		_ = json.Unmarshal([]byte(ev.Payload), &payload)
	}
	return EventResponse{
		ID:         ev.ID,
		TS:         ev.TS,
		Type:       ev.Type,
		EmpresaID:  ev.EmpresaID,
		EntityKind: ev.EntityKind,
		EntityID:   ev.EntityID,
		ActorID:    ev.ActorID,
		Payload:    payload,
	}
}

func mapEvents(in []domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(in))
	for _, ev := range in {
		out = append(out, eventResponse(ev))
	}
	return out
}

func stringOrEmpty(in *string) string {
	if in == nil {
		return ""
	}
	return *in
}
