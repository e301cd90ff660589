package domain

// Statuses a checklist response item can be in.
const (
	StatusPendente    = "pendente"
	StatusConforme    = "conforme"
	StatusNaoConforme = "nao_conforme"
	StatusNA          = "na"
)

// Item kinds supported by templates.
const (
	TipoBoolean   = "boolean"
	TipoText      = "text"
	TipoNumber    = "number"
	TipoPhoto     = "photo"
	TipoSignature = "signature"
	TipoLeitura   = "leitura"
)

// Service order statuses.
const (
	OSNovo                 = "novo"
	OSEmAndamento          = "em_andamento"
	OSAguardandoAssinatura = "aguardando_assinatura"
	OSParado               = "parado"
	OSConcluido            = "concluido"
	OSCancelado            = "cancelado"
)

// Leitura is a reading sub-field an item may require as evidence.
type Leitura struct {
	Campo              string      `json:"campo"`
	Unidade            string      `json:"unidade"`
	IntervaloPermitido *[2]float64 `json:"intervalo_permitido,omitempty"`
}

// Evidencias declares the evidence an item requires.
type Evidencias struct {
	FotosMin int       `json:"fotos_min,omitempty"`
	Leituras []Leitura `json:"leituras,omitempty"`
}

// Regras carries the generic rule expressions the data model reserves for a
// future declarative engine. They are stored and round-tripped but not
// evaluated; the completion gate is the fixed rule set in the engine.
type Regras struct {
	VisivelSe           *string `json:"visivel_se,omitempty"`
	AlertaSe            *string `json:"alerta_se,omitempty"`
	BloqueiaConclusaoSe *string `json:"bloqueia_conclusao_se,omitempty"`
}

// TemplateItem is one line of a checklist template. Ordem is 1-based and
// unique within a template; when zero, callers resolve it to list index+1.
type TemplateItem struct {
	Ordem       int         `json:"ordem,omitempty"`
	Secao       string      `json:"secao"`
	Descricao   string      `json:"descricao"`
	Tipo        string      `json:"tipo" enum:"boolean,text,number,photo,signature,leitura"`
	Obrigatorio bool        `json:"obrigatorio"`
	Critico     bool        `json:"critico"`
	Regras      *Regras     `json:"regras,omitempty"`
	Evidencias  *Evidencias `json:"evidencias,omitempty"`
}

// Template is the editable, versioned checklist definition.
type Template struct {
	ID          string         `json:"id"`
	EmpresaID   string         `json:"empresa_id"`
	Nome        string         `json:"nome"`
	TipoServico string         `json:"tipo_servico"`
	Itens       []TemplateItem `json:"itens"`
	Versao      int            `json:"versao"`
	Origem      string         `json:"origem,omitempty"`
	Ativo       bool           `json:"ativo"`
	CreatedAt   string         `json:"created_at" format:"date-time"`
	UpdatedAt   string         `json:"updated_at" format:"date-time"`
}

// TemplateSnapshot is the frozen copy of a template taken when work starts.
// Stored as an opaque JSON value and never re-derived from the live template.
type TemplateSnapshot struct {
	ID          string         `json:"id"`
	Nome        string         `json:"nome"`
	TipoServico string         `json:"tipo_servico"`
	Versao      int            `json:"versao"`
	Itens       []TemplateItem `json:"itens"`
}

// OSChecklist binds one service order to one immutable template snapshot.
type OSChecklist struct {
	ID               string           `json:"id"`
	OSID             string           `json:"os_id"`
	ChecklistID      *string          `json:"checklist_id,omitempty"`
	TemplateSnapshot TemplateSnapshot `json:"template_snapshot"`
	StartedAt        string           `json:"started_at" format:"date-time"`
	CompletedAt      *string          `json:"completed_at,omitempty" format:"date-time"`
	ResponsavelID    *string          `json:"responsavel_id,omitempty"`
	EmpresaID        string           `json:"empresa_id"`
	CreatedAt        string           `json:"created_at" format:"date-time"`
	UpdatedAt        string           `json:"updated_at" format:"date-time"`
}

// Resposta is the recorded answer for one snapshot item. Exactly one exists
// per (os_checklist_id, item_ordem) pair, seeded as pendente.
type Resposta struct {
	ID            string   `json:"id"`
	OSChecklistID *string  `json:"os_checklist_id,omitempty"`
	OSID          string   `json:"os_id"`
	ItemOrdem     int      `json:"item_ordem"`
	Descricao     string   `json:"descricao"`
	StatusItem    string   `json:"status_item" enum:"pendente,conforme,nao_conforme,na"`
	ValorBoolean  *bool    `json:"valor_boolean,omitempty"`
	ValorText     *string  `json:"valor_text,omitempty"`
	ValorNumber   *float64 `json:"valor_number,omitempty"`
	Observacoes   *string  `json:"observacoes,omitempty"`
	FotosURLs     []string `json:"fotos_urls"`
	AssinaturaURL *string  `json:"assinatura_url,omitempty"`
	RespondidoPor *string  `json:"respondido_por,omitempty"`
	RespondidoEm  *string  `json:"respondido_em,omitempty" format:"date-time"`
	CreatedAt     string   `json:"created_at" format:"date-time"`
	UpdatedAt     string   `json:"updated_at" format:"date-time"`
}

// ServiceOrder is a maintenance service order (OS).
type ServiceOrder struct {
	ID            string  `json:"id"`
	EmpresaID     string  `json:"empresa_id"`
	Titulo        string  `json:"titulo"`
	Descricao     string  `json:"descricao,omitempty"`
	TipoServico   string  `json:"tipo_servico"`
	Status        string  `json:"status" enum:"novo,em_andamento,aguardando_assinatura,parado,concluido,cancelado"`
	Prioridade    string  `json:"prioridade" enum:"alta,media,baixa"`
	EquipamentoID *string `json:"equipamento_id,omitempty"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	UpdatedAt     string  `json:"updated_at" format:"date-time"`
	ConcludedAt   *string `json:"concluded_at,omitempty" format:"date-time"`
}

// StatusBreakdown counts responses by status.
type StatusBreakdown struct {
	Pendente    int `json:"pendente"`
	Conforme    int `json:"conforme"`
	NaoConforme int `json:"nao_conforme"`
	NA          int `json:"na"`
}

// ComplianceScore is the derived weighted score for a snapshot. Recomputed on
// demand, never persisted.
type ComplianceScore struct {
	Score             int             `json:"score"`
	CriticosPendentes int             `json:"criticos_pendentes"`
	Pendencias        int             `json:"pendencias"`
	Total             int             `json:"total"`
	ItemsPorStatus    StatusBreakdown `json:"items_por_status"`
	PesoTotal         int             `json:"peso_total"`
	PesoConforme      int             `json:"peso_conforme"`
}

// ChecklistValidation is the derived completion verdict for a snapshot.
type ChecklistValidation struct {
	PodeConcluir    bool     `json:"pode_concluir"`
	MotivosBloqueio []string `json:"motivos_bloqueio"`
	Avisos          []string `json:"avisos"`
}

// APIKey authenticates an actor on the HTTP API.
type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Event is one row of the append-only audit log.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EmpresaID  string `json:"empresa_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
