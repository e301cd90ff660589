package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/elishasistemas/elisha-sub002/internal/config"
	"github.com/elishasistemas/elisha-sub002/internal/domain"
	"github.com/elishasistemas/elisha-sub002/internal/events"
	"github.com/elishasistemas/elisha-sub002/internal/repo"
)

var (
	ErrTemplateNotFound    = errors.New("template not found or inactive")
	ErrChecklistNotStarted = errors.New("no checklist started for this service order")
)

// ChecklistBlockedError reports why an order cannot be concluded. Motivos are
// the user-facing blocking reasons from the completion validation.
type ChecklistBlockedError struct {
	Motivos []string
}

func (e *ChecklistBlockedError) Error() string {
	return "checklist blocks conclusion: " + strings.Join(e.Motivos, "; ")
}

var validStatusItem = map[string]bool{
	domain.StatusPendente:    true,
	domain.StatusConforme:    true,
	domain.StatusNaoConforme: true,
	domain.StatusNA:          true,
}

var validPrioridade = map[string]bool{
	"alta":  true,
	"media": true,
	"baixa": true,
}

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) empresaID() string {
	if e.Config == nil {
		return ""
	}
	return e.Config.Empresa.ID
}

// OrderCreateOptions are parameters for creating a service order.
type OrderCreateOptions struct {
	ID            string
	Titulo        string
	Descricao     string
	TipoServico   string
	Prioridade    string
	EquipamentoID string
	ActorID       string
}

func (e Engine) CreateOrder(ctx context.Context, opts OrderCreateOptions) (domain.ServiceOrder, error) {
	if e.Config == nil {
		return domain.ServiceOrder{}, errors.New("config not loaded")
	}
	if opts.Titulo == "" {
		return domain.ServiceOrder{}, errors.New("titulo is required")
	}
	if opts.TipoServico == "" {
		opts.TipoServico = e.Config.Defaults.TipoServico
	}
	if opts.TipoServico == "" {
		return domain.ServiceOrder{}, errors.New("tipo_servico is required")
	}
	if opts.Prioridade == "" {
		opts.Prioridade = "media"
	}
	if !validPrioridade[opts.Prioridade] {
		return domain.ServiceOrder{}, fmt.Errorf("prioridade %q is not one of alta, media, baixa", opts.Prioridade)
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := e.now().UTC().Format(time.RFC3339)
	o := domain.ServiceOrder{
		ID:            id,
		EmpresaID:     e.empresaID(),
		Titulo:        opts.Titulo,
		Descricao:     opts.Descricao,
		TipoServico:   opts.TipoServico,
		Status:        domain.OSNovo,
		Prioridade:    opts.Prioridade,
		EquipamentoID: optionalString(opts.EquipamentoID),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ServiceOrder{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureEmpresa(ctx, tx, o.EmpresaID, e.Config.Empresa.Nome, now); err != nil {
		return domain.ServiceOrder{}, err
	}
	if err := e.Repo.InsertOrderTx(ctx, tx, o); err != nil {
		return domain.ServiceOrder{}, err
	}
	if err := e.Events.Append(ctx, tx, "os.created", o.EmpresaID, "os", o.ID, opts.ActorID, events.EventPayload{
		"titulo":       o.Titulo,
		"tipo_servico": o.TipoServico,
		"prioridade":   o.Prioridade,
	}); err != nil {
		return domain.ServiceOrder{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ServiceOrder{}, err
	}
	return o, nil
}

func ensureOrderTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case domain.OSNovo:
		if newStatus == domain.OSEmAndamento || newStatus == domain.OSCancelado {
			return nil
		}
	case domain.OSEmAndamento:
		if newStatus == domain.OSParado || newStatus == domain.OSAguardandoAssinatura || newStatus == domain.OSCancelado {
			return nil
		}
	case domain.OSParado:
		if newStatus == domain.OSEmAndamento || newStatus == domain.OSCancelado {
			return nil
		}
	case domain.OSAguardandoAssinatura:
		if newStatus == domain.OSEmAndamento {
			return nil
		}
	}
	return fmt.Errorf("invalid service order status transition %s -> %s", oldStatus, newStatus)
}

// SetOrderStatus applies a manual status transition. Conclusion is not
// reachable here; it goes through ConcludeOrder so the checklist gate always
// runs.
func (e Engine) SetOrderStatus(ctx context.Context, id, status, actorID string) (domain.ServiceOrder, error) {
	if status == domain.OSConcluido {
		return domain.ServiceOrder{}, errors.New("use conclude to close a service order")
	}
	o, err := e.Repo.GetOrder(ctx, id)
	if err != nil {
		return o, err
	}
	if err := ensureOrderTransition(o.Status, status); err != nil {
		return o, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return o, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateOrderStatusTx(ctx, tx, id, status, now, nil); err != nil {
		return o, err
	}
	if err := e.Events.Append(ctx, tx, "os.updated", o.EmpresaID, "os", o.ID, actorID, events.EventPayload{
		"from_status": o.Status,
		"to_status":   status,
	}); err != nil {
		return o, err
	}
	if err := tx.Commit(); err != nil {
		return o, err
	}
	o.Status = status
	o.UpdatedAt = now
	return o, nil
}

// StartChecklistOptions are parameters for starting an order's checklist.
// ChecklistID may be empty; the active template matching the order's
// tipo_servico is used then.
type StartChecklistOptions struct {
	OSID          string
	ChecklistID   string
	ResponsavelID string
	ActorID       string
}

// StartChecklist freezes the template into a snapshot bound to the order and
// seeds one pendente response per item, all in one transaction. Calling it
// again for the same order returns the existing snapshot unchanged.
func (e Engine) StartChecklist(ctx context.Context, opts StartChecklistOptions) (domain.OSChecklist, error) {
	existing, err := e.Repo.FindSnapshotByOSID(ctx, opts.OSID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.OSChecklist{}, err
	}

	o, err := e.Repo.GetOrder(ctx, opts.OSID)
	if err != nil {
		return domain.OSChecklist{}, err
	}
	tpl, err := e.resolveTemplate(ctx, opts.ChecklistID, o)
	if err != nil {
		return domain.OSChecklist{}, err
	}

	now := e.now().UTC().Format(time.RFC3339)
	s := domain.OSChecklist{
		ID:          uuid.New().String(),
		OSID:        o.ID,
		ChecklistID: &tpl.ID,
		TemplateSnapshot: domain.TemplateSnapshot{
			ID:          tpl.ID,
			Nome:        tpl.Nome,
			TipoServico: tpl.TipoServico,
			Versao:      tpl.Versao,
			Itens:       tpl.Itens,
		},
		StartedAt:     now,
		ResponsavelID: optionalString(opts.ResponsavelID),
		EmpresaID:     tpl.EmpresaID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	respostas := seedRespostas(s, now)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.OSChecklist{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertSnapshotTx(ctx, tx, s); err != nil {
		if repo.IsUniqueViolation(err) {
			// Lost the race with a concurrent start; the winner's snapshot is
			// the one true snapshot for this order.
			tx.Rollback()
			return e.Repo.FindSnapshotByOSID(ctx, opts.OSID)
		}
		return domain.OSChecklist{}, err
	}
	if err := e.Repo.InsertRespostasTx(ctx, tx, respostas); err != nil {
		return domain.OSChecklist{}, err
	}
	if o.Status == domain.OSNovo {
		if err := e.Repo.UpdateOrderStatusTx(ctx, tx, o.ID, domain.OSEmAndamento, now, nil); err != nil {
			return domain.OSChecklist{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "checklist.started", s.EmpresaID, "os_checklist", s.ID, opts.ActorID, events.EventPayload{
		"os_id":        o.ID,
		"checklist_id": tpl.ID,
		"versao":       tpl.Versao,
		"itens":        len(tpl.Itens),
	}); err != nil {
		return domain.OSChecklist{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.OSChecklist{}, err
	}
	return s, nil
}

func (e Engine) resolveTemplate(ctx context.Context, checklistID string, o domain.ServiceOrder) (domain.Template, error) {
	if checklistID != "" {
		tpl, err := e.Repo.GetActiveTemplate(ctx, checklistID)
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Template{}, ErrTemplateNotFound
		}
		return tpl, err
	}
	tpls, err := e.Repo.ListTemplates(ctx, o.EmpresaID, true)
	if err != nil {
		return domain.Template{}, err
	}
	for _, tpl := range tpls {
		if tpl.TipoServico == o.TipoServico || tpl.TipoServico == "todos" {
			return tpl, nil
		}
	}
	return domain.Template{}, ErrTemplateNotFound
}

func seedRespostas(s domain.OSChecklist, now string) []domain.Resposta {
	respostas := make([]domain.Resposta, 0, len(s.TemplateSnapshot.Itens))
	for i, item := range s.TemplateSnapshot.Itens {
		descricao := item.Descricao
		if descricao == "" {
			descricao = fmt.Sprintf("Item %d", i+1)
		}
		respostas = append(respostas, domain.Resposta{
			ID:            uuid.New().String(),
			OSChecklistID: &s.ID,
			OSID:          s.OSID,
			ItemOrdem:     resolveOrdem(item, i),
			Descricao:     descricao,
			StatusItem:    domain.StatusPendente,
			FotosURLs:     []string{},
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return respostas
}

// ChecklistView is the combined read model for an order's checklist.
type ChecklistView struct {
	Checklist  domain.OSChecklist
	Respostas  []domain.Resposta
	Score      domain.ComplianceScore
	Validation domain.ChecklistValidation
}

func (e Engine) GetChecklist(ctx context.Context, osID string) (ChecklistView, error) {
	s, err := e.Repo.FindSnapshotByOSID(ctx, osID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ChecklistView{}, ErrChecklistNotStarted
		}
		return ChecklistView{}, err
	}
	respostas, err := e.Repo.ListRespostasBySnapshot(ctx, s.ID)
	if err != nil {
		return ChecklistView{}, err
	}
	return ChecklistView{
		Checklist:  s,
		Respostas:  respostas,
		Score:      ComputeComplianceScore(s.TemplateSnapshot, respostas),
		Validation: ValidateChecklistCompletion(s.TemplateSnapshot, respostas),
	}, nil
}

// RespostaUpdateOptions carry the partial update for one response. Nil fields
// keep the stored value.
type RespostaUpdateOptions struct {
	ID            string
	StatusItem    *string
	ValorBoolean  *bool
	ValorText     *string
	ValorNumber   *float64
	Observacoes   *string
	FotosURLs     *[]string
	AssinaturaURL *string
	ActorID       string
}

func (e Engine) UpdateResposta(ctx context.Context, opts RespostaUpdateOptions) (domain.Resposta, error) {
	if opts.StatusItem != nil && !validStatusItem[*opts.StatusItem] {
		return domain.Resposta{}, fmt.Errorf("status_item %q is not one of pendente, conforme, nao_conforme, na", *opts.StatusItem)
	}
	r, err := e.Repo.GetResposta(ctx, opts.ID)
	if err != nil {
		return r, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	u := repo.RespostaUpdate{
		StatusItem:    opts.StatusItem,
		ValorBoolean:  opts.ValorBoolean,
		ValorText:     opts.ValorText,
		ValorNumber:   opts.ValorNumber,
		Observacoes:   opts.Observacoes,
		FotosURLs:     opts.FotosURLs,
		AssinaturaURL: opts.AssinaturaURL,
	}
	if opts.StatusItem != nil && *opts.StatusItem != domain.StatusPendente {
		actor := opts.ActorID
		u.RespondidoPor = &actor
		u.RespondidoEm = &now
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return r, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateRespostaTx(ctx, tx, r.ID, u, now); err != nil {
		return r, err
	}
	payload := events.EventPayload{"os_id": r.OSID, "item_ordem": r.ItemOrdem}
	if opts.StatusItem != nil {
		payload["status_item"] = *opts.StatusItem
	}
	if err := e.Events.Append(ctx, tx, "resposta.updated", e.empresaID(), "resposta", r.ID, opts.ActorID, payload); err != nil {
		return r, err
	}
	if err := tx.Commit(); err != nil {
		return r, err
	}
	return e.Repo.GetResposta(ctx, r.ID)
}

// ConcludeOrder closes a service order after the checklist gate passes. A
// blocked checklist returns *ChecklistBlockedError with the motivos intact.
func (e Engine) ConcludeOrder(ctx context.Context, osID, actorID string) (domain.ServiceOrder, error) {
	o, err := e.Repo.GetOrder(ctx, osID)
	if err != nil {
		return o, err
	}
	if o.Status == domain.OSConcluido {
		return o, nil
	}
	if o.Status == domain.OSCancelado {
		return o, errors.New("service order is canceled")
	}
	view, err := e.GetChecklist(ctx, osID)
	if err != nil {
		return o, err
	}
	if !view.Validation.PodeConcluir {
		return o, &ChecklistBlockedError{Motivos: view.Validation.MotivosBloqueio}
	}

	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return o, err
	}
	defer tx.Rollback()
	if err := e.Repo.SetSnapshotCompletedTx(ctx, tx, view.Checklist.ID, now, now); err != nil {
		return o, err
	}
	if err := e.Repo.UpdateOrderStatusTx(ctx, tx, o.ID, domain.OSConcluido, now, &now); err != nil {
		return o, err
	}
	if err := e.Events.Append(ctx, tx, "os.concluded", o.EmpresaID, "os", o.ID, actorID, events.EventPayload{
		"score":      view.Score.Score,
		"pendencias": view.Score.Pendencias,
	}); err != nil {
		return o, err
	}
	if err := tx.Commit(); err != nil {
		return o, err
	}
	o.Status = domain.OSConcluido
	o.UpdatedAt = now
	o.ConcludedAt = &now
	return o, nil
}

// TemplateImportOptions are parameters for importing a checklist template.
type TemplateImportOptions struct {
	ID          string
	Nome        string
	TipoServico string
	Itens       []domain.TemplateItem
	Origem      string
	ActorID     string
}

func (e Engine) ImportTemplate(ctx context.Context, opts TemplateImportOptions) (domain.Template, error) {
	if e.Config == nil {
		return domain.Template{}, errors.New("config not loaded")
	}
	if opts.Nome == "" {
		return domain.Template{}, errors.New("nome is required")
	}
	if opts.TipoServico == "" {
		return domain.Template{}, errors.New("tipo_servico is required")
	}
	if err := validateItens(opts.Itens); err != nil {
		return domain.Template{}, err
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := e.now().UTC().Format(time.RFC3339)
	t := domain.Template{
		ID:          id,
		EmpresaID:   e.empresaID(),
		Nome:        opts.Nome,
		TipoServico: opts.TipoServico,
		Itens:       opts.Itens,
		Versao:      1,
		Origem:      opts.Origem,
		Ativo:       true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if err := e.Repo.EnsureEmpresa(ctx, tx, t.EmpresaID, e.Config.Empresa.Nome, now); err != nil {
		return t, err
	}
	if err := e.Repo.InsertTemplateTx(ctx, tx, t); err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, "template.imported", t.EmpresaID, "checklist", t.ID, opts.ActorID, events.EventPayload{
		"nome":   t.Nome,
		"versao": t.Versao,
		"itens":  len(t.Itens),
	}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return t, nil
}

// TemplateUpdateOptions carry the partial update for a template. Changing
// Itens bumps versao; snapshots taken earlier are never touched.
type TemplateUpdateOptions struct {
	ID      string
	Nome    *string
	Itens   *[]domain.TemplateItem
	Ativo   *bool
	ActorID string
}

func (e Engine) UpdateTemplate(ctx context.Context, opts TemplateUpdateOptions) (domain.Template, error) {
	t, err := e.Repo.GetTemplate(ctx, opts.ID)
	if err != nil {
		return t, err
	}
	if opts.Nome != nil {
		if *opts.Nome == "" {
			return t, errors.New("nome cannot be empty")
		}
		t.Nome = *opts.Nome
	}
	if opts.Itens != nil {
		if err := validateItens(*opts.Itens); err != nil {
			return t, err
		}
		t.Itens = *opts.Itens
		t.Versao++
	}
	if opts.Ativo != nil {
		t.Ativo = *opts.Ativo
	}
	t.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTemplateTx(ctx, tx, t); err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, "template.updated", t.EmpresaID, "checklist", t.ID, opts.ActorID, events.EventPayload{
		"versao": t.Versao,
		"ativo":  t.Ativo,
	}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return t, nil
}

func validateItens(itens []domain.TemplateItem) error {
	if len(itens) == 0 {
		return errors.New("template needs at least one item")
	}
	seen := map[int]bool{}
	for i, item := range itens {
		if item.Descricao == "" {
			return fmt.Errorf("item %d: descricao is required", i+1)
		}
		if !validTipoItem(item.Tipo) {
			return fmt.Errorf("item %q: unknown tipo %q", item.Descricao, item.Tipo)
		}
		ordem := resolveOrdem(item, i)
		if seen[ordem] {
			return fmt.Errorf("duplicate item ordem %d", ordem)
		}
		seen[ordem] = true
	}
	return nil
}

func validTipoItem(tipo string) bool {
	switch tipo {
	case domain.TipoBoolean, domain.TipoText, domain.TipoNumber,
		domain.TipoPhoto, domain.TipoSignature, domain.TipoLeitura:
		return true
	}
	return false
}

// SeedCatalog imports every config catalog template whose nome is not already
// present. Returns the number of templates imported.
func (e Engine) SeedCatalog(ctx context.Context, actorID string) (int, error) {
	if e.Config == nil {
		return 0, errors.New("config not loaded")
	}
	existing, err := e.Repo.ListTemplates(ctx, e.empresaID(), false)
	if err != nil {
		return 0, err
	}
	byNome := map[string]bool{}
	for _, t := range existing {
		byNome[t.Nome] = true
	}
	seeded := 0
	for _, tpl := range e.Config.Catalog {
		if byNome[tpl.Nome] {
			continue
		}
		origem := tpl.Origem
		if origem == "" {
			origem = "seed"
		}
		if _, err := e.ImportTemplate(ctx, TemplateImportOptions{
			Nome:        tpl.Nome,
			TipoServico: tpl.TipoServico,
			Itens:       tpl.Items(),
			Origem:      origem,
			ActorID:     actorID,
		}); err != nil {
			return seeded, fmt.Errorf("seed %s: %w", tpl.Nome, err)
		}
		seeded++
	}
	return seeded, nil
}

// MetricsSnapshot is a point-in-time operational summary.
type MetricsSnapshot struct {
	GeneratedAt        string         `json:"generated_at" format:"date-time"`
	OrdensPorStatus    map[string]int `json:"ordens_por_status"`
	OrdensCriadas7d    int            `json:"ordens_criadas_7d"`
	OrdensConcluidas7d int            `json:"ordens_concluidas_7d"`
	TemplatesAtivos    int            `json:"templates_ativos"`
}

func (e Engine) Metrics(ctx context.Context) (MetricsSnapshot, error) {
	empresaID := e.empresaID()
	byStatus, err := e.Repo.CountOrdersByStatus(ctx, empresaID)
	if err != nil {
		return MetricsSnapshot{}, err
	}
	since := e.now().UTC().AddDate(0, 0, -7).Format(time.RFC3339)
	created, err := e.Repo.CountOrdersSince(ctx, empresaID, since)
	if err != nil {
		return MetricsSnapshot{}, err
	}
	concluded, err := e.Repo.CountOrdersConcludedSince(ctx, empresaID, since)
	if err != nil {
		return MetricsSnapshot{}, err
	}
	active, err := e.Repo.CountActiveTemplates(ctx, empresaID)
	if err != nil {
		return MetricsSnapshot{}, err
	}
	return MetricsSnapshot{
		GeneratedAt:        e.now().UTC().Format(time.RFC3339),
		OrdensPorStatus:    byStatus,
		OrdensCriadas7d:    created,
		OrdensConcluidas7d: concluded,
		TemplatesAtivos:    active,
	}, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
