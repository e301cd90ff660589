package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/elishasistemas/elisha-sub002/internal/config"
	"github.com/elishasistemas/elisha-sub002/internal/db"
	"github.com/elishasistemas/elisha-sub002/internal/domain"
	"github.com/elishasistemas/elisha-sub002/internal/engine"
	"github.com/elishasistemas/elisha-sub002/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("emp-1")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func importFixtureTemplate(t *testing.T, env testEnv) domain.Template {
	t.Helper()
	tpl, err := env.Engine.ImportTemplate(env.Ctx, engine.TemplateImportOptions{
		Nome:        "Preventiva Elevador",
		TipoServico: "preventiva",
		Itens: []domain.TemplateItem{
			{Ordem: 1, Secao: "Cabine", Descricao: "Iluminação da cabine", Tipo: domain.TipoBoolean, Obrigatorio: true},
			{Ordem: 2, Secao: "Seguranca", Descricao: "Freio de emergência", Tipo: domain.TipoBoolean, Obrigatorio: true, Critico: true},
			{Ordem: 3, Secao: "Encerramento", Descricao: "Assinatura do cliente", Tipo: domain.TipoSignature, Obrigatorio: true},
		},
		ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("import template: %v", err)
	}
	return tpl
}

func createFixtureOrder(t *testing.T, env testEnv) domain.ServiceOrder {
	t.Helper()
	o, err := env.Engine.CreateOrder(env.Ctx, engine.OrderCreateOptions{
		Titulo:      "Manutenção mensal",
		TipoServico: "preventiva",
		ActorID:     "tester",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func TestStartChecklistIdempotent(t *testing.T) {
	env := newTestEnv(t)
	tpl := importFixtureTemplate(t, env)
	o := createFixtureOrder(t, env)

	first, err := env.Engine.StartChecklist(env.Ctx, engine.StartChecklistOptions{OSID: o.ID, ChecklistID: tpl.ID, ActorID: "tester"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	second, err := env.Engine.StartChecklist(env.Ctx, engine.StartChecklistOptions{OSID: o.ID, ChecklistID: tpl.ID, ActorID: "tester"})
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same snapshot, got %s and %s", first.ID, second.ID)
	}
	if second.TemplateSnapshot.Versao != tpl.Versao {
		t.Fatalf("snapshot changed on repeat start")
	}
	respostas, err := env.Engine.Repo.ListRespostasBySnapshot(env.Ctx, first.ID)
	if err != nil {
		t.Fatalf("list respostas: %v", err)
	}
	if len(respostas) != 3 {
		t.Fatalf("expected 3 seeded respostas, got %d", len(respostas))
	}
	for _, r := range respostas {
		if r.StatusItem != domain.StatusPendente {
			t.Fatalf("seeded resposta not pendente: %+v", r)
		}
	}
}

func TestStartChecklistMovesOrderToEmAndamento(t *testing.T) {
	env := newTestEnv(t)
	tpl := importFixtureTemplate(t, env)
	o := createFixtureOrder(t, env)
	if _, err := env.Engine.StartChecklist(env.Ctx, engine.StartChecklistOptions{OSID: o.ID, ChecklistID: tpl.ID, ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	got, err := env.Engine.Repo.GetOrder(env.Ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.OSEmAndamento {
		t.Fatalf("expected em_andamento, got %s", got.Status)
	}
}

func TestStartChecklistTemplateNotFound(t *testing.T) {
	env := newTestEnv(t)
	o := createFixtureOrder(t, env)
	_, err := env.Engine.StartChecklist(env.Ctx, engine.StartChecklistOptions{OSID: o.ID, ChecklistID: "missing", ActorID: "tester"})
	if !errors.Is(err, engine.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestStartChecklistInactiveTemplate(t *testing.T) {
	env := newTestEnv(t)
	tpl := importFixtureTemplate(t, env)
	off := false
	if _, err := env.Engine.UpdateTemplate(env.Ctx, engine.TemplateUpdateOptions{ID: tpl.ID, Ativo: &off, ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	o := createFixtureOrder(t, env)
	_, err := env.Engine.StartChecklist(env.Ctx, engine.StartChecklistOptions{OSID: o.ID, ChecklistID: tpl.ID, ActorID: "tester"})
	if !errors.Is(err, engine.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound for inactive, got %v", err)
	}
}

func TestStartChecklistResolvesByTipoServico(t *testing.T) {
	env := newTestEnv(t)
	tpl := importFixtureTemplate(t, env)
	o := createFixtureOrder(t, env)
	s, err := env.Engine.StartChecklist(env.Ctx, engine.StartChecklistOptions{OSID: o.ID, ActorID: "tester"})
	if err != nil {
		t.Fatalf("start without explicit template: %v", err)
	}
	if s.ChecklistID == nil || *s.ChecklistID != tpl.ID {
		t.Fatalf("expected template %s, got %v", tpl.ID, s.ChecklistID)
	}
}

func TestStartChecklistSeedsDescricaoFallback(t *testing.T) {
	env := newTestEnv(t)
	tpl, err := env.Engine.ImportTemplate(env.Ctx, engine.TemplateImportOptions{
		Nome:        "Sem descricao",
		TipoServico: "corretiva",
		Itens: []domain.TemplateItem{
			{Ordem: 1, Descricao: "Primeiro", Tipo: domain.TipoBoolean},
			{Ordem: 2, Descricao: "Segundo", Tipo: domain.TipoBoolean},
		},
		ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	// blank out a stored descricao to exercise the seeding fallback
	if _, err := env.Engine.DB.ExecContext(env.Ctx,
		`UPDATE checklists SET itens_json=? WHERE id=?`,
		`[{"ordem":1,"descricao":"Primeiro","tipo":"boolean"},{"ordem":2,"descricao":"","tipo":"boolean"}]`, tpl.ID); err != nil {
		t.Fatal(err)
	}
	o, err := env.Engine.CreateOrder(env.Ctx, engine.OrderCreateOptions{Titulo: "x", TipoServico: "corretiva", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	s, err := env.Engine.StartChecklist(env.Ctx, engine.StartChecklistOptions{OSID: o.ID, ChecklistID: tpl.ID, ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	respostas, err := env.Engine.Repo.ListRespostasBySnapshot(env.Ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(respostas) != 2 || respostas[1].Descricao != "Item 2" {
		t.Fatalf("expected fallback descricao Item 2, got %+v", respostas)
	}
}

func TestSnapshotImmutableAfterTemplateUpdate(t *testing.T) {
	env := newTestEnv(t)
	tpl := importFixtureTemplate(t, env)
	o := createFixtureOrder(t, env)
	s, err := env.Engine.StartChecklist(env.Ctx, engine.StartChecklistOptions{OSID: o.ID, ChecklistID: tpl.ID, ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}

	newItens := []domain.TemplateItem{
		{Ordem: 1, Descricao: "Item renomeado", Tipo: domain.TipoText},
	}
	updated, err := env.Engine.UpdateTemplate(env.Ctx, engine.TemplateUpdateOptions{ID: tpl.ID, Itens: &newItens, ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Versao != tpl.Versao+1 {
		t.Fatalf("expected versao bump, got %d", updated.Versao)
	}

	view, err := env.Engine.GetChecklist(env.Ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if view.Checklist.ID != s.ID {
		t.Fatalf("unexpected snapshot")
	}
	if len(view.Checklist.TemplateSnapshot.Itens) != 3 {
		t.Fatalf("snapshot item list changed after template edit: %d items", len(view.Checklist.TemplateSnapshot.Itens))
	}
	if view.Checklist.TemplateSnapshot.Versao != tpl.Versao {
		t.Fatalf("snapshot versao changed after template edit")
	}
}

func TestUpdateRespostaAutoStampsResponder(t *testing.T) {
	env := newTestEnv(t)
	tpl := importFixtureTemplate(t, env)
	o := createFixtureOrder(t, env)
	s, err := env.Engine.StartChecklist(env.Ctx, engine.StartChecklistOptions{OSID: o.ID, ChecklistID: tpl.ID, ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	respostas, err := env.Engine.Repo.ListRespostasBySnapshot(env.Ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	status := domain.StatusConforme
	r, err := env.Engine.UpdateResposta(env.Ctx, engine.RespostaUpdateOptions{
		ID:         respostas[0].ID,
		StatusItem: &status,
		ActorID:    "tecnico-7",
	})
	if err != nil {
		t.Fatalf("update resposta: %v", err)
	}
	if r.StatusItem != domain.StatusConforme {
		t.Fatalf("status not applied: %+v", r)
	}
	if r.RespondidoPor == nil || *r.RespondidoPor != "tecnico-7" {
		t.Fatalf("expected respondido_por stamp, got %+v", r.RespondidoPor)
	}
	if r.RespondidoEm == nil {
		t.Fatalf("expected respondido_em stamp")
	}
}

func TestUpdateRespostaRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	tpl := importFixtureTemplate(t, env)
	o := createFixtureOrder(t, env)
	s, err := env.Engine.StartChecklist(env.Ctx, engine.StartChecklistOptions{OSID: o.ID, ChecklistID: tpl.ID, ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	respostas, _ := env.Engine.Repo.ListRespostasBySnapshot(env.Ctx, s.ID)
	bad := "aprovado"
	if _, err := env.Engine.UpdateResposta(env.Ctx, engine.RespostaUpdateOptions{ID: respostas[0].ID, StatusItem: &bad, ActorID: "t"}); err == nil {
		t.Fatalf("expected status validation error")
	}
}

func markAll(t *testing.T, env testEnv, snapshotID, status string, sigURL string) {
	t.Helper()
	respostas, err := env.Engine.Repo.ListRespostasBySnapshot(env.Ctx, snapshotID)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range respostas {
		opts := engine.RespostaUpdateOptions{ID: r.ID, StatusItem: &status, ActorID: "tester"}
		if sigURL != "" {
			url := sigURL
			opts.AssinaturaURL = &url
		}
		if _, err := env.Engine.UpdateResposta(env.Ctx, opts); err != nil {
			t.Fatalf("update %s: %v", r.ID, err)
		}
	}
}

func TestConcludeOrderGatedOnChecklist(t *testing.T) {
	env := newTestEnv(t)
	tpl := importFixtureTemplate(t, env)
	o := createFixtureOrder(t, env)
	s, err := env.Engine.StartChecklist(env.Ctx, engine.StartChecklistOptions{OSID: o.ID, ChecklistID: tpl.ID, ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.Engine.ConcludeOrder(env.Ctx, o.ID, "tester")
	var blocked *engine.ChecklistBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected ChecklistBlockedError, got %v", err)
	}
	if len(blocked.Motivos) == 0 {
		t.Fatalf("expected motivos in blocked error")
	}

	markAll(t, env, s.ID, domain.StatusConforme, "https://cdn.example/sig.png")
	concluded, err := env.Engine.ConcludeOrder(env.Ctx, o.ID, "tester")
	if err != nil {
		t.Fatalf("conclude: %v", err)
	}
	if concluded.Status != domain.OSConcluido || concluded.ConcludedAt == nil {
		t.Fatalf("expected concluded order, got %+v", concluded)
	}

	view, err := env.Engine.GetChecklist(env.Ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if view.Checklist.CompletedAt == nil {
		t.Fatalf("expected snapshot completed_at set")
	}

	// concluding again is a no-op
	again, err := env.Engine.ConcludeOrder(env.Ctx, o.ID, "tester")
	if err != nil || again.Status != domain.OSConcluido {
		t.Fatalf("repeat conclude: %v", err)
	}
}

func TestConcludeWithoutChecklist(t *testing.T) {
	env := newTestEnv(t)
	o := createFixtureOrder(t, env)
	_, err := env.Engine.ConcludeOrder(env.Ctx, o.ID, "tester")
	if !errors.Is(err, engine.ErrChecklistNotStarted) {
		t.Fatalf("expected ErrChecklistNotStarted, got %v", err)
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	o := createFixtureOrder(t, env)
	o, err := env.Engine.SetOrderStatus(env.Ctx, o.ID, domain.OSEmAndamento, "tester")
	if err != nil || o.Status != domain.OSEmAndamento {
		t.Fatalf("to em_andamento: %v", err)
	}
	o, err = env.Engine.SetOrderStatus(env.Ctx, o.ID, domain.OSParado, "tester")
	if err != nil || o.Status != domain.OSParado {
		t.Fatalf("to parado: %v", err)
	}
	if _, err = env.Engine.SetOrderStatus(env.Ctx, o.ID, domain.OSAguardandoAssinatura, "tester"); err == nil {
		t.Fatalf("expected invalid transition parado -> aguardando_assinatura")
	}
	if _, err = env.Engine.SetOrderStatus(env.Ctx, o.ID, domain.OSConcluido, "tester"); err == nil {
		t.Fatalf("manual transition to concluido must be rejected")
	}
	o, err = env.Engine.SetOrderStatus(env.Ctx, o.ID, domain.OSCancelado, "tester")
	if err != nil || o.Status != domain.OSCancelado {
		t.Fatalf("to cancelado: %v", err)
	}
}

func TestImportTemplateRejectsDuplicateOrdem(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.ImportTemplate(env.Ctx, engine.TemplateImportOptions{
		Nome:        "Colisao",
		TipoServico: "preventiva",
		Itens: []domain.TemplateItem{
			{Ordem: 2, Descricao: "a", Tipo: domain.TipoBoolean},
			{Descricao: "b", Tipo: domain.TipoBoolean},
		},
		ActorID: "tester",
	})
	if err == nil {
		t.Fatalf("expected duplicate ordem rejection (explicit 2 vs positional 2)")
	}
}

func TestSeedCatalog(t *testing.T) {
	env := newTestEnv(t)
	n, err := env.Engine.SeedCatalog(env.Ctx, "tester")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != len(env.Engine.Config.Catalog) {
		t.Fatalf("expected %d seeded, got %d", len(env.Engine.Config.Catalog), n)
	}
	// seeding again is a no-op
	n, err = env.Engine.SeedCatalog(env.Ctx, "tester")
	if err != nil || n != 0 {
		t.Fatalf("repeat seed: %d, %v", n, err)
	}
}

func TestMetricsSnapshot(t *testing.T) {
	env := newTestEnv(t)
	importFixtureTemplate(t, env)
	createFixtureOrder(t, env)
	createFixtureOrder(t, env)
	m, err := env.Engine.Metrics(env.Ctx)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if m.OrdensPorStatus[domain.OSNovo] != 2 {
		t.Fatalf("expected 2 novo orders, got %+v", m.OrdensPorStatus)
	}
	if m.TemplatesAtivos != 1 {
		t.Fatalf("expected 1 active template, got %d", m.TemplatesAtivos)
	}
	if m.OrdensCriadas7d != 2 {
		t.Fatalf("expected 2 created in window, got %d", m.OrdensCriadas7d)
	}
}

func TestEventsAppendedOnLifecycle(t *testing.T) {
	env := newTestEnv(t)
	tpl := importFixtureTemplate(t, env)
	o := createFixtureOrder(t, env)
	s, err := env.Engine.StartChecklist(env.Ctx, engine.StartChecklistOptions{OSID: o.ID, ChecklistID: tpl.ID, ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	markAll(t, env, s.ID, domain.StatusConforme, "https://cdn.example/sig.png")
	if _, err := env.Engine.ConcludeOrder(env.Ctx, o.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	events, err := env.Engine.Repo.ListEvents(env.Ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	types := map[string]bool{}
	for _, ev := range events {
		types[ev.Type] = true
	}
	for _, want := range []string{"template.imported", "os.created", "checklist.started", "resposta.updated", "os.concluded"} {
		if !types[want] {
			t.Fatalf("missing event %s in %v", want, types)
		}
	}
}
