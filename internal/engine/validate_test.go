package engine_test

import (
	"strings"
	"testing"

	"github.com/elishasistemas/elisha-sub002/internal/domain"
	"github.com/elishasistemas/elisha-sub002/internal/engine"
)

func TestValidateCriticalPendingBlocks(t *testing.T) {
	snap := snapshotWith(
		domain.TemplateItem{Ordem: 1, Secao: "Seguranca", Descricao: "Freio de emergência", Tipo: domain.TipoBoolean, Critico: true},
	)
	v := engine.ValidateChecklistCompletion(snap, nil)
	if v.PodeConcluir {
		t.Fatalf("expected block")
	}
	if len(v.MotivosBloqueio) != 1 || !strings.Contains(v.MotivosBloqueio[0], "Freio de emergência") {
		t.Fatalf("expected one motivo naming the item, got %v", v.MotivosBloqueio)
	}
	if !strings.Contains(v.MotivosBloqueio[0], "crítico pendente") {
		t.Fatalf("unexpected motivo: %v", v.MotivosBloqueio)
	}
}

func TestValidateCriticalNonConformBlocks(t *testing.T) {
	snap := snapshotWith(
		domain.TemplateItem{Ordem: 1, Secao: "Seguranca", Descricao: "Freio de emergência", Tipo: domain.TipoBoolean, Critico: true},
	)
	v := engine.ValidateChecklistCompletion(snap, []domain.Resposta{resposta(1, domain.StatusNaoConforme)})
	if v.PodeConcluir {
		t.Fatalf("expected block")
	}
	if !strings.Contains(v.MotivosBloqueio[0], "não conforme") {
		t.Fatalf("unexpected motivo: %v", v.MotivosBloqueio)
	}
}

func TestValidatePhotoMinimumIndependentOfStatus(t *testing.T) {
	snap := snapshotWith(domain.TemplateItem{
		Ordem:       1,
		Descricao:   "Fotos do painel",
		Tipo:        domain.TipoPhoto,
		Obrigatorio: true,
		Evidencias:  &domain.Evidencias{FotosMin: 2},
	})
	r := resposta(1, domain.StatusConforme)
	r.FotosURLs = []string{"https://cdn.example/1.jpg"}
	v := engine.ValidateChecklistCompletion(snap, []domain.Resposta{r})
	if v.PodeConcluir {
		t.Fatalf("conforme status must not bypass the photo minimum")
	}
	if len(v.MotivosBloqueio) != 1 || !strings.Contains(v.MotivosBloqueio[0], "evidência fotográfica") {
		t.Fatalf("expected photo motivo, got %v", v.MotivosBloqueio)
	}
	if !strings.Contains(v.MotivosBloqueio[0], "mínimo 2 foto(s)") {
		t.Fatalf("motivo should carry the minimum: %v", v.MotivosBloqueio)
	}
}

func TestValidatePhotoMinimumSatisfied(t *testing.T) {
	snap := snapshotWith(domain.TemplateItem{
		Ordem:       1,
		Descricao:   "Fotos do painel",
		Tipo:        domain.TipoPhoto,
		Obrigatorio: true,
		Evidencias:  &domain.Evidencias{FotosMin: 2},
	})
	r := resposta(1, domain.StatusConforme)
	r.FotosURLs = []string{"https://cdn.example/1.jpg", "https://cdn.example/2.jpg"}
	v := engine.ValidateChecklistCompletion(snap, []domain.Resposta{r})
	if !v.PodeConcluir {
		t.Fatalf("expected pass, got %v", v.MotivosBloqueio)
	}
}

func TestValidatePhotoMinimumSkippedWhenOptional(t *testing.T) {
	snap := snapshotWith(domain.TemplateItem{
		Ordem:      1,
		Descricao:  "Fotos opcionais",
		Tipo:       domain.TipoPhoto,
		Evidencias: &domain.Evidencias{FotosMin: 2},
	})
	v := engine.ValidateChecklistCompletion(snap, []domain.Resposta{resposta(1, domain.StatusConforme)})
	if !v.PodeConcluir {
		t.Fatalf("fotos_min only binds obrigatorio items, got %v", v.MotivosBloqueio)
	}
}

func TestValidateSignatureRequired(t *testing.T) {
	snap := snapshotWith(domain.TemplateItem{
		Ordem:       1,
		Descricao:   "Assinatura do cliente",
		Tipo:        domain.TipoSignature,
		Obrigatorio: true,
	})
	r := resposta(1, domain.StatusConforme)
	v := engine.ValidateChecklistCompletion(snap, []domain.Resposta{r})
	if v.PodeConcluir {
		t.Fatalf("expected signature block")
	}
	if !strings.Contains(v.MotivosBloqueio[0], "Assinatura obrigatória pendente") {
		t.Fatalf("unexpected motivo: %v", v.MotivosBloqueio)
	}

	url := "https://cdn.example/sig.png"
	r.AssinaturaURL = &url
	v = engine.ValidateChecklistCompletion(snap, []domain.Resposta{r})
	if !v.PodeConcluir {
		t.Fatalf("expected pass with signature, got %v", v.MotivosBloqueio)
	}
}

func TestValidateScenarioDWarningOnly(t *testing.T) {
	snap := snapshotWith(domain.TemplateItem{
		Ordem:       1,
		Secao:       "Cabine",
		Descricao:   "Iluminação da cabine",
		Tipo:        domain.TipoBoolean,
		Obrigatorio: true,
	})
	v := engine.ValidateChecklistCompletion(snap, nil)
	if !v.PodeConcluir {
		t.Fatalf("non-critical pending must not block, got %v", v.MotivosBloqueio)
	}
	if len(v.Avisos) != 1 || !strings.Contains(v.Avisos[0], "Iluminação da cabine") {
		t.Fatalf("expected one aviso naming the item, got %v", v.Avisos)
	}
}

func TestValidateScoreGateIndependence(t *testing.T) {
	// everything conforme yet concluding is blocked on missing photo evidence
	snap := snapshotWith(domain.TemplateItem{
		Ordem:       1,
		Descricao:   "Fotos da casa de máquinas",
		Tipo:        domain.TipoPhoto,
		Obrigatorio: true,
		Evidencias:  &domain.Evidencias{FotosMin: 1},
	})
	respostas := []domain.Resposta{resposta(1, domain.StatusConforme)}
	score := engine.ComputeComplianceScore(snap, respostas)
	v := engine.ValidateChecklistCompletion(snap, respostas)
	if score.Score != 100 {
		t.Fatalf("expected score 100, got %d", score.Score)
	}
	if v.PodeConcluir {
		t.Fatalf("expected gate to block despite full score")
	}
}

func TestValidateEmptySnapshotConcludes(t *testing.T) {
	v := engine.ValidateChecklistCompletion(snapshotWith(), nil)
	if !v.PodeConcluir || len(v.MotivosBloqueio) != 0 || len(v.Avisos) != 0 {
		t.Fatalf("empty snapshot should conclude cleanly, got %+v", v)
	}
}
