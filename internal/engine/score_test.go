package engine_test

import (
	"testing"

	"github.com/elishasistemas/elisha-sub002/internal/domain"
	"github.com/elishasistemas/elisha-sub002/internal/engine"
)

func snapshotWith(itens ...domain.TemplateItem) domain.TemplateSnapshot {
	return domain.TemplateSnapshot{
		ID:          "tpl-1",
		Nome:        "Teste",
		TipoServico: "preventiva",
		Versao:      1,
		Itens:       itens,
	}
}

func resposta(ordem int, status string) domain.Resposta {
	return domain.Resposta{
		ID:         "resp",
		OSID:       "os-1",
		ItemOrdem:  ordem,
		StatusItem: status,
	}
}

func TestScoreEmptySnapshot(t *testing.T) {
	score := engine.ComputeComplianceScore(snapshotWith(), nil)
	if score.Score != 0 || score.PesoTotal != 0 || score.Pendencias != 0 || score.Total != 0 {
		t.Fatalf("expected zero score for empty snapshot, got %+v", score)
	}
}

func TestScoreWeightsByTipo(t *testing.T) {
	cases := []struct {
		tipo string
		peso int
	}{
		{domain.TipoBoolean, 1},
		{domain.TipoText, 1},
		{domain.TipoNumber, 2},
		{domain.TipoLeitura, 2},
		{domain.TipoPhoto, 2},
		{domain.TipoSignature, 2},
		{"desconhecido", 1},
	}
	for _, tc := range cases {
		snap := snapshotWith(domain.TemplateItem{Ordem: 1, Descricao: "x", Tipo: tc.tipo})
		score := engine.ComputeComplianceScore(snap, nil)
		if score.PesoTotal != tc.peso {
			t.Fatalf("tipo %s: expected peso %d, got %d", tc.tipo, tc.peso, score.PesoTotal)
		}
	}
}

func TestScoreCriticalAddsTwo(t *testing.T) {
	for _, tipo := range []string{domain.TipoBoolean, domain.TipoPhoto} {
		plain := engine.ComputeComplianceScore(snapshotWith(
			domain.TemplateItem{Ordem: 1, Descricao: "x", Tipo: tipo}), nil)
		critical := engine.ComputeComplianceScore(snapshotWith(
			domain.TemplateItem{Ordem: 1, Descricao: "x", Tipo: tipo, Critico: true}), nil)
		if critical.PesoTotal != plain.PesoTotal+2 {
			t.Fatalf("tipo %s: critico peso %d, plain %d", tipo, critical.PesoTotal, plain.PesoTotal)
		}
	}
}

func TestScoreFullCompliance(t *testing.T) {
	snap := snapshotWith(
		domain.TemplateItem{Ordem: 1, Descricao: "a", Tipo: domain.TipoBoolean},
		domain.TemplateItem{Ordem: 2, Descricao: "b", Tipo: domain.TipoSignature, Critico: true},
		domain.TemplateItem{Ordem: 3, Descricao: "c", Tipo: domain.TipoLeitura},
	)
	score := engine.ComputeComplianceScore(snap, []domain.Resposta{
		resposta(1, domain.StatusConforme),
		resposta(2, domain.StatusConforme),
		resposta(3, domain.StatusNA),
	})
	if score.Score != 100 {
		t.Fatalf("expected 100, got %d", score.Score)
	}
	if score.CriticosPendentes != 0 || score.Pendencias != 0 {
		t.Fatalf("expected no pending counters, got %+v", score)
	}
}

func TestScoreNANeutrality(t *testing.T) {
	snap := snapshotWith(
		domain.TemplateItem{Ordem: 1, Descricao: "a", Tipo: domain.TipoBoolean},
		domain.TemplateItem{Ordem: 2, Descricao: "b", Tipo: domain.TipoNumber},
	)
	before := engine.ComputeComplianceScore(snap, []domain.Resposta{
		resposta(1, domain.StatusConforme),
		resposta(2, domain.StatusPendente),
	})
	after := engine.ComputeComplianceScore(snap, []domain.Resposta{
		resposta(1, domain.StatusConforme),
		resposta(2, domain.StatusNA),
	})
	if after.PesoConforme != before.PesoConforme+2 {
		t.Fatalf("na should add the item weight: before %d after %d", before.PesoConforme, after.PesoConforme)
	}
	if after.Score < before.Score {
		t.Fatalf("na must never lower the score: %d -> %d", before.Score, after.Score)
	}
}

func TestScoreMissingResponseIsPendente(t *testing.T) {
	snap := snapshotWith(
		domain.TemplateItem{Ordem: 1, Descricao: "a", Tipo: domain.TipoBoolean, Critico: true},
	)
	score := engine.ComputeComplianceScore(snap, nil)
	if score.ItemsPorStatus.Pendente != 1 || score.Pendencias != 1 || score.CriticosPendentes != 1 {
		t.Fatalf("missing response should count as pendente, got %+v", score)
	}
}

func TestScoreNaoConformeCritical(t *testing.T) {
	snap := snapshotWith(
		domain.TemplateItem{Ordem: 1, Descricao: "a", Tipo: domain.TipoBoolean, Critico: true},
	)
	score := engine.ComputeComplianceScore(snap, []domain.Resposta{
		resposta(1, domain.StatusNaoConforme),
	})
	if score.CriticosPendentes != 1 {
		t.Fatalf("critical nao_conforme must count in criticos_pendentes, got %+v", score)
	}
	if score.Pendencias != 0 {
		t.Fatalf("nao_conforme is answered, not a pendencia, got %+v", score)
	}
	if score.Score != 0 {
		t.Fatalf("expected 0, got %d", score.Score)
	}
}

func TestScoreOrdemFallbackToIndex(t *testing.T) {
	// items without explicit ordem join responses on position+1
	snap := snapshotWith(
		domain.TemplateItem{Descricao: "a", Tipo: domain.TipoBoolean},
		domain.TemplateItem{Descricao: "b", Tipo: domain.TipoBoolean},
	)
	score := engine.ComputeComplianceScore(snap, []domain.Resposta{
		resposta(1, domain.StatusConforme),
		resposta(2, domain.StatusConforme),
	})
	if score.Score != 100 {
		t.Fatalf("expected positional join, got %+v", score)
	}
}

func TestScoreDuplicateOrdemLastWins(t *testing.T) {
	snap := snapshotWith(
		domain.TemplateItem{Ordem: 1, Descricao: "a", Tipo: domain.TipoBoolean},
	)
	score := engine.ComputeComplianceScore(snap, []domain.Resposta{
		resposta(1, domain.StatusNaoConforme),
		resposta(1, domain.StatusConforme),
	})
	if score.Score != 100 {
		t.Fatalf("later duplicate response should win, got %+v", score)
	}
}

func TestScoreScenarioA(t *testing.T) {
	snap := snapshotWith(
		domain.TemplateItem{Ordem: 1, Descricao: "Limpeza", Tipo: domain.TipoBoolean},
		domain.TemplateItem{Ordem: 2, Secao: "Encerramento", Descricao: "Assinatura do cliente", Tipo: domain.TipoSignature, Critico: true, Obrigatorio: true},
	)
	respostas := []domain.Resposta{
		resposta(1, domain.StatusConforme),
		resposta(2, domain.StatusPendente),
	}
	score := engine.ComputeComplianceScore(snap, respostas)
	if score.PesoTotal != 5 || score.PesoConforme != 1 {
		t.Fatalf("expected peso 5/1, got %d/%d", score.PesoTotal, score.PesoConforme)
	}
	if score.Score != 20 {
		t.Fatalf("expected score 20, got %d", score.Score)
	}
	if score.CriticosPendentes != 1 {
		t.Fatalf("expected 1 critico pendente, got %d", score.CriticosPendentes)
	}
	v := engine.ValidateChecklistCompletion(snap, respostas)
	if v.PodeConcluir {
		t.Fatalf("expected blocked conclusion")
	}
}

func TestScoreScenarioB(t *testing.T) {
	snap := snapshotWith(
		domain.TemplateItem{Ordem: 1, Descricao: "Limpeza", Tipo: domain.TipoBoolean},
		domain.TemplateItem{Ordem: 2, Descricao: "Assinatura do cliente", Tipo: domain.TipoSignature, Critico: true, Obrigatorio: true},
	)
	url := "https://cdn.example/sig.png"
	assinada := resposta(2, domain.StatusConforme)
	assinada.AssinaturaURL = &url
	respostas := []domain.Resposta{
		resposta(1, domain.StatusConforme),
		assinada,
	}
	score := engine.ComputeComplianceScore(snap, respostas)
	if score.Score != 100 || score.CriticosPendentes != 0 {
		t.Fatalf("expected 100/0, got %d/%d", score.Score, score.CriticosPendentes)
	}
	v := engine.ValidateChecklistCompletion(snap, respostas)
	if !v.PodeConcluir || len(v.MotivosBloqueio) != 0 {
		t.Fatalf("expected clean conclusion, got %+v", v)
	}
}

func TestScoreRounding(t *testing.T) {
	// 1 of 3 weight conforme: 33.33 rounds to 33; 2 of 3: 66.67 rounds to 67
	snap := snapshotWith(
		domain.TemplateItem{Ordem: 1, Descricao: "a", Tipo: domain.TipoBoolean},
		domain.TemplateItem{Ordem: 2, Descricao: "b", Tipo: domain.TipoBoolean},
		domain.TemplateItem{Ordem: 3, Descricao: "c", Tipo: domain.TipoBoolean},
	)
	one := engine.ComputeComplianceScore(snap, []domain.Resposta{resposta(1, domain.StatusConforme)})
	if one.Score != 33 {
		t.Fatalf("expected 33, got %d", one.Score)
	}
	two := engine.ComputeComplianceScore(snap, []domain.Resposta{
		resposta(1, domain.StatusConforme),
		resposta(2, domain.StatusConforme),
	})
	if two.Score != 67 {
		t.Fatalf("expected 67, got %d", two.Score)
	}
}
