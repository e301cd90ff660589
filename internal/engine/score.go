package engine

import (
	"math"

	"github.com/elishasistemas/elisha-sub002/internal/domain"
)

var baseWeights = map[string]int{
	domain.TipoBoolean:   1,
	domain.TipoText:      1,
	domain.TipoNumber:    2,
	domain.TipoLeitura:   2,
	domain.TipoPhoto:     2,
	domain.TipoSignature: 2,
}

func baseWeight(tipo string) int {
	if w, ok := baseWeights[tipo]; ok {
		return w
	}
	return 1
}

// itemWeight is the item's scoring weight: base weight by kind, +2 when the
// item is critical so critical items always outweigh non-critical ones.
func itemWeight(item domain.TemplateItem) int {
	peso := baseWeight(item.Tipo)
	if item.Critico {
		peso += 2
	}
	return peso
}

// resolveOrdem is the single place the item/response join key is computed:
// the item's explicit ordem, or its position in the frozen list (1-based)
// when absent. Seeding and scoring both go through here; resolving from
// anything but the snapshot's own list would silently drop items.
func resolveOrdem(item domain.TemplateItem, index int) int {
	if item.Ordem > 0 {
		return item.Ordem
	}
	return index + 1
}

// respostasByOrdem indexes responses by item_ordem. Later rows win on a
// duplicate key, matching the legacy behavior for data seeded before ordem
// uniqueness was enforced.
func respostasByOrdem(respostas []domain.Resposta) map[int]domain.Resposta {
	m := make(map[int]domain.Resposta, len(respostas))
	for _, resp := range respostas {
		m[resp.ItemOrdem] = resp
	}
	return m
}

func statusFor(m map[int]domain.Resposta, ordem int) (domain.Resposta, string) {
	resp, ok := m[ordem]
	if !ok || resp.StatusItem == "" {
		return resp, domain.StatusPendente
	}
	return resp, resp.StatusItem
}

// ComputeComplianceScore derives the weighted compliance score for a snapshot
// from the current responses. Pure and total: unknown statuses count as
// pendente, responses without a matching item are ignored, and an empty
// snapshot scores 0.
func ComputeComplianceScore(snapshot domain.TemplateSnapshot, respostas []domain.Resposta) domain.ComplianceScore {
	byOrdem := respostasByOrdem(respostas)

	var score domain.ComplianceScore
	score.Total = len(snapshot.Itens)

	for i, item := range snapshot.Itens {
		_, status := statusFor(byOrdem, resolveOrdem(item, i))
		peso := itemWeight(item)
		score.PesoTotal += peso

		switch status {
		case domain.StatusConforme:
			score.ItemsPorStatus.Conforme++
			score.PesoConforme += peso
		case domain.StatusNA:
			// N/A satisfies the item fully; it never penalizes the score.
			score.ItemsPorStatus.NA++
			score.PesoConforme += peso
		case domain.StatusNaoConforme:
			score.ItemsPorStatus.NaoConforme++
			if item.Critico {
				score.CriticosPendentes++
			}
		default:
			score.ItemsPorStatus.Pendente++
			score.Pendencias++
			if item.Critico {
				score.CriticosPendentes++
			}
		}
	}

	if score.PesoTotal > 0 {
		score.Score = int(math.Round(float64(score.PesoConforme) / float64(score.PesoTotal) * 100))
	}
	return score
}
