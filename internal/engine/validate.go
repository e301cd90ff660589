package engine

import (
	"fmt"

	"github.com/elishasistemas/elisha-sub002/internal/domain"
)

// ValidateChecklistCompletion decides whether an order's checklist may be
// concluded. Blocking reasons and warnings are user-facing strings in the
// wire language; callers compare PodeConcluir, not the messages.
func ValidateChecklistCompletion(snapshot domain.TemplateSnapshot, respostas []domain.Resposta) domain.ChecklistValidation {
	byOrdem := respostasByOrdem(respostas)

	validation := domain.ChecklistValidation{
		MotivosBloqueio: []string{},
		Avisos:          []string{},
	}

	for i, item := range snapshot.Itens {
		resp, status := statusFor(byOrdem, resolveOrdem(item, i))

		if item.Critico && status == domain.StatusNaoConforme {
			validation.MotivosBloqueio = append(validation.MotivosBloqueio,
				fmt.Sprintf("Item crítico não conforme: %q (%s)", item.Descricao, item.Secao))
		}
		if item.Critico && status == domain.StatusPendente {
			validation.MotivosBloqueio = append(validation.MotivosBloqueio,
				fmt.Sprintf("Item crítico pendente: %q (%s)", item.Descricao, item.Secao))
		}

		if item.Obrigatorio && item.Evidencias != nil && item.Evidencias.FotosMin > 0 {
			if len(resp.FotosURLs) < item.Evidencias.FotosMin {
				validation.MotivosBloqueio = append(validation.MotivosBloqueio,
					fmt.Sprintf("Item obrigatório sem evidência fotográfica: %q (mínimo %d foto(s))", item.Descricao, item.Evidencias.FotosMin))
			}
		}

		if item.Tipo == domain.TipoSignature && item.Obrigatorio && (resp.AssinaturaURL == nil || *resp.AssinaturaURL == "") {
			validation.MotivosBloqueio = append(validation.MotivosBloqueio,
				fmt.Sprintf("Assinatura obrigatória pendente: %q", item.Descricao))
		}

		if !item.Critico && item.Obrigatorio && status == domain.StatusPendente {
			validation.Avisos = append(validation.Avisos,
				fmt.Sprintf("Item obrigatório pendente: %q (%s)", item.Descricao, item.Secao))
		}
	}

	validation.PodeConcluir = len(validation.MotivosBloqueio) == 0
	return validation
}
