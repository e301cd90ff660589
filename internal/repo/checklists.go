package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elishasistemas/elisha-sub002/internal/domain"
)

const snapshotColumns = `id,os_id,checklist_id,template_snapshot,started_at,completed_at,responsavel_id,empresa_id,created_at,updated_at`

func scanSnapshot(scan func(dest ...any) error) (domain.OSChecklist, error) {
	var s domain.OSChecklist
	var checklistID, completedAt, responsavelID sql.NullString
	var snapshotJSON string
	err := scan(&s.ID, &s.OSID, &checklistID, &snapshotJSON, &s.StartedAt, &completedAt, &responsavelID, &s.EmpresaID, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	if checklistID.Valid {
		s.ChecklistID = &checklistID.String
	}
	if completedAt.Valid {
		s.CompletedAt = &completedAt.String
	}
	if responsavelID.Valid {
		s.ResponsavelID = &responsavelID.String
	}
	if err := json.Unmarshal([]byte(snapshotJSON), &s.TemplateSnapshot); err != nil {
		return s, fmt.Errorf("decode snapshot %s: %w", s.ID, err)
	}
	return s, nil
}

// FindSnapshotByOSID is the idempotency lookup: at most one snapshot exists
// per service order.
func (r Repo) FindSnapshotByOSID(ctx context.Context, osID string) (domain.OSChecklist, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+snapshotColumns+` FROM os_checklists WHERE os_id=?`, osID)
	return scanSnapshot(row.Scan)
}

func (r Repo) GetSnapshot(ctx context.Context, id string) (domain.OSChecklist, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+snapshotColumns+` FROM os_checklists WHERE id=?`, id)
	return scanSnapshot(row.Scan)
}

func (r Repo) InsertSnapshotTx(ctx context.Context, tx *sql.Tx, s domain.OSChecklist) error {
	snapshot, err := json.Marshal(s.TemplateSnapshot)
	if err != nil {
		return fmt.Errorf("encode template snapshot: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO os_checklists(`+snapshotColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.OSID, nullablePtr(s.ChecklistID), string(snapshot), s.StartedAt, nullablePtr(s.CompletedAt),
		nullablePtr(s.ResponsavelID), s.EmpresaID, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r Repo) SetSnapshotCompletedTx(ctx context.Context, tx *sql.Tx, id, completedAt, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE os_checklists SET completed_at=?, updated_at=? WHERE id=?`, completedAt, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const respostaColumns = `id,os_checklist_id,os_id,item_ordem,descricao,status_item,valor_boolean,valor_text,valor_number,observacoes,fotos_urls,assinatura_url,respondido_por,respondido_em,created_at,updated_at`

func scanResposta(scan func(dest ...any) error) (domain.Resposta, error) {
	var resp domain.Resposta
	var osChecklistID, valorText, observacoes, assinatura, respondidoPor, respondidoEm sql.NullString
	var valorBoolean sql.NullInt64
	var valorNumber sql.NullFloat64
	var fotosJSON string
	err := scan(&resp.ID, &osChecklistID, &resp.OSID, &resp.ItemOrdem, &resp.Descricao, &resp.StatusItem,
		&valorBoolean, &valorText, &valorNumber, &observacoes, &fotosJSON, &assinatura, &respondidoPor, &respondidoEm,
		&resp.CreatedAt, &resp.UpdatedAt)
	if err == sql.ErrNoRows {
		return resp, ErrNotFound
	}
	if err != nil {
		return resp, err
	}
	if osChecklistID.Valid {
		resp.OSChecklistID = &osChecklistID.String
	}
	if valorBoolean.Valid {
		b := valorBoolean.Int64 != 0
		resp.ValorBoolean = &b
	}
	if valorText.Valid {
		resp.ValorText = &valorText.String
	}
	if valorNumber.Valid {
		resp.ValorNumber = &valorNumber.Float64
	}
	if observacoes.Valid {
		resp.Observacoes = &observacoes.String
	}
	if assinatura.Valid {
		resp.AssinaturaURL = &assinatura.String
	}
	if respondidoPor.Valid {
		resp.RespondidoPor = &respondidoPor.String
	}
	if respondidoEm.Valid {
		resp.RespondidoEm = &respondidoEm.String
	}
	resp.FotosURLs = []string{}
	if fotosJSON != "" {
		if err := json.Unmarshal([]byte(fotosJSON), &resp.FotosURLs); err != nil {
			return resp, fmt.Errorf("decode resposta %s fotos: %w", resp.ID, err)
		}
	}
	return resp, nil
}

// InsertRespostasTx bulk-inserts seeded responses. Runs in the same
// transaction as the snapshot insert so the two are one effective unit.
func (r Repo) InsertRespostasTx(ctx context.Context, tx *sql.Tx, respostas []domain.Resposta) error {
	for _, resp := range respostas {
		fotos, err := json.Marshal(resp.FotosURLs)
		if err != nil {
			return fmt.Errorf("encode resposta fotos: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO checklist_respostas(`+respostaColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			resp.ID, nullablePtr(resp.OSChecklistID), resp.OSID, resp.ItemOrdem, resp.Descricao, resp.StatusItem,
			nullableBool(resp.ValorBoolean), nullablePtr(resp.ValorText), nullableFloat(resp.ValorNumber),
			nullablePtr(resp.Observacoes), string(fotos), nullablePtr(resp.AssinaturaURL),
			nullablePtr(resp.RespondidoPor), nullablePtr(resp.RespondidoEm), resp.CreatedAt, resp.UpdatedAt); err != nil {
			return err
		}
	}
	return nil
}

// ListRespostasBySnapshot returns responses ordered by item_ordem.
func (r Repo) ListRespostasBySnapshot(ctx context.Context, osChecklistID string) ([]domain.Resposta, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+respostaColumns+` FROM checklist_respostas WHERE os_checklist_id=? ORDER BY item_ordem ASC`, osChecklistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Resposta
	for rows.Next() {
		resp, err := scanResposta(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, resp)
	}
	return res, rows.Err()
}

func (r Repo) GetResposta(ctx context.Context, id string) (domain.Resposta, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+respostaColumns+` FROM checklist_respostas WHERE id=?`, id)
	return scanResposta(row.Scan)
}

// RespostaUpdate carries the incremental PATCH fields. Nil means "leave as is".
type RespostaUpdate struct {
	StatusItem    *string
	ValorBoolean  *bool
	ValorText     *string
	ValorNumber   *float64
	Observacoes   *string
	FotosURLs     *[]string
	AssinaturaURL *string
	RespondidoPor *string
	RespondidoEm  *string
}

func (r Repo) UpdateRespostaTx(ctx context.Context, tx *sql.Tx, id string, u RespostaUpdate, updatedAt string) error {
	fields := []string{"updated_at=?"}
	args := []any{updatedAt}
	if u.StatusItem != nil {
		fields = append(fields, "status_item=?")
		args = append(args, *u.StatusItem)
	}
	if u.ValorBoolean != nil {
		fields = append(fields, "valor_boolean=?")
		args = append(args, boolToInt(*u.ValorBoolean))
	}
	if u.ValorText != nil {
		fields = append(fields, "valor_text=?")
		args = append(args, *u.ValorText)
	}
	if u.ValorNumber != nil {
		fields = append(fields, "valor_number=?")
		args = append(args, *u.ValorNumber)
	}
	if u.Observacoes != nil {
		fields = append(fields, "observacoes=?")
		args = append(args, *u.Observacoes)
	}
	if u.FotosURLs != nil {
		fotos, err := json.Marshal(*u.FotosURLs)
		if err != nil {
			return fmt.Errorf("encode resposta fotos: %w", err)
		}
		fields = append(fields, "fotos_urls=?")
		args = append(args, string(fotos))
	}
	if u.AssinaturaURL != nil {
		fields = append(fields, "assinatura_url=?")
		args = append(args, *u.AssinaturaURL)
	}
	if u.RespondidoPor != nil {
		fields = append(fields, "respondido_por=?")
		args = append(args, *u.RespondidoPor)
	}
	if u.RespondidoEm != nil {
		fields = append(fields, "respondido_em=?")
		args = append(args, *u.RespondidoEm)
	}
	args = append(args, id)
	res, err := tx.ExecContext(ctx, `UPDATE checklist_respostas SET `+strings.Join(fields, ", ")+` WHERE id=?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	return boolToInt(*b)
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
