package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/elishasistemas/elisha-sub002/internal/domain"
)

const templateColumns = `id,empresa_id,nome,tipo_servico,itens_json,versao,origem,ativo,created_at,updated_at`

func scanTemplate(scan func(dest ...any) error) (domain.Template, error) {
	var t domain.Template
	var itensJSON string
	var origem sql.NullString
	var ativo int
	err := scan(&t.ID, &t.EmpresaID, &t.Nome, &t.TipoServico, &itensJSON, &t.Versao, &origem, &ativo, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if origem.Valid {
		t.Origem = origem.String
	}
	t.Ativo = ativo != 0
	if err := json.Unmarshal([]byte(itensJSON), &t.Itens); err != nil {
		return t, fmt.Errorf("decode template %s items: %w", t.ID, err)
	}
	return t, nil
}

func (r Repo) InsertTemplateTx(ctx context.Context, tx *sql.Tx, t domain.Template) error {
	itens, err := json.Marshal(t.Itens)
	if err != nil {
		return fmt.Errorf("encode template items: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO checklists(`+templateColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.EmpresaID, t.Nome, t.TipoServico, string(itens), t.Versao, nullableString(t.Origem), boolToInt(t.Ativo), t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetTemplate(ctx context.Context, id string) (domain.Template, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM checklists WHERE id=?`, id)
	return scanTemplate(row.Scan)
}

// GetActiveTemplate returns the template only when it exists and is active.
// Inactive templates are indistinguishable from missing ones on purpose: new
// work must not snapshot them.
func (r Repo) GetActiveTemplate(ctx context.Context, id string) (domain.Template, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM checklists WHERE id=? AND ativo=1`, id)
	return scanTemplate(row.Scan)
}

func (r Repo) ListTemplates(ctx context.Context, empresaID string, onlyActive bool) ([]domain.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM checklists WHERE empresa_id=?`
	if onlyActive {
		query += ` AND ativo=1`
	}
	query += ` ORDER BY nome ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, empresaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Template
	for rows.Next() {
		t, err := scanTemplate(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTemplateTx(ctx context.Context, tx *sql.Tx, t domain.Template) error {
	itens, err := json.Marshal(t.Itens)
	if err != nil {
		return fmt.Errorf("encode template items: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE checklists SET nome=?, tipo_servico=?, itens_json=?, versao=?, ativo=?, updated_at=? WHERE id=?`,
		t.Nome, t.TipoServico, string(itens), t.Versao, boolToInt(t.Ativo), t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
