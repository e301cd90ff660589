package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/elishasistemas/elisha-sub002/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// IsUniqueViolation reports whether err is a sqlite UNIQUE constraint failure.
// Used by the engine to treat a lost insert race as "row already exists".
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (r Repo) EnsureEmpresa(ctx context.Context, tx *sql.Tx, id, nome, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO empresas(id,nome,created_at) VALUES (?,?,?)
ON CONFLICT(id) DO NOTHING`, id, nome, now)
	return err
}

func (r Repo) GetEmpresaNome(ctx context.Context, id string) (string, error) {
	var nome string
	err := r.DB.QueryRowContext(ctx, `SELECT nome FROM empresas WHERE id=?`, id).Scan(&nome)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return nome, err
}

func scanOrder(scan func(dest ...any) error) (domain.ServiceOrder, error) {
	var o domain.ServiceOrder
	var desc, equip, concluded sql.NullString
	err := scan(&o.ID, &o.EmpresaID, &o.Titulo, &desc, &o.TipoServico, &o.Status, &o.Prioridade, &equip, &o.CreatedAt, &o.UpdatedAt, &concluded)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	if desc.Valid {
		o.Descricao = desc.String
	}
	if equip.Valid {
		o.EquipamentoID = &equip.String
	}
	if concluded.Valid {
		o.ConcludedAt = &concluded.String
	}
	return o, nil
}

const orderColumns = `id,empresa_id,titulo,descricao,tipo_servico,status,prioridade,equipamento_id,created_at,updated_at,concluded_at`

func (r Repo) InsertOrderTx(ctx context.Context, tx *sql.Tx, o domain.ServiceOrder) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO ordens_servico(`+orderColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		o.ID, o.EmpresaID, o.Titulo, nullableString(o.Descricao), o.TipoServico, o.Status, o.Prioridade,
		nullablePtr(o.EquipamentoID), o.CreatedAt, o.UpdatedAt, nullablePtr(o.ConcludedAt))
	return err
}

func (r Repo) GetOrder(ctx context.Context, id string) (domain.ServiceOrder, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM ordens_servico WHERE id=?`, id)
	return scanOrder(row.Scan)
}

func (r Repo) ListOrders(ctx context.Context, empresaID, status string) ([]domain.ServiceOrder, error) {
	clauses := []string{"empresa_id=?"}
	args := []any{empresaID}
	if status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, status)
	}
	query := `SELECT ` + orderColumns + ` FROM ordens_servico WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ServiceOrder
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (r Repo) UpdateOrderStatusTx(ctx context.Context, tx *sql.Tx, id, status, updatedAt string, concludedAt *string) error {
	res, err := tx.ExecContext(ctx, `UPDATE ordens_servico SET status=?, updated_at=?, concluded_at=COALESCE(?, concluded_at) WHERE id=?`,
		status, updatedAt, nullablePtr(concludedAt), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountOrdersByStatus returns row counts keyed by status for one company.
func (r Repo) CountOrdersByStatus(ctx context.Context, empresaID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM ordens_servico WHERE empresa_id=? GROUP BY status`, empresaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// CountOrdersSince counts orders created at or after the given RFC3339 instant.
func (r Repo) CountOrdersSince(ctx context.Context, empresaID, since string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM ordens_servico WHERE empresa_id=? AND created_at >= ?`, empresaID, since).Scan(&n)
	return n, err
}

// CountOrdersConcludedSince counts orders concluded at or after the given
// RFC3339 instant.
func (r Repo) CountOrdersConcludedSince(ctx context.Context, empresaID, since string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM ordens_servico WHERE empresa_id=? AND concluded_at IS NOT NULL AND concluded_at >= ?`, empresaID, since).Scan(&n)
	return n, err
}

func (r Repo) CountActiveTemplates(ctx context.Context, empresaID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM checklists WHERE empresa_id=? AND ativo=1`, empresaID).Scan(&n)
	return n, err
}

// ListEvents returns the newest audit rows first, up to limit.
func (r Repo) ListEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,COALESCE(empresa_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json
FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EmpresaID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullablePtr(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
