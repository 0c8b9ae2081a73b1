package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/salonbook/internal/model"
	"github.com/lib/pq"
)

const serviceSelect = `SELECT s.id, s.name, s.description, s.cleanup_minutes,
	p.id, p.first_name, p.last_name`

// PostgresServiceRepo はPostgreSQLを使用したメニューリポジトリ。
type PostgresServiceRepo struct {
	db *sql.DB
}

// NewPostgresServiceRepo はPostgresServiceRepoを生成する。
func NewPostgresServiceRepo(db *sql.DB) *PostgresServiceRepo {
	return &PostgresServiceRepo{db: db}
}

// List は全メニューを名前順に返す。料金オプションは所要時間の昇順。
func (r *PostgresServiceRepo) List(ctx context.Context) ([]*model.Service, error) {
	rows, err := r.db.QueryContext(ctx,
		serviceSelect+`
		 FROM services s
		 LEFT JOIN users p ON p.id = s.practitioner_id
		 ORDER BY s.name, s.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	services := []*model.Service{}
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate services: %w", err)
	}

	if err := r.attachOptions(ctx, services); err != nil {
		return nil, err
	}
	return services, nil
}

// ListByUserIDs は指定ユーザーに紐付くメニューをユーザーIDごとに返す。
func (r *PostgresServiceRepo) ListByUserIDs(ctx context.Context, userIDs []string) (map[string][]*model.Service, error) {
	result := make(map[string][]*model.Service)
	if len(userIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT us.user_id, s.id, s.name, s.description, s.cleanup_minutes,
		        p.id, p.first_name, p.last_name
		 FROM user_services us
		 JOIN services s ON s.id = us.service_id
		 LEFT JOIN users p ON p.id = s.practitioner_id
		 WHERE us.user_id = ANY($1::uuid[])
		 ORDER BY s.name, s.id`,
		pq.Array(userIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list services by user: %w", err)
	}
	defer rows.Close()

	var all []*model.Service
	for rows.Next() {
		var userID string
		svc, err := scanService(prefixedScanner{row: rows, prefix: []any{&userID}})
		if err != nil {
			return nil, fmt.Errorf("failed to scan user service: %w", err)
		}
		result[userID] = append(result[userID], svc)
		all = append(all, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user services: %w", err)
	}

	if err := r.attachOptions(ctx, all); err != nil {
		return nil, err
	}
	return result, nil
}

// attachOptions はメニューに料金オプションを1クエリでまとめて付与する。
// 同一メニューが複数回含まれる場合はそれぞれに同じオプションを付与する。
func (r *PostgresServiceRepo) attachOptions(ctx context.Context, services []*model.Service) error {
	if len(services) == 0 {
		return nil
	}

	byID := make(map[string][]*model.Service, len(services))
	ids := make([]string, 0, len(services))
	for _, svc := range services {
		if _, seen := byID[svc.ID]; !seen {
			ids = append(ids, svc.ID)
		}
		byID[svc.ID] = append(byID[svc.ID], svc)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT service_id, duration_minutes, price
		 FROM service_options
		 WHERE service_id = ANY($1::uuid[])
		 ORDER BY service_id, duration_minutes`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to list service options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var serviceID string
		var opt model.ServiceOption
		if err := rows.Scan(&serviceID, &opt.Duration, &opt.Price); err != nil {
			return fmt.Errorf("failed to scan service option: %w", err)
		}
		for _, svc := range byID[serviceID] {
			svc.Options = append(svc.Options, opt)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate service options: %w", err)
	}

	return nil
}

func scanService(row rowScanner) (*model.Service, error) {
	svc := &model.Service{}
	var practitionerID, firstName, lastName sql.NullString
	err := row.Scan(
		&svc.ID, &svc.Name, &svc.Description, &svc.Cleanup,
		&practitionerID, &firstName, &lastName,
	)
	if err != nil {
		return nil, err
	}
	svc.Practitioner = practitionerFrom(practitionerID, firstName, lastName)
	svc.Options = []model.ServiceOption{}
	return svc, nil
}

// practitionerFrom はLEFT JOINの結果から担当者プロジェクションを組み立てる。
// 担当者未設定の場合はnilを返す。
func practitionerFrom(id, firstName, lastName sql.NullString) *model.Practitioner {
	if !id.Valid {
		return nil
	}
	return &model.Practitioner{
		ID:        id.String,
		FirstName: firstName.String,
		LastName:  lastName.String,
	}
}

// prefixedScanner はScan先の前に追加の列を差し込む。
type prefixedScanner struct {
	row    rowScanner
	prefix []any
}

func (p prefixedScanner) Scan(dest ...any) error {
	return p.row.Scan(append(append([]any{}, p.prefix...), dest...)...)
}

// compile-time interface check
var _ ServiceRepository = (*PostgresServiceRepo)(nil)
