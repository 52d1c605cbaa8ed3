package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/resilience"
)

var tracer = otel.Tracer("postgres")

// AccessStore implements port.AccessStore, port.DirectoryStore and
// port.ScheduleStore over plain SQL.
type AccessStore struct {
	db          DBTX
	callTimeout time.Duration
}

func NewAccessStore(db DBTX, callTimeout time.Duration) *AccessStore {
	return &AccessStore{db: db, callTimeout: callTimeout}
}

// run bounds fn by the call timeout and maps driver errors to domain errors.
func (s *AccessStore) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := resilience.WithTimeout(ctx, s.callTimeout, "postgres/"+op, fn)
	if err == nil {
		return nil
	}

	var (
		timeout  *domain.ErrTimeout
		notFound *domain.ErrNotFound
	)
	switch {
	case errors.As(err, &timeout), errors.As(err, &notFound):
		return err
	case IsUniqueViolation(err):
		return &domain.ErrConflict{Message: "ya existe un registro con esos datos"}
	case errors.Is(err, context.Canceled):
		return err
	}
	return &domain.ErrExternalService{Service: "postgres/" + op, Err: err}
}

const profileColumns = `id::text, coalesce(email, ''), first_name, last_name, national_id,
	coalesce(phone, ''), coalesce(address, ''), coalesce(avatar_url, '')`

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	p := &domain.Profile{}
	err := row.Scan(&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.NationalID, &p.Phone, &p.Address, &p.AvatarURL)
	return p, err
}

const windowColumns = `id::text, employee_id::text, role, day_of_week, start_time::text, end_time::text, is_active`

func scanWindow(row pgx.Row) (domain.ScheduleWindow, error) {
	var (
		w          domain.ScheduleWindow
		role       string
		day        int32
		start, end string
	)
	if err := row.Scan(&w.ID, &w.EmployeeID, &role, &day, &start, &end, &w.IsActive); err != nil {
		return w, err
	}
	startT, err := domain.ParseTimeOfDay(start)
	if err != nil {
		return w, err
	}
	endT, err := domain.ParseTimeOfDay(end)
	if err != nil {
		return w, err
	}
	w.Role = domain.Role(role)
	w.DayOfWeek = domain.Weekday(day)
	w.StartTime = startT
	w.EndTime = endT
	return w, nil
}

func (s *AccessStore) ListRoleGrants(ctx context.Context, userID string) ([]domain.RoleGrant, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListRoleGrants")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var grants []domain.RoleGrant
	err := s.run(ctx, "user_roles", func(ctx context.Context) error {
		var err error
		grants, err = s.queryGrants(ctx, `SELECT user_id::text, role FROM user_roles WHERE user_id = $1 ORDER BY created_at`, userID)
		return err
	})
	return grants, err
}

func (s *AccessStore) ListAllRoleGrants(ctx context.Context) ([]domain.RoleGrant, error) {
	var grants []domain.RoleGrant
	err := s.run(ctx, "user_roles", func(ctx context.Context) error {
		var err error
		grants, err = s.queryGrants(ctx, `SELECT user_id::text, role FROM user_roles ORDER BY user_id, created_at`)
		return err
	})
	return grants, err
}

func (s *AccessStore) queryGrants(ctx context.Context, sql string, args ...any) ([]domain.RoleGrant, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grants := []domain.RoleGrant{}
	for rows.Next() {
		var g domain.RoleGrant
		var role string
		if err := rows.Scan(&g.UserID, &role); err != nil {
			return nil, err
		}
		g.Role = domain.Role(role)
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (s *AccessStore) ListUsersWithRole(ctx context.Context, role domain.Role) ([]string, error) {
	var ids []string
	err := s.run(ctx, "user_roles", func(ctx context.Context) error {
		grants, err := s.queryGrants(ctx, `SELECT user_id::text, role FROM user_roles WHERE role = $1`, string(role))
		if err != nil {
			return err
		}
		ids = make([]string, 0, len(grants))
		for _, g := range grants {
			ids = append(ids, g.UserID)
		}
		return nil
	})
	return ids, err
}

func (s *AccessStore) InsertRoleGrants(ctx context.Context, grants []domain.RoleGrant) error {
	if len(grants) == 0 {
		return nil
	}
	return s.run(ctx, "user_roles", func(ctx context.Context) error {
		batch := &pgx.Batch{}
		for _, g := range grants {
			batch.Queue(`INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`, g.UserID, string(g.Role))
		}
		return sendBatch(ctx, s.db, batch)
	})
}

func (s *AccessStore) DeleteRoleGrants(ctx context.Context, userID string, roles []domain.Role) error {
	if len(roles) == 0 {
		return nil
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return s.run(ctx, "user_roles", func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role = ANY($2)`, userID, names)
		return err
	})
}

// ListScheduleWindows returns windows ordered by (day_of_week, start_time).
// An empty id lists every window.
func (s *AccessStore) ListScheduleWindows(ctx context.Context, employeeID string) ([]domain.ScheduleWindow, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListScheduleWindows")
	defer span.End()

	var windows []domain.ScheduleWindow
	err := s.run(ctx, "employee_schedules", func(ctx context.Context) error {
		sql := fmt.Sprintf(`SELECT %s FROM employee_schedules
			WHERE ($1 = '' OR employee_id::text = $1)
			ORDER BY day_of_week, start_time`, windowColumns)
		rows, err := s.db.Query(ctx, sql, employeeID)
		if err != nil {
			return err
		}
		defer rows.Close()

		windows = []domain.ScheduleWindow{}
		for rows.Next() {
			w, err := scanWindow(rows)
			if err != nil {
				return err
			}
			windows = append(windows, w)
		}
		return rows.Err()
	})
	return windows, err
}

func (s *AccessStore) ValidateScheduleAccess(ctx context.Context, employeeID string, role domain.Role) (bool, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ValidateScheduleAccess")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", employeeID), attribute.String("role", string(role)))

	var ok bool
	err := s.run(ctx, "validate_employee_schedule_access", func(ctx context.Context) error {
		return s.db.QueryRow(ctx, `SELECT validate_employee_schedule_access($1::uuid, $2)`, employeeID, string(role)).Scan(&ok)
	})
	return ok, err
}

func (s *AccessStore) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetProfile")
	defer span.End()

	var p *domain.Profile
	err := s.run(ctx, "profiles", func(ctx context.Context) error {
		var err error
		p, err = scanProfile(s.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id::text = $1`, userID))
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.ErrNotFound{Resource: "profile", ID: userID}
		}
		return err
	})
	return p, err
}

func (s *AccessStore) FindProfileByNationalID(ctx context.Context, nationalID string) (*domain.Profile, error) {
	var p *domain.Profile
	err := s.run(ctx, "profiles", func(ctx context.Context) error {
		var err error
		p, err = scanProfile(s.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE national_id = $1`, nationalID))
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.ErrNotFound{Resource: "profile", ID: nationalID}
		}
		return err
	})
	return p, err
}

func (s *AccessStore) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	var out []domain.Profile
	err := s.run(ctx, "profiles", func(ctx context.Context) error {
		rows, err := s.db.Query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY last_name, first_name`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = []domain.Profile{}
		for rows.Next() {
			p, err := scanProfile(rows)
			if err != nil {
				return err
			}
			out = append(out, *p)
		}
		return rows.Err()
	})
	return out, err
}

func (s *AccessStore) CreateProfile(ctx context.Context, p *domain.Profile) error {
	return s.run(ctx, "profiles", func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, `
			INSERT INTO profiles (id, email, first_name, last_name, national_id, phone, address, avatar_url)
			VALUES ($1::uuid, nullif($2, ''), $3, $4, $5, nullif($6, ''), nullif($7, ''), nullif($8, ''))`,
			p.ID, p.Email, p.FirstName, p.LastName, p.NationalID, p.Phone, p.Address, p.AvatarURL)
		return err
	})
}

func (s *AccessStore) CreateScheduleWindow(ctx context.Context, w *domain.ScheduleWindow) (*domain.ScheduleWindow, error) {
	var out domain.ScheduleWindow
	err := s.run(ctx, "employee_schedules", func(ctx context.Context) error {
		var err error
		out, err = scanWindow(s.db.QueryRow(ctx, `
			INSERT INTO employee_schedules (employee_id, role, day_of_week, start_time, end_time, is_active)
			VALUES ($1::uuid, $2, $3, $4::time, $5::time, $6)
			RETURNING `+windowColumns,
			w.EmployeeID, string(w.Role), int32(w.DayOfWeek), w.StartTime.String(), w.EndTime.String(), w.IsActive))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AccessStore) SetScheduleWindowActive(ctx context.Context, id string, active bool) error {
	return s.run(ctx, "employee_schedules", func(ctx context.Context) error {
		tag, err := s.db.Exec(ctx, `UPDATE employee_schedules SET is_active = $2 WHERE id::text = $1`, id, active)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return &domain.ErrNotFound{Resource: "schedule", ID: id}
		}
		return nil
	})
}

func (s *AccessStore) DeleteScheduleWindow(ctx context.Context, id string) error {
	return s.run(ctx, "employee_schedules", func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, `DELETE FROM employee_schedules WHERE id::text = $1`, id)
		return err
	})
}

// batchSender is implemented by *pgxpool.Pool and pgx.Tx.
type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func sendBatch(ctx context.Context, db DBTX, batch *pgx.Batch) error {
	if bs, ok := db.(batchSender); ok {
		return bs.SendBatch(ctx, batch).Close()
	}
	for _, q := range batch.QueuedQueries {
		if _, err := db.Exec(ctx, q.SQL, q.Arguments...); err != nil {
			return err
		}
	}
	return nil
}
